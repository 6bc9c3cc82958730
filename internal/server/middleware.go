package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type ctxKey int

const (
	ctxKeyClassroom ctxKey = iota
	ctxKeyAdmin
)

// classroomMiddleware resolves the {classroom} slug and rejects unknown ones.
func classroomMiddleware(store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := chi.URLParam(r, "classroom")
			if slug == "" {
				writeError(w, http.StatusNotFound, "classroom not found")
				return
			}

			ok, err := store.ClassroomExists(r.Context(), slug)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !ok {
				writeError(w, http.StatusNotFound, "classroom not found")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyClassroom, slug)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func adminAuthMiddleware(store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(adminCookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			sess, err := store.AdminFromSession(r.Context(), cookie.Value)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyAdmin, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func classroomFrom(r *http.Request) string {
	return r.Context().Value(ctxKeyClassroom).(string)
}

func adminFrom(r *http.Request) adminSession {
	return r.Context().Value(ctxKeyAdmin).(adminSession)
}
