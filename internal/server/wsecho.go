package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// A classroom session can outlive several quiet minutes between rounds.
const echoSessionLimit = 10 * time.Minute

// handleWSEcho gives projector and dashboard clients a connectivity
// check: whatever frame arrives comes straight back. Useful for probing
// school proxies that silently drop websocket upgrades before a game
// subscribes to the event stream.
func handleWSEcho(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("echo upgrade failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), echoSessionLimit)
		defer cancel()

		for {
			typ, frame, err := conn.Read(ctx)
			if err != nil {
				logger.Debug("echo session closed", "error", err)
				return
			}
			if err := conn.Write(ctx, typ, frame); err != nil {
				logger.Debug("echo write failed", "error", err)
				return
			}
		}
	}
}
