package server

import (
	"context"
	"log/slog"
	"time"
)

// RunReaper periodically releases territories stranded by abandoned
// challenges (a disconnected client, a closed laptop). Each game's window is
// its time-per-question plus the configured grace, stamped on the challenge
// at creation. Blocks until ctx is done.
func RunReaper(ctx context.Context, logger *slog.Logger, store Store, broker *Broker, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			expired, err := store.ExpireChallenges(ctx, time.Now())
			if err != nil {
				logger.Error("expiring challenges", "error", err)
				continue
			}
			for _, e := range expired {
				logger.Info("challenge expired",
					"challenge_id", e.ChallengeID,
					"game_id", e.GameID,
					"territory_id", e.TerritoryID,
				)
				broker.Publish(e.GameID, SSEEvent{
					Type:        "challenge_expired",
					ChallengeID: e.ChallengeID,
					TerritoryID: e.TerritoryID,
				})
			}
		}
	}
}
