// workers/challenge_expiry_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"rewards-engine/services"
)

// PollChallengeExpiry periodically fails active participations of challenges
// whose window has closed. Failures are logged and retried next tick.
func PollChallengeExpiry(ctx context.Context, challenges *services.ChallengeService, pollInterval time.Duration) {
	log.Println("Starting challenge expiry polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Challenge expiry polling stopped.")
			return
		case <-ticker.C:
			failed, err := challenges.ExpireOverdue(time.Now())
			if err != nil {
				log.Printf("❌ Error expiring challenges: %v", err)
				continue
			}
			if failed > 0 {
				log.Printf("⏱️ Marked %d overdue participation(s) as failed.", failed)
			}
		}
	}
}
