package jobmanager

import (
	"context"
	"time"
)

// recoveryLoop periodically returns expired-lease running jobs to the queue
// so work orphaned by a dead worker is retried.
func (jm *JobManager) recoveryLoop(ctx context.Context) {
	ticker := time.NewTicker(jm.config.GetRecoveryInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ids, err := jm.storage.JobStore().RequeueExpired(ctx, time.Now())
		if err != nil {
			jm.logger.Warn().Err(err).Msg("Recovery sweep failed")
			continue
		}
		if len(ids) > 0 {
			jm.logger.Info().Int("count", len(ids)).Strs("job_ids", ids).Msg("Requeued expired jobs")
		}
	}
}
