package jobmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
)

const (
	webhookAttempts       = 3
	webhookAttemptTimeout = 10 * time.Second
	webhookTotalBudget    = 30 * time.Second
)

// webhookPayload is the terminal notification body posted to a callback URL.
type webhookPayload struct {
	JobID      string           `json:"job_id"`
	Status     string           `json:"status"`
	Result     json.RawMessage  `json:"result,omitempty"`
	Error      *models.JobError `json:"error,omitempty"`
	FinishedAt time.Time        `json:"finished_at"`
}

// webhookDispatcher posts terminal job notifications with bounded retries.
// Delivery failures are recorded on the job but never affect its status.
type webhookDispatcher struct {
	store      interfaces.JobStore
	logger     *common.Logger
	httpClient *http.Client
	backoff    func(attempt int) time.Duration
}

func newWebhookDispatcher(store interfaces.JobStore, logger *common.Logger) *webhookDispatcher {
	return &webhookDispatcher{
		store:      store,
		logger:     logger,
		httpClient: &http.Client{Timeout: webhookAttemptTimeout},
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second // 1s, 2s, 4s
		},
	}
}

// Dispatch delivers the terminal notification for job, retrying on failure
// within the total budget.
func (d *webhookDispatcher) Dispatch(ctx context.Context, job *models.Job) {
	if err := validateCallbackURL(job.CallbackURL); err != nil {
		d.recordFailure(ctx, job.ID, err.Error())
		return
	}

	body, err := json.Marshal(webhookPayload{
		JobID:      job.ID,
		Status:     job.Status,
		Result:     job.Result,
		Error:      job.Error,
		FinishedAt: job.CompletedAt,
	})
	if err != nil {
		d.recordFailure(ctx, job.ID, fmt.Sprintf("marshal payload: %v", err))
		return
	}

	deadline := time.Now().Add(webhookTotalBudget)
	var lastErr string
	for attempt := 0; attempt < webhookAttempts; attempt++ {
		if attempt > 0 {
			wait := d.backoff(attempt - 1)
			if time.Now().Add(wait).After(deadline) {
				break
			}
			select {
			case <-ctx.Done():
				d.recordFailure(ctx, job.ID, "dispatch cancelled")
				return
			case <-time.After(wait):
			}
		}

		if err := d.post(ctx, job.CallbackURL, body); err != nil {
			lastErr = err.Error()
			d.logger.Warn().
				Str("job_id", job.ID).
				Int("attempt", attempt+1).
				Err(err).
				Msg("Webhook delivery failed")
			continue
		}

		d.logger.Info().Str("job_id", job.ID).Str("callback_url", job.CallbackURL).Msg("Webhook delivered")
		return
	}

	d.recordFailure(ctx, job.ID, lastErr)
}

func (d *webhookDispatcher) post(ctx context.Context, callbackURL string, body []byte) error {
	attemptCtx, cancel := context.WithTimeout(ctx, webhookAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *webhookDispatcher) recordFailure(ctx context.Context, jobID, message string) {
	if message == "" {
		message = "delivery failed"
	}
	if err := d.store.SetWebhookError(ctx, jobID, message); err != nil {
		d.logger.Warn().Str("job_id", jobID).Err(err).Msg("Could not record webhook error")
	}
}

// validateCallbackURL accepts absolute http and https URLs only.
func validateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid callback URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("callback URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("callback URL missing host")
	}
	return nil
}
