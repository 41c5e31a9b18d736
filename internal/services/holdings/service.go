// Package holdings refreshes cached ETF constituent holdings from the
// upstream provider, walking the seeded ETF metadata for discovery.
package holdings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/fundhub/internal/clients/moneycontrol"
	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
)

// Service implements the HoldingsService interface.
type Service struct {
	etfs         interfaces.ETFStore
	cache        interfaces.HoldingsStore
	client       interfaces.HoldingsClient
	logger       *common.Logger
	freshnessTTL time.Duration
	now          func() time.Time
}

// NewService creates a holdings service.
func NewService(etfs interfaces.ETFStore, cache interfaces.HoldingsStore, client interfaces.HoldingsClient, config common.HoldingsConfig, logger *common.Logger) *Service {
	return &Service{
		etfs:         etfs,
		cache:        cache,
		client:       client,
		logger:       logger,
		freshnessTTL: config.GetFreshnessTTL(),
		now:          time.Now,
	}
}

// FetchOne refreshes the snapshot for a single symbol.
func (s *Service) FetchOne(ctx context.Context, symbol string, progress interfaces.ProgressFunc) (*models.HoldingsFetchResult, *models.JobError) {
	meta, err := s.etfs.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, models.NewJobError(models.ErrKindStoreUnavailable, err.Error())
	}
	if meta == nil {
		return nil, models.NewJobError(models.ErrKindNotFound, fmt.Sprintf("ETF %s not found", symbol))
	}

	result := &models.HoldingsFetchResult{}
	s.fetchSymbol(ctx, meta, result)
	if progress != nil {
		progress(ctx, models.JobProgress{Total: 1, Completed: result.Fetched + result.CacheHits, Failed: result.Failed, CurrentItem: symbol})
	}

	if result.Fetched+result.CacheHits == 0 {
		return result, models.NewJobError(models.ErrKindUpstreamTotalFailure, result.Errors[0].Error)
	}
	return result, nil
}

// FetchAll walks every ETF with a known ISIN in symbol order, truncated by
// limit when positive. At least one success (cache hits count) completes
// the run.
func (s *Service) FetchAll(ctx context.Context, limit int, progress interfaces.ProgressFunc) (*models.HoldingsFetchResult, *models.JobError) {
	fleet, err := s.etfs.ListWithISIN(ctx, limit)
	if err != nil {
		return nil, models.NewJobError(models.ErrKindStoreUnavailable, err.Error())
	}

	result := &models.HoldingsFetchResult{}
	for _, meta := range fleet {
		select {
		case <-ctx.Done():
			return nil, models.NewJobError(models.ErrKindCancelled, "cancelled during holdings fetch")
		default:
		}

		s.fetchSymbol(ctx, meta, result)
		if progress != nil {
			progress(ctx, models.JobProgress{
				Total:       len(fleet),
				Completed:   result.Fetched + result.CacheHits,
				Failed:      result.Failed,
				CurrentItem: meta.Symbol,
			})
		}
	}

	if len(fleet) > 0 && result.Fetched+result.CacheHits == 0 {
		return result, models.NewJobError(models.ErrKindUpstreamTotalFailure,
			fmt.Sprintf("all %d symbols failed", len(fleet)))
	}
	return result, nil
}

// fetchSymbol refreshes one symbol into result: fresh cache entries are
// counted without touching upstream, everything else goes through the
// rate-gated client.
func (s *Service) fetchSymbol(ctx context.Context, meta *models.ETFMetadata, result *models.HoldingsFetchResult) {
	result.Processed++

	if meta.ISIN == "" {
		result.Failed++
		result.Errors = append(result.Errors, models.SymbolError{Symbol: meta.Symbol, Error: "no ISIN on record"})
		return
	}

	cached, err := s.cache.GetBySymbol(ctx, meta.Symbol)
	if err == nil && cached != nil && common.IsFreshAt(cached.FetchedAt, s.now(), s.freshnessTTL) {
		result.CacheHits++
		s.logger.Debug().Str("symbol", meta.Symbol).Time("fetched_at", cached.FetchedAt).Msg("Holdings cache hit")
		return
	}

	snapshot, err := s.client.GetSchemeHoldings(ctx, meta.ISIN)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, models.SymbolError{Symbol: meta.Symbol, Error: classifyFetchError(err)})
		s.logger.Warn().Str("symbol", meta.Symbol).Err(err).Msg("Holdings fetch failed")
		return
	}

	snapshot.Symbol = meta.Symbol
	snapshot.Name = meta.Name
	if err := s.cache.Upsert(ctx, snapshot); err != nil {
		result.Failed++
		result.Errors = append(result.Errors, models.SymbolError{Symbol: meta.Symbol, Error: fmt.Sprintf("store: %v", err)})
		return
	}

	result.Fetched++
	s.logger.Info().Str("symbol", meta.Symbol).Int("holdings", snapshot.TotalHoldings).Msg("Holdings refreshed")
}

// classifyFetchError prefixes the per-symbol error string with its taxonomy
// kind so operators can tell timeouts from upstream rejections.
func classifyFetchError(err error) string {
	var apiErr *moneycontrol.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s: %v", models.ErrKindUpstreamTimeout, err)
	case errors.As(err, &apiErr):
		return fmt.Sprintf("%s: status %d", models.ErrKindUpstreamHTTP, apiErr.StatusCode)
	default:
		return fmt.Sprintf("%s: %v", models.ErrKindUpstreamParse, err)
	}
}

// HandlerOne adapts FetchOne to the job subsystem.
func (s *Service) HandlerOne() interfaces.JobHandler {
	return func(ctx context.Context, job *models.Job, progress interfaces.ProgressFunc) ([]byte, *models.JobError) {
		var payload models.FetchHoldingsPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, models.NewJobError(models.ErrKindValidation, fmt.Sprintf("invalid payload: %v", err))
		}
		result, jobErr := s.FetchOne(ctx, payload.Symbol, progress)
		return marshalResult(result, jobErr)
	}
}

// HandlerAll adapts FetchAll to the job subsystem.
func (s *Service) HandlerAll() interfaces.JobHandler {
	return func(ctx context.Context, job *models.Job, progress interfaces.ProgressFunc) ([]byte, *models.JobError) {
		var payload models.FetchHoldingsPayload
		if len(job.Payload) > 0 {
			if err := json.Unmarshal(job.Payload, &payload); err != nil {
				return nil, models.NewJobError(models.ErrKindValidation, fmt.Sprintf("invalid payload: %v", err))
			}
		}
		result, jobErr := s.FetchAll(ctx, payload.Limit, progress)
		return marshalResult(result, jobErr)
	}
}

func marshalResult(result *models.HoldingsFetchResult, jobErr *models.JobError) ([]byte, *models.JobError) {
	if jobErr != nil {
		return nil, jobErr
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, models.NewJobError(models.ErrKindInternal, fmt.Sprintf("failed to encode result: %v", err))
	}
	return data, nil
}

// Compile-time check
var _ interfaces.HoldingsService = (*Service)(nil)
