package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
)

// Service runs the per-sheet ingestion pipeline.
type Service struct {
	portfolios interfaces.PortfolioStore
	llm        interfaces.PortfolioParser
	manual     *ManualParser
	logger     *common.Logger
}

// NewService creates an ingest service. llm may be an unavailable parser;
// requests pinned to it then fail per sheet.
func NewService(portfolios interfaces.PortfolioStore, llm interfaces.PortfolioParser, config common.IngestConfig, logger *common.Logger) *Service {
	return &Service{
		portfolios: portfolios,
		llm:        llm,
		manual:     NewManualParser(config.HeaderSynonyms),
		logger:     logger,
	}
}

// IngestWorkbook decodes the workbook and parses and stores every sheet.
// It completes when at least one sheet parsed; a workbook where every
// sheet fails is a parse_total_failure.
func (s *Service) IngestWorkbook(ctx context.Context, payload *models.WorkbookIngestPayload, progress interfaces.ProgressFunc) (*models.WorkbookIngestResult, *models.JobError) {
	wb, err := decodeWorkbook(payload)
	if err != nil {
		return nil, models.NewJobError(models.ErrKindParseTotalFailure, err.Error())
	}
	if len(wb.Sheets) == 0 {
		return nil, models.NewJobError(models.ErrKindParseTotalFailure, "workbook has no sheets")
	}

	result := &models.WorkbookIngestResult{TotalSheets: len(wb.Sheets)}

	for _, sh := range wb.Sheets {
		select {
		case <-ctx.Done():
			return nil, models.NewJobError(models.ErrKindCancelled, "cancelled during workbook ingest")
		default:
		}

		sid := sheetID(wb.SHA, sh.Index, sh.Name)
		portfolio, parseErr := s.parseSheet(ctx, payload, sh)
		if parseErr == nil {
			portfolio.ID = sid
			storedID, err := s.portfolios.Upsert(ctx, portfolio)
			if err != nil {
				parseErr = fmt.Errorf("failed to store portfolio: %w", err)
			} else {
				result.Parsed++
				result.PortfolioIDs = append(result.PortfolioIDs, storedID)
				s.logger.Info().
					Str("sheet", sh.Name).
					Str("portfolio_id", storedID).
					Str("fund_name", portfolio.MutualFundName).
					Int("holdings", portfolio.TotalHoldings).
					Msg("Sheet ingested")
			}
		}
		if parseErr != nil {
			result.Failed++
			result.SheetErrors = append(result.SheetErrors, models.SheetError{SheetName: sh.Name, Error: parseErr.Error()})
			s.logger.Warn().Str("sheet", sh.Name).Err(parseErr).Msg("Sheet failed")
		}

		if progress != nil {
			progress(ctx, models.JobProgress{
				Total:       result.TotalSheets,
				Completed:   result.Parsed,
				Failed:      result.Failed,
				CurrentItem: sh.Name,
			})
		}
	}

	if result.Parsed == 0 {
		return result, models.NewJobError(models.ErrKindParseTotalFailure,
			fmt.Sprintf("all %d sheets failed to parse", result.TotalSheets))
	}
	return result, nil
}

// parseSheet applies the requested parse method. LLM requests fall back to
// the manual parser unless the caller pinned the method.
func (s *Service) parseSheet(ctx context.Context, payload *models.WorkbookIngestPayload, sh sheet) (*models.Portfolio, error) {
	if payload.ParseMethod != models.ParseMethodLLM {
		return s.manual.ParseSheet(sh.Name, sh.Rows)
	}

	if s.llm != nil && s.llm.Available() {
		portfolio, err := s.llm.ParseSheet(ctx, sh.Name, sh.Rows)
		if err == nil {
			return portfolio, nil
		}
		if payload.Pinned {
			return nil, err
		}
		s.logger.Warn().Str("sheet", sh.Name).Err(err).Msg("LLM parse failed, falling back to manual")
	} else if payload.Pinned {
		return nil, fmt.Errorf("llm parser is not available")
	}

	return s.manual.ParseSheet(sh.Name, sh.Rows)
}

// Handler adapts the service to the job subsystem.
func (s *Service) Handler() interfaces.JobHandler {
	return func(ctx context.Context, job *models.Job, progress interfaces.ProgressFunc) ([]byte, *models.JobError) {
		var payload models.WorkbookIngestPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, models.NewJobError(models.ErrKindValidation, fmt.Sprintf("invalid workbook payload: %v", err))
		}

		result, jobErr := s.IngestWorkbook(ctx, &payload, progress)
		if jobErr != nil {
			return nil, jobErr
		}

		data, err := json.Marshal(result)
		if err != nil {
			return nil, models.NewJobError(models.ErrKindInternal, fmt.Sprintf("failed to encode result: %v", err))
		}
		return data, nil
	}
}

// Compile-time check
var _ interfaces.IngestService = (*Service)(nil)
