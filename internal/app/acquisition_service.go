package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"github.com/yourusername/mediabridge-go/internal/infrastructure"
	"github.com/yourusername/mediabridge-go/pkg/logger"
	"go.uber.org/zap"
)

// FormatLister lists the formats a URL offers
type FormatLister interface {
	ListFormats(ctx context.Context, rawURL string) ([]infrastructure.FormatOption, error)
}

// AcquireResult is what one acquire call produced
type AcquireResult struct {
	Acquisition *domain.Acquisition
	Outcome     *Outcome
}

// Failure returns the terminal failure, or nil on success
func (r *AcquireResult) Failure() *domain.Failure {
	return r.Outcome.Failure()
}

// AcquisitionService runs acquisitions and keeps their history
type AcquisitionService struct {
	controller  *Controller
	policy      ChainPolicy
	repo        domain.AcquisitionRepository
	formats     FormatLister
	multiLogger *logger.MultiLogger
	logger      *zap.Logger
	mu          sync.RWMutex
	inFlight    map[string]*domain.Acquisition
}

// NewAcquisitionService creates a new acquisition service. repo, formats and
// multiLogger may be nil.
func NewAcquisitionService(
	controller *Controller,
	policy ChainPolicy,
	repo domain.AcquisitionRepository,
	formats FormatLister,
	multiLogger *logger.MultiLogger,
	logger *zap.Logger,
) *AcquisitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcquisitionService{
		controller:  controller,
		policy:      policy,
		repo:        repo,
		formats:     formats,
		multiLogger: multiLogger,
		logger:      logger,
		inFlight:    make(map[string]*domain.Acquisition),
	}
}

// Chain returns the provider chain req would walk
func (s *AcquisitionService) Chain(req domain.MediaRequest) (domain.ProviderChain, error) {
	return s.policy.BuildChain(req)
}

// Acquire walks the provider chain for req. The returned error is only set
// when the request could not be attempted at all; provider failures are
// reported through the result.
func (s *AcquisitionService) Acquire(ctx context.Context, req domain.MediaRequest) (*AcquireResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	chain, err := s.policy.BuildChain(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider chain: %w", err)
	}

	acq := domain.NewAcquisition(req, chain)
	s.logger.Info("Processing acquisition",
		zap.String("id", acq.ID),
		zap.String("url", req.URL),
		zap.String("platform", string(acq.Platform)),
		zap.String("chain", acq.Chain))

	if s.repo != nil {
		if err := s.repo.Create(acq); err != nil {
			s.logAppError("Failed to record acquisition", acq, err)
		}
	}
	s.track(acq)
	defer s.untrack(acq.ID)

	outcome := s.controller.Run(ctx, req, chain, func(a Attempt) {
		s.recordAttempt(acq, a)
	})

	acq.AttemptCount = len(outcome.Attempts)
	if failure := outcome.Failure(); failure != nil {
		acq.MarkFailed(outcome.Provider, failure)
		s.logger.Warn("Acquisition failed",
			zap.String("id", acq.ID),
			zap.String("phase", string(outcome.Phase)),
			zap.String("kind", string(failure.Kind)),
			zap.String("message", failure.Message))
	} else {
		acq.MarkSucceeded(outcome.Provider, outcome.Result)
		s.logger.Info("Acquisition completed",
			zap.String("id", acq.ID),
			zap.String("provider", string(outcome.Provider)),
			zap.String("result", acq.ResultType))
	}

	if s.repo != nil {
		if err := s.repo.Update(acq); err != nil {
			s.logAppError("Failed to update acquisition", acq, err)
		}
	}
	if s.multiLogger != nil {
		s.multiLogger.LogAcquireEvent("acquisition_finished",
			zap.String("id", acq.ID),
			zap.String("url", acq.URL),
			zap.String("platform", string(acq.Platform)),
			zap.String("status", string(acq.Status)),
			zap.String("provider", string(acq.Provider)),
			zap.String("error_kind", string(acq.ErrorKind)),
			zap.Int("attempts", acq.AttemptCount),
			zap.Int64("duration_ms", acq.DurationMs))
	}

	return &AcquireResult{Acquisition: acq, Outcome: outcome}, nil
}

func (s *AcquisitionService) recordAttempt(acq *domain.Acquisition, a Attempt) {
	record := &domain.AcquisitionAttempt{
		AcquisitionID: acq.ID,
		Sequence:      a.Sequence,
		Provider:      a.Provider,
		Outcome:       domain.ResultType(a.Result),
		DurationMs:    a.Duration.Milliseconds(),
	}
	if f := a.Failure(); f != nil {
		record.ErrorKind = f.Kind
		record.Message = f.Message
	}

	if s.repo != nil {
		if err := s.repo.AddAttempt(record); err != nil {
			s.logAppError("Failed to record attempt", acq, err)
		}
	}
	if s.multiLogger != nil {
		s.multiLogger.LogAcquireEvent("provider_attempt",
			zap.String("id", acq.ID),
			zap.String("provider", string(a.Provider)),
			zap.String("platform", string(a.Platform)),
			zap.Int("attempt", a.Sequence),
			zap.Int64("duration_ms", record.DurationMs),
			zap.String("outcome", record.Outcome),
			zap.String("error_kind", string(record.ErrorKind)))
	}
}

func (s *AcquisitionService) logAppError(msg string, acq *domain.Acquisition, err error) {
	s.logger.Error(msg, zap.String("id", acq.ID), zap.Error(err))
	if s.multiLogger != nil {
		s.multiLogger.LogAppError(msg, zap.String("id", acq.ID), zap.Error(err))
	}
}

func (s *AcquisitionService) track(acq *domain.Acquisition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight[acq.ID] = acq
}

func (s *AcquisitionService) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

// InFlight returns the number of acquisitions currently running
func (s *AcquisitionService) InFlight() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inFlight)
}

// GetAcquisition retrieves a recorded acquisition by ID
func (s *AcquisitionService) GetAcquisition(id string) (*domain.Acquisition, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: history is disabled", domain.ErrAcquisitionNotFound)
	}
	return s.repo.FindByID(id)
}

// ListAcquisitions lists recorded acquisitions, newest first
func (s *AcquisitionService) ListAcquisitions(filters map[string]interface{}, limit int) ([]*domain.Acquisition, error) {
	if s.repo == nil {
		return []*domain.Acquisition{}, nil
	}
	return s.repo.FindAll(filters, limit)
}

// GetStats returns acquisition statistics
func (s *AcquisitionService) GetStats() (*domain.AcquisitionStats, error) {
	if s.repo == nil {
		return &domain.AcquisitionStats{ByProvider: map[string]int64{}, ByErrorKind: map[string]int64{}}, nil
	}
	return s.repo.GetStats()
}

// ListFormats lists the formats available for rawURL
func (s *AcquisitionService) ListFormats(ctx context.Context, rawURL string) ([]infrastructure.FormatOption, error) {
	if err := domain.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	if s.formats == nil {
		return nil, fmt.Errorf("format listing is not available")
	}
	return s.formats.ListFormats(ctx, rawURL)
}
