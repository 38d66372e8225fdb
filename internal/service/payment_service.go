package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/marketplace-api/internal/auth"
	"github.com/nurpe/marketplace-api/internal/metrics"
	"github.com/nurpe/marketplace-api/internal/model"
	"github.com/nurpe/marketplace-api/internal/repository"
	"github.com/nurpe/marketplace-api/internal/txn"
)

// TxRunner opens serializable transactions over the money tables.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx repository.Tx) error) error
}

type PaymentService struct {
	store   TxRunner
	policy  txn.Policy
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func NewPaymentService(store TxRunner, policy txn.Policy, m *metrics.Metrics, log zerolog.Logger) *PaymentService {
	return &PaymentService{
		store:   store,
		policy:  policy,
		metrics: m,
		log:     log.With().Str("component", "payments").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// PayJob moves the job price from the caller to the contractor and marks the
// job paid. Of any number of concurrent calls for one job at most one succeeds;
// the rest observe "already paid".
func (s *PaymentService) PayJob(ctx context.Context, caller model.Profile, jobID int64) (*model.Job, error) {
	if jobID <= 0 {
		return nil, newError(ErrInvalidInput, "Invalid job ID")
	}

	job, err := txn.WithRetries(ctx, s.policy, repository.IsRetryable, s.onRetry(jobID),
		func(ctx context.Context) (*model.Job, error) {
			return s.payOnce(ctx, caller.ID, jobID)
		})
	if err != nil {
		s.metrics.PaymentAttempt(outcomeOf(err))
		return nil, s.translate(err, jobID)
	}

	s.metrics.PaymentAttempt(metrics.OutcomeSuccess)
	s.log.Info().
		Int64("job_id", job.ID).
		Int64("client_id", job.Contract.ClientID).
		Int64("contractor_id", job.Contract.ContractorID).
		Str("amount", job.Price.StringFixed(2)).
		Msg("job paid")
	return job, nil
}

func (s *PaymentService) payOnce(ctx context.Context, callerID, jobID int64) (*model.Job, error) {
	var paid *model.Job
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		job, err := tx.LockJob(ctx, jobID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newError(ErrNotFound, MsgJobNotFound)
			}
			return err
		}
		if job.Paid {
			return newError(ErrConflict, MsgJobAlreadyPaid)
		}

		client, err := tx.LockProfile(ctx, callerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newError(ErrUnauthenticated, MsgProfileNotFound)
			}
			return err
		}

		switch auth.AuthorizeJobPayment(*client, *job.Contract) {
		case auth.DeniedRole:
			return newError(ErrPermissionDenied, MsgOnlyClientsPay)
		case auth.DeniedOwnership:
			return newError(ErrPermissionDenied, MsgJobNotOwned)
		}

		if client.Balance.LessThan(job.Price) {
			return newError(ErrConflict, MsgInsufficientFunds)
		}

		contractor, err := tx.LockProfile(ctx, job.Contract.ContractorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newError(ErrNotFound, MsgContractorNotFound)
			}
			return err
		}

		if err := tx.TransferFunds(ctx, client.ID, contractor.ID, job.Price); err != nil {
			return err
		}
		if err := tx.MarkJobPaid(ctx, job.ID, s.now()); err != nil {
			return err
		}

		paid, err = tx.GetJob(ctx, job.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

func (s *PaymentService) onRetry(jobID int64) txn.OnRetry {
	return func(attempt int, err error) {
		s.metrics.TxRetry("pay_job")
		s.log.Debug().Err(err).Int64("job_id", jobID).Int("attempt", attempt).Msg("payment conflict, retrying")
	}
}

func (s *PaymentService) translate(err error, jobID int64) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if errors.Is(err, txn.ErrRetriesExhausted) {
		s.log.Warn().Err(err).Int64("job_id", jobID).Msg("payment retries exhausted")
		return internalError(MsgTransactionConflict, err)
	}
	return fmt.Errorf("pay job %d: %w", jobID, err)
}

// outcomeOf classifies a failed operation for metrics.
func outcomeOf(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) && !errors.Is(err, ErrInternal) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
