package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/marketplace-api/internal/config"
	"github.com/nurpe/marketplace-api/internal/metrics"
	"github.com/nurpe/marketplace-api/internal/model"
	"github.com/nurpe/marketplace-api/internal/repository"
	"github.com/nurpe/marketplace-api/internal/txn"
)

type BalanceService struct {
	store          TxRunner
	policy         txn.Policy
	capRatio       decimal.Decimal
	allowOnBehalf  bool
	capExceededMsg string
	metrics        *metrics.Metrics
	log            zerolog.Logger
}

func NewBalanceService(store TxRunner, policy txn.Policy, cfg config.BalancesConfig, m *metrics.Metrics, log zerolog.Logger) *BalanceService {
	return &BalanceService{
		store:          store,
		policy:         policy,
		capRatio:       cfg.DepositCapRatio,
		allowOnBehalf:  cfg.AllowDepositOnBehalf,
		capExceededMsg: capExceededMessage(cfg.DepositCapRatio),
		metrics:        m,
		log:            log.With().Str("component", "balances").Logger(),
	}
}

type DepositInput struct {
	Caller   model.Profile
	TargetID int64
	Amount   *decimal.Decimal
}

// Deposit credits the target client with amount, provided amount stays within
// the cap ratio of the client's unpaid in-progress job total. Returns the new
// balance.
func (s *BalanceService) Deposit(ctx context.Context, input DepositInput) (decimal.Decimal, error) {
	if err := validateDeposit(input); err != nil {
		s.metrics.DepositAttempt(metrics.OutcomeRejected)
		return decimal.Zero, err
	}
	amount := *input.Amount

	balance, err := txn.WithRetries(ctx, s.policy, repository.IsRetryable, s.onRetry(input.TargetID),
		func(ctx context.Context) (decimal.Decimal, error) {
			return s.depositOnce(ctx, input.Caller.ID, input.TargetID, amount)
		})
	if err != nil {
		s.metrics.DepositAttempt(outcomeOf(err))
		return decimal.Zero, s.translate(err, input.TargetID)
	}

	s.metrics.DepositAttempt(metrics.OutcomeSuccess)
	s.log.Info().
		Int64("profile_id", input.TargetID).
		Str("amount", amount.StringFixed(2)).
		Str("balance", balance.StringFixed(2)).
		Msg("deposit completed")
	return balance, nil
}

func validateDeposit(input DepositInput) error {
	if input.TargetID <= 0 {
		return newError(ErrInvalidInput, "Invalid user ID")
	}
	if input.Amount == nil {
		return newError(ErrInvalidInput, MsgAmountRequired)
	}
	if !input.Amount.IsPositive() {
		return newError(ErrInvalidInput, MsgAmountNotPositive)
	}
	if !input.Amount.Equal(input.Amount.Truncate(2)) {
		return newError(ErrInvalidInput, MsgAmountPrecision)
	}
	return nil
}

func (s *BalanceService) depositOnce(ctx context.Context, callerID, targetID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		profile, err := tx.LockProfile(ctx, targetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newError(ErrNotFound, MsgUserNotFound)
			}
			return err
		}
		if !profile.IsClient() {
			return newError(ErrPermissionDenied, MsgOnlyClientsDeposit)
		}
		if !s.allowOnBehalf && callerID != profile.ID {
			return newError(ErrPermissionDenied, MsgDepositNotOwn)
		}

		outstanding, err := tx.SumUnpaidForClient(ctx, profile.ID)
		if err != nil {
			return err
		}
		maxDeposit := outstanding.Mul(s.capRatio)
		if amount.GreaterThan(maxDeposit) {
			s.log.Warn().
				Int64("profile_id", profile.ID).
				Str("amount", amount.StringFixed(2)).
				Str("max_deposit", maxDeposit.StringFixed(2)).
				Str("outstanding", outstanding.StringFixed(2)).
				Msg("deposit exceeds limit")
			return newError(ErrConflict, s.capExceededMsg)
		}

		balance, err = tx.IncrementBalance(ctx, profile.ID, profile.Balance, amount)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *BalanceService) onRetry(profileID int64) txn.OnRetry {
	return func(attempt int, err error) {
		s.metrics.TxRetry("deposit")
		s.log.Debug().Err(err).Int64("profile_id", profileID).Int("attempt", attempt).Msg("deposit conflict, retrying")
	}
}

func (s *BalanceService) translate(err error, profileID int64) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if errors.Is(err, txn.ErrRetriesExhausted) {
		s.log.Warn().Err(err).Int64("profile_id", profileID).Msg("deposit retries exhausted")
		return internalError(MsgTransactionConflict, err)
	}
	return fmt.Errorf("deposit to profile %d: %w", profileID, err)
}

func capExceededMessage(ratio decimal.Decimal) string {
	if ratio.Equal(decimal.RequireFromString("0.25")) {
		return MsgDepositCapExceeded
	}
	return fmt.Sprintf("Deposit amount exceeds %s%% of total jobs to pay", ratio.Shift(2).String())
}
