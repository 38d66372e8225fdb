package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/marketplace-api/internal/model"
)

// ErrConcurrentUpdate means a guarded write matched no row because another
// transaction changed it first.
var ErrConcurrentUpdate = errors.New("concurrent modification detected")

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// IsRetryable reports whether err is a transient conflict that justifies
// re-running the whole transaction.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConcurrentUpdate) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return true
		}
	}
	return false
}

// Tx is the set of operations available inside a money transaction. Every
// Lock* call holds its row until the surrounding transaction ends.
type Tx interface {
	LockJob(ctx context.Context, jobID int64) (*model.Job, error)
	LockProfile(ctx context.Context, profileID int64) (*model.Profile, error)
	GetJob(ctx context.Context, jobID int64) (*model.Job, error)
	TransferFunds(ctx context.Context, fromID, toID int64, amount decimal.Decimal) error
	MarkJobPaid(ctx context.Context, jobID int64, paidAt time.Time) error
	SumUnpaidForClient(ctx context.Context, clientID int64) (decimal.Decimal, error)
	IncrementBalance(ctx context.Context, profileID int64, expected, amount decimal.Decimal) (decimal.Decimal, error)
}

type Store struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewStore(db *gorm.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

// InTx runs fn in a serializable transaction. The transaction commits when fn
// returns nil and rolls back on error or panic.
func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&gormTx{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) LockJob(ctx context.Context, jobID int64) (*model.Job, error) {
	var row jobRow
	err := t.db.WithContext(ctx).Raw(jobSelect+`
		WHERE j.id = ?
		FOR UPDATE OF j
	`, jobID).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return row.toModel(), nil
}

func (t *gormTx) GetJob(ctx context.Context, jobID int64) (*model.Job, error) {
	return getJob(ctx, t.db, jobID)
}

func (t *gormTx) LockProfile(ctx context.Context, profileID int64) (*model.Profile, error) {
	var profile model.Profile
	err := t.db.WithContext(ctx).Raw(profileSelect+`
		WHERE id = ?
		FOR UPDATE
	`, profileID).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &profile, nil
}

func (t *gormTx) TransferFunds(ctx context.Context, fromID, toID int64, amount decimal.Decimal) error {
	debit := t.db.WithContext(ctx).Exec(`
		UPDATE profiles
		SET balance = balance - ?, updated_at = NOW()
		WHERE id = ? AND balance >= ?
	`, amount, fromID, amount)
	if debit.Error != nil {
		return debit.Error
	}
	if debit.RowsAffected != 1 {
		return ErrConcurrentUpdate
	}

	credit := t.db.WithContext(ctx).Exec(`
		UPDATE profiles
		SET balance = balance + ?, updated_at = NOW()
		WHERE id = ?
	`, amount, toID)
	if credit.Error != nil {
		return credit.Error
	}
	if credit.RowsAffected != 1 {
		return ErrConcurrentUpdate
	}
	return nil
}

func (t *gormTx) MarkJobPaid(ctx context.Context, jobID int64, paidAt time.Time) error {
	res := t.db.WithContext(ctx).Exec(`
		UPDATE jobs
		SET paid = TRUE, payment_date = ?, updated_at = NOW()
		WHERE id = ? AND paid = FALSE
	`, paidAt, jobID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrConcurrentUpdate
	}
	return nil
}

func (t *gormTx) SumUnpaidForClient(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := t.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(j.price), 0) AS total
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		WHERE j.paid = FALSE
			AND c.status = 'in_progress'
			AND c.client_id = ?
	`, clientID).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (t *gormTx) IncrementBalance(ctx context.Context, profileID int64, expected, amount decimal.Decimal) (decimal.Decimal, error) {
	var row struct {
		Balance decimal.Decimal
	}
	res := t.db.WithContext(ctx).Raw(`
		UPDATE profiles
		SET balance = balance + ?, updated_at = NOW()
		WHERE id = ? AND balance = ?
		RETURNING balance
	`, amount, profileID, expected).Scan(&row)
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, ErrConcurrentUpdate
	}
	return row.Balance, nil
}
