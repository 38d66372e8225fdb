package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/nurpe/marketplace-api/internal/metrics"
	"github.com/nurpe/marketplace-api/internal/model"
	"github.com/nurpe/marketplace-api/internal/testutil"
	"github.com/nurpe/marketplace-api/internal/txn"
)

func testPolicy() txn.Policy {
	return txn.Policy{MaxAttempts: 3}
}

func newPaymentService(store TxRunner) *PaymentService {
	return NewPaymentService(store, testPolicy(), metrics.New(), zerolog.Nop())
}

func assertServiceError(t *testing.T, err error, kind error, message string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error %q, got nil", kind, message)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("err = %v, want kind %v", err, kind)
	}
	if err.Error() != message {
		t.Fatalf("message = %q, want %q", err.Error(), message)
	}
}

func balanceOf(t *testing.T, store *testutil.Store, id int64) string {
	t.Helper()
	p, ok := store.Profile(id)
	if !ok {
		t.Fatalf("profile %d missing", id)
	}
	return p.Balance.StringFixed(2)
}

func TestPayJobSuccess(t *testing.T) {
	store := testutil.NewStore()
	f := testutil.Seed(store)
	svc := newPaymentService(store)
	totalBefore := store.TotalBalance()

	job, err := svc.PayJob(context.Background(), f.Client, f.UnpaidJob.ID)
	if err != nil {
		t.Fatalf("PayJob: %v", err)
	}

	if !job.Paid {
		t.Error("returned job is not paid")
	}
	if job.PaymentDate == nil {
		t.Error("returned job has no payment date")
	}
	if job.Contract == nil || job.Contract.ID != f.Active.ID {
		t.Errorf("returned job contract = %+v, want contract %d", job.Contract, f.Active.ID)
	}
	if got := balanceOf(t, store, f.Client.ID); got != "900.00" {
		t.Errorf("client balance = %s, want 900.00", got)
	}
	if got := balanceOf(t, store, f.Contractor.ID); got != "100.00" {
		t.Errorf("contractor balance = %s, want 100.00", got)
	}
	stored, _ := store.Job(f.UnpaidJob.ID)
	if !stored.Paid || stored.PaymentDate == nil {
		t.Errorf("stored job = %+v, want paid with payment date", stored)
	}
	if !store.TotalBalance().Equal(totalBefore) {
		t.Errorf("total balance changed from %s to %s", totalBefore, store.TotalBalance())
	}
}

func TestPayJobRejections(t *testing.T) {
	store := testutil.NewStore()
	f := testutil.Seed(store)

	poor := store.AddProfile(model.Profile{FirstName: "Poor", LastName: "Client", Balance: testutil.Money("50"), Type: model.ProfileTypeClient})
	poorContract := store.AddContract(model.Contract{Status: model.ContractStatusInProgress, ClientID: poor.ID, ContractorID: f.Contractor.ID})
	poorJob := store.AddJob(model.Job{Description: "pricey", Price: testutil.Money("50.01"), ContractID: poorContract.ID})

	orphanContract := store.AddContract(model.Contract{Status: model.ContractStatusInProgress, ClientID: f.Client.ID, ContractorID: 9999})
	orphanJob := store.AddJob(model.Job{Description: "orphan", Price: testutil.Money("10"), ContractID: orphanContract.ID})

	tests := []struct {
		name    string
		caller  model.Profile
		jobID   int64
		kind    error
		message string
	}{
		{name: "unknown job", caller: f.Client, jobID: 424242, kind: ErrNotFound, message: MsgJobNotFound},
		{name: "already paid", caller: f.Client, jobID: f.PaidJob.ID, kind: ErrConflict, message: MsgJobAlreadyPaid},
		{name: "paid check precedes role check", caller: f.Contractor, jobID: f.PaidJob.ID, kind: ErrConflict, message: MsgJobAlreadyPaid},
		{name: "contractor cannot pay", caller: f.Contractor, jobID: f.UnpaidJob.ID, kind: ErrPermissionDenied, message: MsgOnlyClientsPay},
		{name: "foreign contract", caller: f.OtherClient, jobID: f.UnpaidJob.ID, kind: ErrPermissionDenied, message: MsgJobNotOwned},
		{name: "insufficient balance", caller: poor, jobID: poorJob.ID, kind: ErrConflict, message: MsgInsufficientFunds},
		{name: "missing contractor", caller: f.Client, jobID: orphanJob.ID, kind: ErrNotFound, message: MsgContractorNotFound},
		{name: "invalid id", caller: f.Client, jobID: 0, kind: ErrInvalidInput, message: "Invalid job ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totalBefore := store.TotalBalance()
			jobBefore, _ := store.Job(tt.jobID)

			_, err := newPaymentService(store).PayJob(context.Background(), tt.caller, tt.jobID)
			assertServiceError(t, err, tt.kind, tt.message)

			if !store.TotalBalance().Equal(totalBefore) {
				t.Errorf("total balance changed from %s to %s", totalBefore, store.TotalBalance())
			}
			jobAfter, _ := store.Job(tt.jobID)
			if jobAfter.Paid != jobBefore.Paid {
				t.Errorf("job paid flag changed from %v to %v", jobBefore.Paid, jobAfter.Paid)
			}
		})
	}

	if got := balanceOf(t, store, f.Client.ID); got != "1000.00" {
		t.Errorf("client balance = %s, want 1000.00", got)
	}
	if got := balanceOf(t, store, poor.ID); got != "50.00" {
		t.Errorf("poor client balance = %s, want 50.00", got)
	}
}

func TestPayJobTwiceFailsWithoutMutation(t *testing.T) {
	store := testutil.NewStore()
	f := testutil.Seed(store)
	svc := newPaymentService(store)

	if _, err := svc.PayJob(context.Background(), f.Client, f.UnpaidJob.ID); err != nil {
		t.Fatalf("first PayJob: %v", err)
	}
	first, _ := store.Job(f.UnpaidJob.ID)

	for i := 0; i < 3; i++ {
		_, err := svc.PayJob(context.Background(), f.Client, f.UnpaidJob.ID)
		assertServiceError(t, err, ErrConflict, MsgJobAlreadyPaid)
	}

	if got := balanceOf(t, store, f.Client.ID); got != "900.00" {
		t.Errorf("client balance = %s, want 900.00", got)
	}
	if got := balanceOf(t, store, f.Contractor.ID); got != "100.00" {
		t.Errorf("contractor balance = %s, want 100.00", got)
	}
	again, _ := store.Job(f.UnpaidJob.ID)
	if !again.PaymentDate.Equal(*first.PaymentDate) {
		t.Errorf("payment date moved from %v to %v", first.PaymentDate, again.PaymentDate)
	}
}

func TestPayJobConcurrentAttempts(t *testing.T) {
	store := testutil.NewStore()
	f := testutil.Seed(store)
	svc := newPaymentService(store)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PayJob(context.Background(), f.Client, f.UnpaidJob.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict) && err.Error() == MsgJobAlreadyPaid:
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successes = %d, want 1", successes)
	}
	if conflicts != attempts-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, attempts-1)
	}
	if len(others) > 0 {
		t.Errorf("unexpected errors: %v", others)
	}
	if got := balanceOf(t, store, f.Client.ID); got != "900.00" {
		t.Errorf("client balance = %s, want 900.00", got)
	}
	if got := balanceOf(t, store, f.Contractor.ID); got != "100.00" {
		t.Errorf("contractor balance = %s, want 100.00", got)
	}
}

func TestPayJobRetriesSerializationFailure(t *testing.T) {
	store := testutil.NewStore()
	f := testutil.Seed(store)
	store.FailCommits(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})

	job, err := newPaymentService(store).PayJob(context.Background(), f.Client, f.UnpaidJob.ID)
	if err != nil {
		t.Fatalf("PayJob: %v", err)
	}
	if !job.Paid {
		t.Error("job not paid after retry")
	}
	if store.Rollbacks() != 1 || store.Commits() != 1 {
		t.Errorf("rollbacks = %d, commits = %d, want 1 and 1", store.Rollbacks(), store.Commits())
	}
	if got := balanceOf(t, store, f.Client.ID); got != "900.00" {
		t.Errorf("client balance = %s, want 900.00", got)
	}
}

func TestPayJobRetryExhaustion(t *testing.T) {
	store := testutil.NewStore()
	f := testutil.Seed(store)
	conflict := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	store.FailCommits(conflict, conflict, conflict)

	_, err := newPaymentService(store).PayJob(context.Background(), f.Client, f.UnpaidJob.ID)
	assertServiceError(t, err, ErrInternal, MsgTransactionConflict)
	if !errors.Is(err, txn.ErrRetriesExhausted) {
		t.Errorf("err = %v, want it to wrap ErrRetriesExhausted", err)
	}

	job, _ := store.Job(f.UnpaidJob.ID)
	if job.Paid {
		t.Error("job must stay unpaid after exhausted retries")
	}
	if got := balanceOf(t, store, f.Client.ID); got != "1000.00" {
		t.Errorf("client balance = %s, want 1000.00", got)
	}
}

func TestPayJobDoesNotRetryStorageErrors(t *testing.T) {
	store := testutil.NewStore()
	f := testutil.Seed(store)
	errDisk := errors.New("disk full")
	store.FailCommits(errDisk)

	_, err := newPaymentService(store).PayJob(context.Background(), f.Client, f.UnpaidJob.ID)
	if !errors.Is(err, errDisk) {
		t.Fatalf("err = %v, want errDisk", err)
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		t.Errorf("storage error surfaced as service error %q", svcErr)
	}
	if store.Rollbacks() != 1 {
		t.Errorf("rollbacks = %d, want 1", store.Rollbacks())
	}
}
