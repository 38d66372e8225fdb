package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nurpe/marketplace-api/internal/auth"
	"github.com/nurpe/marketplace-api/internal/model"
)

type JobReader interface {
	ListUnpaidForProfile(ctx context.Context, profileID int64) ([]model.Job, error)
	GetReceipt(ctx context.Context, jobID int64) (*model.PaymentReceipt, error)
}

type ReceiptRenderer interface {
	Generate(receipt model.PaymentReceipt) ([]byte, error)
}

type JobService struct {
	jobs     JobReader
	receipts ReceiptRenderer
}

func NewJobService(jobs JobReader, receipts ReceiptRenderer) *JobService {
	return &JobService{jobs: jobs, receipts: receipts}
}

func (s *JobService) ListUnpaid(ctx context.Context, caller model.Profile) ([]model.Job, error) {
	return s.jobs.ListUnpaidForProfile(ctx, caller.ID)
}

type ReceiptResult struct {
	FileName string
	Content  []byte
}

// Receipt renders a PDF for a paid job. Only the contract parties see it.
func (s *JobService) Receipt(ctx context.Context, caller model.Profile, jobID int64) (*ReceiptResult, error) {
	if jobID <= 0 {
		return nil, newError(ErrInvalidInput, "Invalid job ID")
	}

	receipt, err := s.jobs.GetReceipt(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrNotFound, MsgJobNotFound)
		}
		return nil, err
	}
	if !auth.CanViewContract(caller, receipt.Contract) {
		return nil, newError(ErrNotFound, MsgJobNotFound)
	}
	if !receipt.Job.Paid {
		return nil, newError(ErrConflict, MsgJobNotPaid)
	}

	content, err := s.receipts.Generate(*receipt)
	if err != nil {
		return nil, err
	}
	return &ReceiptResult{
		FileName: fmt.Sprintf("receipt-job-%d.pdf", receipt.Job.ID),
		Content:  content,
	}, nil
}
