package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nurpe/marketplace-api/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) GetByID(ctx context.Context, id int64) (*model.Job, error) {
	return getJob(ctx, r.db, id)
}

// ListUnpaidForProfile returns unpaid jobs of in-progress contracts where the
// profile is either party.
func (r *JobRepository) ListUnpaidForProfile(ctx context.Context, profileID int64) ([]model.Job, error) {
	var rows []jobRow
	if err := r.db.WithContext(ctx).Raw(jobSelect+`
		WHERE j.paid = FALSE
			AND c.status = 'in_progress'
			AND (c.client_id = ? OR c.contractor_id = ?)
		ORDER BY j.id ASC
	`, profileID, profileID).Scan(&rows).Error; err != nil {
		return nil, err
	}

	jobs := make([]model.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, *row.toModel())
	}
	return jobs, nil
}

func (r *JobRepository) GetReceipt(ctx context.Context, jobID int64) (*model.PaymentReceipt, error) {
	job, err := getJob(ctx, r.db, jobID)
	if err != nil {
		return nil, err
	}

	var profiles []model.Profile
	if err := r.db.WithContext(ctx).Raw(profileSelect+`
		WHERE id IN (?, ?)
	`, job.Contract.ClientID, job.Contract.ContractorID).Scan(&profiles).Error; err != nil {
		return nil, err
	}

	receipt := &model.PaymentReceipt{Job: *job, Contract: *job.Contract}
	for _, p := range profiles {
		switch p.ID {
		case job.Contract.ClientID:
			receipt.Client = p
		case job.Contract.ContractorID:
			receipt.Contractor = p
		}
	}
	if receipt.Client.ID == 0 || receipt.Contractor.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return receipt, nil
}
