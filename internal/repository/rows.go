package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/marketplace-api/internal/model"
)

const profileSelect = `
	SELECT id, first_name, last_name, profession, balance, type, created_at, updated_at
	FROM profiles
`

const contractSelect = `
	SELECT id, terms, status, client_id, contractor_id, created_at, updated_at
	FROM contracts
`

const jobSelect = `
	SELECT
		j.id,
		j.description,
		j.price,
		j.paid,
		j.payment_date,
		j.contract_id,
		j.created_at,
		j.updated_at,
		c.terms AS contract_terms,
		c.status AS contract_status,
		c.client_id AS contract_client_id,
		c.contractor_id AS contract_contractor_id,
		c.created_at AS contract_created_at,
		c.updated_at AS contract_updated_at
	FROM jobs j
	JOIN contracts c ON c.id = j.contract_id
`

type jobRow struct {
	ID                   int64
	Description          string
	Price                decimal.Decimal
	Paid                 bool
	PaymentDate          *time.Time
	ContractID           int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
	ContractTerms        string
	ContractStatus       string
	ContractClientID     int64
	ContractContractorID int64
	ContractCreatedAt    time.Time
	ContractUpdatedAt    time.Time
}

func (r jobRow) toModel() *model.Job {
	return &model.Job{
		ID:          r.ID,
		Description: r.Description,
		Price:       r.Price,
		Paid:        r.Paid,
		PaymentDate: r.PaymentDate,
		ContractID:  r.ContractID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Contract: &model.Contract{
			ID:           r.ContractID,
			Terms:        r.ContractTerms,
			Status:       model.ContractStatus(r.ContractStatus),
			ClientID:     r.ContractClientID,
			ContractorID: r.ContractContractorID,
			CreatedAt:    r.ContractCreatedAt,
			UpdatedAt:    r.ContractUpdatedAt,
		},
	}
}

func getJob(ctx context.Context, db *gorm.DB, jobID int64) (*model.Job, error) {
	var row jobRow
	err := db.WithContext(ctx).Raw(jobSelect+`
		WHERE j.id = ?
		LIMIT 1
	`, jobID).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return row.toModel(), nil
}
