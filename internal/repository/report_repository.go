package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nurpe/marketplace-api/internal/model"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// TopProfessions ranks contractor professions by paid job totals with
// payment_date in [from, to).
func (r *ReportRepository) TopProfessions(ctx context.Context, from, to time.Time, limit int) ([]model.ProfessionEarnings, error) {
	rows := make([]model.ProfessionEarnings, 0)
	if err := r.db.WithContext(ctx).Raw(`
		SELECT
			p.profession,
			SUM(j.price) AS earned
		FROM profiles p
		JOIN contracts c ON c.contractor_id = p.id
		JOIN jobs j ON j.contract_id = c.id
		WHERE j.paid = TRUE
			AND j.payment_date >= ?
			AND j.payment_date < ?
		GROUP BY p.profession
		ORDER BY earned DESC, MAX(j.payment_date) ASC, p.profession ASC
		LIMIT ?
	`, from, to, limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TopClients ranks clients by paid job totals with payment_date in [from, to).
func (r *ReportRepository) TopClients(ctx context.Context, from, to time.Time, limit int) ([]model.ClientPayments, error) {
	rows := make([]model.ClientPayments, 0)
	if err := r.db.WithContext(ctx).Raw(`
		SELECT
			p.id,
			p.first_name || ' ' || p.last_name AS full_name,
			SUM(j.price) AS paid
		FROM profiles p
		JOIN contracts c ON c.client_id = p.id
		JOIN jobs j ON j.contract_id = c.id
		WHERE j.paid = TRUE
			AND j.payment_date >= ?
			AND j.payment_date < ?
		GROUP BY p.id, p.first_name, p.last_name
		ORDER BY paid DESC, p.id ASC
		LIMIT ?
	`, from, to, limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
