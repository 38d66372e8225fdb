package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nurpe/marketplace-api/internal/model"
)

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) GetByID(ctx context.Context, id int64) (*model.Contract, error) {
	var contract model.Contract
	if err := r.db.WithContext(ctx).Raw(contractSelect+`
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&contract).Error; err != nil {
		return nil, err
	}
	if contract.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &contract, nil
}

// ListActiveForProfile returns the non-terminated contracts the profile is a party to.
func (r *ContractRepository) ListActiveForProfile(ctx context.Context, profileID int64) ([]model.Contract, error) {
	contracts := make([]model.Contract, 0)
	if err := r.db.WithContext(ctx).Raw(contractSelect+`
		WHERE (client_id = ? OR contractor_id = ?)
			AND status <> 'terminated'
		ORDER BY id ASC
	`, profileID, profileID).Scan(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}
