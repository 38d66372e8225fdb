package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/nurpe/marketplace-api/internal/auth"
	"github.com/nurpe/marketplace-api/internal/model"
)

type ContractReader interface {
	GetByID(ctx context.Context, id int64) (*model.Contract, error)
	ListActiveForProfile(ctx context.Context, profileID int64) ([]model.Contract, error)
}

type ContractService struct {
	contracts ContractReader
}

func NewContractService(contracts ContractReader) *ContractService {
	return &ContractService{contracts: contracts}
}

// GetContract returns the contract only to its parties. Absent and foreign
// contracts produce the same error.
func (s *ContractService) GetContract(ctx context.Context, caller model.Profile, id int64) (*model.Contract, error) {
	if id <= 0 {
		return nil, newError(ErrInvalidInput, "Invalid contract ID")
	}

	contract, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrNotFound, MsgContractNotFound)
		}
		return nil, err
	}
	if !auth.CanViewContract(caller, *contract) {
		return nil, newError(ErrNotFound, MsgContractNotFound)
	}
	return contract, nil
}

func (s *ContractService) ListContracts(ctx context.Context, caller model.Profile) ([]model.Contract, error) {
	return s.contracts.ListActiveForProfile(ctx, caller.ID)
}
