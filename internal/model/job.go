package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Job struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Paid        bool            `json:"paid"`
	PaymentDate *time.Time      `json:"paymentDate"`
	ContractID  int64           `json:"ContractId"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Contract    *Contract       `json:"Contract,omitempty"`
}

// PaymentReceipt is everything needed to render proof of a paid job.
type PaymentReceipt struct {
	Job        Job
	Contract   Contract
	Client     Profile
	Contractor Profile
}
