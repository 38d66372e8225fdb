package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProfessionEarnings struct {
	Profession string          `json:"profession"`
	Earned     decimal.Decimal `json:"earned"`
}

type ClientPayments struct {
	ID       int64           `json:"id"`
	FullName string          `json:"fullName"`
	Paid     decimal.Decimal `json:"paid"`
}

type ReportKind string

const (
	ReportKindBestProfession ReportKind = "best-profession"
	ReportKindBestClients    ReportKind = "best-clients"
)

// EarningsReport is the export form of the admin reports.
type EarningsReport struct {
	Kind        ReportKind
	PeriodStart time.Time
	PeriodEnd   time.Time
	Professions []ProfessionEarnings
	Clients     []ClientPayments
}
