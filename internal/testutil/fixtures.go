package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/marketplace-api/internal/model"
)

// Fixture is a small marketplace: one client with 1000 and two unpaid 100
// jobs on an in-progress contract (200 outstanding), plus noise that must not
// count towards the outstanding total.
type Fixture struct {
	Client      model.Profile
	Contractor  model.Profile
	OtherClient model.Profile

	Active     model.Contract
	Terminated model.Contract
	Foreign    model.Contract

	UnpaidJob     model.Job
	SecondJob     model.Job
	PaidJob       model.Job
	TerminatedJob model.Job
	ForeignJob    model.Job
}

func Money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func Seed(s *Store) Fixture {
	var f Fixture

	f.Client = s.AddProfile(model.Profile{
		FirstName: "Harry", LastName: "Potter", Profession: "Wizard",
		Balance: Money("1000"), Type: model.ProfileTypeClient,
	})
	f.Contractor = s.AddProfile(model.Profile{
		FirstName: "John", LastName: "Lenon", Profession: "Musician",
		Balance: Money("0"), Type: model.ProfileTypeContractor,
	})
	f.OtherClient = s.AddProfile(model.Profile{
		FirstName: "Mr", LastName: "Robot", Profession: "Hacker",
		Balance: Money("500"), Type: model.ProfileTypeClient,
	})

	f.Active = s.AddContract(model.Contract{
		Terms: "active", Status: model.ContractStatusInProgress,
		ClientID: f.Client.ID, ContractorID: f.Contractor.ID,
	})
	f.Terminated = s.AddContract(model.Contract{
		Terms: "terminated", Status: model.ContractStatusTerminated,
		ClientID: f.Client.ID, ContractorID: f.Contractor.ID,
	})
	f.Foreign = s.AddContract(model.Contract{
		Terms: "foreign", Status: model.ContractStatusInProgress,
		ClientID: f.OtherClient.ID, ContractorID: f.Contractor.ID,
	})

	f.UnpaidJob = s.AddJob(model.Job{Description: "work", Price: Money("100"), ContractID: f.Active.ID})
	f.SecondJob = s.AddJob(model.Job{Description: "more work", Price: Money("100"), ContractID: f.Active.ID})

	paidAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	f.PaidJob = s.AddJob(model.Job{
		Description: "done", Price: Money("300"), Paid: true, PaymentDate: &paidAt, ContractID: f.Active.ID,
	})
	f.TerminatedJob = s.AddJob(model.Job{Description: "stale", Price: Money("1000"), ContractID: f.Terminated.ID})
	f.ForeignJob = s.AddJob(model.Job{Description: "theirs", Price: Money("50"), ContractID: f.Foreign.ID})

	return f
}
