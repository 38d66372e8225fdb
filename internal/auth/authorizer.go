package auth

import "github.com/nurpe/marketplace-api/internal/model"

type Decision int

const (
	Allowed Decision = iota
	DeniedRole
	DeniedOwnership
)

// CanViewContract reports whether the caller is a party to the contract.
// Callers must answer "not found" when this is false so ownership is not
// distinguishable from absence.
func CanViewContract(caller model.Profile, contract model.Contract) bool {
	return contract.IsParty(caller.ID)
}

// AuthorizeJobPayment checks role before ownership: only a client may pay,
// and only for jobs of contracts where it is the client.
func AuthorizeJobPayment(caller model.Profile, contract model.Contract) Decision {
	if !caller.IsClient() {
		return DeniedRole
	}
	if contract.ClientID != caller.ID {
		return DeniedOwnership
	}
	return Allowed
}
