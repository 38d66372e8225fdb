package service

import "errors"

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("conflict")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
)

// Error is a failure with a message safe to show to the caller. It matches
// its kind with errors.Is.
type Error struct {
	kind    error
	message string
	cause   error
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Kind() error {
	return e.kind
}

func (e *Error) Is(target error) bool {
	return target == e.kind
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind error, message string) *Error {
	return &Error{kind: kind, message: message}
}

func internalError(message string, cause error) *Error {
	return &Error{kind: ErrInternal, message: message, cause: cause}
}

const (
	MsgProfileIDRequired = "Profile ID is required"
	MsgInvalidProfileID  = "Invalid profile ID"
	MsgProfileNotFound   = "Profile not found"

	MsgJobNotFound        = "Job not found"
	MsgJobAlreadyPaid     = "Job is already paid"
	MsgOnlyClientsPay     = "Only clients can pay for jobs"
	MsgJobNotOwned        = "Job does not belong to your contracts"
	MsgInsufficientFunds  = "Insufficient balance"
	MsgContractorNotFound = "Contractor not found"
	MsgJobNotPaid         = "Job is not paid"

	MsgAmountRequired      = "Amount is required"
	MsgAmountNotPositive   = "Amount must be positive"
	MsgAmountPrecision     = "Amount must have at most 2 decimal places"
	MsgUserNotFound        = "User not found"
	MsgOnlyClientsDeposit  = "Only clients can make deposits"
	MsgDepositNotOwn       = "Deposits can only be made to your own balance"
	MsgDepositCapExceeded  = "Deposit amount exceeds 25% of total jobs to pay"
	MsgContractNotFound    = "Contract not found"
	MsgNoPaidJobsInRange   = "No paid jobs found in the specified date range"
	MsgTransactionConflict = "Transaction could not be completed, please retry"
)
