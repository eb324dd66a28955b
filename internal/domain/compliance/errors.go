package compliance

import "github.com/m-mizutani/goerr/v2"

var (
	ErrInvalidDate          = goerr.New("invalid date")
	ErrInvalidWarningWindow = goerr.New("warning window must not be negative")
	ErrUnknownStatus        = goerr.New("unknown compliance status")
	ErrUnknownCategory      = goerr.New("unknown requirement category")
	ErrRequirementNotFound  = goerr.New("requirement not found")
	ErrEmployeeNotFound     = goerr.New("employee not found")
	ErrDuplicateCode        = goerr.New("requirement code already exists")
	ErrImportFailed         = goerr.New("assignment import rolled back")
	ErrNoTransactions       = goerr.New("store cannot open a transaction")
)
