package credits

import "errors"

// Error taxonomy for payment processing. The controller maps these onto HTTP
// status codes; everything unrecognized is an unexpected error (500), which
// the provider may safely retry because nothing was granted.
var (
	// ErrOrderResolution means the order reference could not be decoded to a
	// user. A client/integration error, never retried.
	ErrOrderResolution = errors.New("order reference could not be resolved")

	// ErrPackageNotFound means the payload referenced no known credit package.
	ErrPackageNotFound = errors.New("credit package not found")

	// ErrAccountNotFound means the resolved user has no account row.
	ErrAccountNotFound = errors.New("account not found")

	// ErrLedgerWrite means the grant transaction failed before commit. The
	// balance was not touched, so the delivery is safe to retry.
	ErrLedgerWrite = errors.New("ledger write failed")
)
