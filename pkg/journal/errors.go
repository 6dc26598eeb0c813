package journal

import "errors"

// Sentinel errors, following pkg/ledger/errors.go's pattern of one
// package-level var per "not found"/rejection condition so callers can
// errors.Is against them.
var (
	ErrFactNotFound       = errors.New("journal: fact not found")
	ErrNonceRegression    = errors.New("journal: nonce regression (equivocation)")
	ErrUnknownParent      = errors.New("journal: parent_hash does not reference a known fact")
	ErrSignatureInvalid   = errors.New("journal: signature does not verify against author key material")
	ErrCapabilityDenied   = errors.New("journal: capability check denied this payload kind")
	ErrCorrupt            = errors.New("journal: stored fact failed rehash")
)
