package errors

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmptyChain     = errors.New("audit chain is empty")
	ErrTailConflict   = errors.New("concurrent append raced on the chain tail")
	ErrAppendFailed   = errors.New("audit append failed")
	ErrChainBroken    = errors.New("audit chain integrity broken")
	ErrRunNotFound    = errors.New("verification run not found")
	ErrAckNotFound    = errors.New("alert acknowledgment not found")
	ErrAlertNotBroken = errors.New("verification run is intact, no alert to acknowledge")
	ErrKeyMaterial    = errors.New("audit hash key unavailable")
)
