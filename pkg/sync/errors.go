package sync

import "fmt"

// ErrPersistentFailure marks a batch that exhausted its retry budget
// without a peer response (spec §4.7: "on persistent failure, sync yields
// control to the caller with a report").
type ErrPersistentFailure struct {
	BatchSize int
	Cause     error
}

func (e *ErrPersistentFailure) Error() string {
	return fmt.Sprintf("sync: batch of %d facts failed persistently: %v", e.BatchSize, e.Cause)
}

func (e *ErrPersistentFailure) Unwrap() error { return e.Cause }
