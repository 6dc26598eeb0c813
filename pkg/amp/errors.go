package amp

import "fmt"

// ErrEpochMismatch is returned by Recv when a frame's chan_epoch does not
// match the channel's current epoch (spec §4.8's window policy).
type ErrEpochMismatch struct {
	Expected uint64
	Got      uint64
}

func (e *ErrEpochMismatch) Error() string {
	return fmt.Sprintf("amp: epoch mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ErrGenerationOutOfWindow is returned by Recv when a frame's ratchet_gen
// falls outside [current_gen - lookbehind, current_gen + lookahead].
type ErrGenerationOutOfWindow struct {
	Min uint64
	Max uint64
	Got uint64
}

func (e *ErrGenerationOutOfWindow) Error() string {
	return fmt.Sprintf("amp: generation %d out of window [%d, %d]", e.Got, e.Min, e.Max)
}

// ErrDecryptFailed wraps an AEAD verification failure on an in-window frame.
type ErrDecryptFailed struct {
	Cause error
}

func (e *ErrDecryptFailed) Error() string { return fmt.Sprintf("amp: decrypt failed: %v", e.Cause) }
func (e *ErrDecryptFailed) Unwrap() error { return e.Cause }

// ErrFlowBudgetExceeded is returned by Send when cost would push the
// per-peer budget over its ceiling; the send is never transmitted and no
// budget is charged (spec §4.8: "over-budget sends fail without
// transmitting").
type ErrFlowBudgetExceeded struct {
	Ceiling uint32
	Spent   uint32
	Cost    uint32
}

func (e *ErrFlowBudgetExceeded) Error() string {
	return fmt.Sprintf("amp: flow budget exceeded: spent=%d cost=%d ceiling=%d", e.Spent, e.Cost, e.Ceiling)
}
