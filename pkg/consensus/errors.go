package consensus

import "fmt"

// ErrNotEnabled is returned when a transition's precondition fails — the
// Go-idiomatic counterpart to the original source's TransitionResult::NotEnabled("reason").
type ErrNotEnabled struct {
	Reason string
}

func (e *ErrNotEnabled) Error() string { return fmt.Sprintf("consensus: not enabled: %s", e.Reason) }

func notEnabled(format string, args ...any) error {
	return &ErrNotEnabled{Reason: fmt.Sprintf(format, args...)}
}
