// Package policy adapts the trained decision model. The pipeline consumes
// it as a single capability: given a batch of observations, one action per
// ticker, deterministically.
package policy

import (
	"context"
	"errors"

	"karli/internal/decision"
)

// ErrPolicyUnavailable means the inference call failed as a whole. The run
// must abort: a partial or garbled policy response is not a safe basis for
// trading decisions.
var ErrPolicyUnavailable = errors.New("policy unavailable")

// Input is one ticker's observation row, in batch order.
type Input struct {
	Ticker string
	Vector []float32
}

// Policy maps a batch of observations to one action per ticker.
// Implementations must preserve batch order, must not drop entries, and must
// be deterministic for identical input (decision-time inference runs the
// model in argmax mode, not sampling).
type Policy interface {
	// Infer returns exactly one action per input, in input order, or fails
	// the whole batch with an error wrapping ErrPolicyUnavailable.
	Infer(ctx context.Context, batch []Input) ([]decision.TickerAction, error)

	// InputWidth is the observation vector length the policy expects.
	InputWidth() int

	// HasModel reports whether the policy can decide for the ticker.
	HasModel(ticker string) bool
}
