// Package report defines the audit record of one scheduled pipeline run.
// The run report is the single source of truth for what happened in a run:
// every skipped ticker, user and symbol is enumerated with a machine-readable
// reason, not just a count.
package report

import "time"

// Machine-readable skip/failure reasons.
const (
	ReasonInsufficientHistory = "insufficient_history"
	ReasonMissingStats        = "missing_normalization_stats"
	ReasonUpstreamFetchError  = "upstream_fetch_error"
	ReasonWidthMismatch       = "observation_width_mismatch"
	ReasonNoModel             = "no_model"
	ReasonMissingCredentials  = "missing_credentials"
	ReasonNoPositionToSell    = "no_position_to_sell"
	ReasonInsufficientFunds   = "insufficient_funds"
	ReasonQuoteUnavailable    = "quote_unavailable"
	ReasonOrderRejected       = "order_rejected"
	ReasonAccountBlocked      = "account_blocked"
	ReasonPolicyUnavailable   = "policy_unavailable"
	ReasonRunInProgress       = "run_in_progress"
)

// Run status values.
const (
	RunStatusCompleted = "completed"
	RunStatusAborted   = "aborted"
)

// User outcome status values.
const (
	UserStatusSuccess = "success"
	UserStatusPartial = "partial"
	UserStatusFailed  = "failed"
	UserStatusSkipped = "skipped"
)

// Order result status values.
const (
	OrderStatusSubmitted = "submitted"
	OrderStatusSkipped   = "skipped"
	OrderStatusFailed    = "failed"
)

// TickerSkip records one ticker dropped before the policy call.
type TickerSkip struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// OrderResult records the outcome of one symbol within one user's turn.
type OrderResult struct {
	Ticker   string `json:"ticker"`
	Side     string `json:"side"` // buy | sell
	Quantity int64  `json:"quantity"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	OrderID  string `json:"order_id,omitempty"`
}

// UserOutcome records one user's execution turn.
type UserOutcome struct {
	Username string        `json:"username"`
	Status   string        `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Orders   []OrderResult `json:"orders,omitempty"`
}

// RunReport is the audit record of one pipeline run. It is created at run
// start, finalized exactly once at run end, and never mutated afterwards.
type RunReport struct {
	ID          string              `json:"id"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	Status      string              `json:"status"`
	AbortReason string              `json:"abort_reason,omitempty"`
	Actions     map[string][]string `json:"actions,omitempty"` // SELL/HOLD/BUY -> tickers
	Skips       []TickerSkip        `json:"skips,omitempty"`
	Users       []UserOutcome       `json:"users,omitempty"`

	finalized bool
}

// Finalize stamps the end time and status. Later calls are no-ops so a
// finalized report stays immutable.
func (r *RunReport) Finalize(status, abortReason string, at time.Time) {
	if r.finalized {
		return
	}
	r.Status = status
	r.AbortReason = abortReason
	r.FinishedAt = at
	r.finalized = true
}

// Finalized reports whether Finalize has run.
func (r *RunReport) Finalized() bool { return r.finalized }

// Summarize returns how the user turn went overall: failure everywhere is a
// failure, any mix of submitted and failed orders is partial.
func (u *UserOutcome) Summarize() string {
	if u.Status == UserStatusFailed || u.Status == UserStatusSkipped {
		return u.Status
	}
	var submitted, failed int
	for _, o := range u.Orders {
		switch o.Status {
		case OrderStatusSubmitted:
			submitted++
		case OrderStatusFailed:
			failed++
		}
	}
	if failed == 0 {
		return UserStatusSuccess
	}
	if submitted == 0 {
		return UserStatusFailed
	}
	return UserStatusPartial
}
