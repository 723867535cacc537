package domain

import "time"

// TransactionCompleted is published after a posting commits. Publishing is
// best-effort; the committed unit is never rolled back for a publish failure.
type TransactionCompleted struct {
	RequestID  string          `json:"request_id,omitempty"`
	AccountID  int64           `json:"account_id"`
	Kind       TransactionKind `json:"kind"`
	Amount     string          `json:"amount"`
	NewBalance string          `json:"new_balance"`
	OccurredAt time.Time       `json:"occurred_at"`
}
