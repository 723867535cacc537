package port

import "context"

type EventPublisher interface {
	// Publish emits a post-commit audit event. Best-effort: callers log
	// failures and never roll back committed state.
	Publish(ctx context.Context, event any) error
}
