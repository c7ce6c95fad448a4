package interfaces

import "context"

// EventPublisher emits notifications about account lifecycle changes.
// A nil publisher is allowed everywhere; callers must tolerate it.
type EventPublisher interface {
	PublishAccountExpired(ctx context.Context, email, reason string) error
	PublishSyncCompleted(ctx context.Context, direction string, added, updated, removed, skipped, markedDeleted int) error
	Close() error
}
