// Package live defines the live-notification collaborator the session
// orchestrator connects after login and disconnects on logout.
package live

import "context"

// Notifier manages the per-operator real-time subscription.
type Notifier interface {
	// Connect subscribes to notifications for userID
	Connect(ctx context.Context, userID string) error

	// Disconnect tears the subscription down; calling it when not
	// connected is a no-op
	Disconnect() error
}

// Nop is a Notifier that does nothing, used when no broker is configured.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) Connect(context.Context, string) error { return nil }
func (Nop) Disconnect() error                     { return nil }
