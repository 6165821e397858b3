// Package mail renders notification emails and dispatches them through a
// pluggable provider.
package mail

import (
	"context"

	"rss-notifier/pkg/notifier"
)

// Provider defines the interface for email dispatch implementations.
type Provider interface {
	// SendBulk sends the given emails, honoring whatever pacing the
	// underlying service requires. Emails may be partially sent when an
	// error is returned.
	SendBulk(ctx context.Context, emails []notifier.Email) error
}
