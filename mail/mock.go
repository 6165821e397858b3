package mail

import (
	"context"
	"log/slog"

	"rss-notifier/pkg/notifier"
)

// MockProvider is a mock email provider for local development.
type MockProvider struct {
	logger *slog.Logger
}

// NewMockProvider creates a new mock email provider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{
		logger: logger,
	}
}

// SendBulk logs the emails instead of sending them.
func (m *MockProvider) SendBulk(ctx context.Context, emails []notifier.Email) error {
	for _, email := range emails {
		to := ""
		if len(email.To) > 0 {
			to = email.To[0].Email
		}
		m.logger.Info("MOCK EMAIL",
			"to", to,
			"subject", email.Subject,
			"html_length", len(email.HTML),
			"text_length", len(email.Text))
	}
	return nil
}
