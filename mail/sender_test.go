package mail

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rss-notifier/pkg/notifier"
)

func testSender() *Sender {
	return New(NewMockProvider(slog.New(slog.DiscardHandler)), slog.New(slog.DiscardHandler),
		notifier.Contact{Email: "news@example.com", Name: "Example News"},
		"New post published!",
		"https://example.com/unsubscribe")
}

func TestRenderEmail(t *testing.T) {
	s := testSender()

	sub := &notifier.Subscriber{EmailAddress: "reader@example.com"}
	item := notifier.Item{
		ID:          "post-1",
		Link:        "https://example.com/blog/post-1",
		Title:       "A fresh post",
		Description: "Something new happened.",
		PublishedAt: time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC),
	}

	email, err := s.Render(sub, item)
	require.NoError(t, err)

	assert.Equal(t, "news@example.com", email.From.Email)
	require.Len(t, email.To, 1)
	assert.Equal(t, "reader@example.com", email.To[0].Email)
	assert.Equal(t, "New post published!", email.Subject)

	assert.Contains(t, email.HTML, "A fresh post")
	assert.Contains(t, email.HTML, `href="https://example.com/blog/post-1"`)
	assert.Contains(t, email.HTML, `href="https://example.com/unsubscribe"`)
	assert.Contains(t, email.HTML, "reader@example.com")
	assert.Contains(t, email.HTML, "Mar 14, 2026 at 9:26 AM")
}

func TestRenderTextBody(t *testing.T) {
	s := testSender()

	email, err := s.Render(
		&notifier.Subscriber{EmailAddress: "reader@example.com"},
		notifier.Item{
			ID:          "post-1",
			Link:        "https://example.com/blog/post-1",
			Title:       "A fresh post",
			Description: "Something new happened.",
			PublishedAt: time.Unix(1700000000, 0),
		})
	require.NoError(t, err)

	assert.NotContains(t, email.Text, "<", "text body must be tag-free")
	assert.Contains(t, email.Text, "A fresh post")
	assert.Contains(t, email.Text, "Something new happened.")
	assert.Contains(t, email.Text, "reader@example.com")

	for _, line := range strings.Split(email.Text, "\n") {
		assert.NotEmpty(t, strings.TrimSpace(line), "no blank lines in text body")
	}
}

func TestRenderEscapesItemFields(t *testing.T) {
	s := testSender()

	email, err := s.Render(
		&notifier.Subscriber{EmailAddress: "reader@example.com"},
		notifier.Item{
			ID:          "post-1",
			Link:        "https://example.com/blog/post-1",
			Title:       `<script>alert("x")</script>`,
			PublishedAt: time.Unix(1700000000, 0),
		})
	require.NoError(t, err)

	assert.NotContains(t, email.HTML, "<script>")
}
