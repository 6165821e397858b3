package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rss-notifier/pkg/notifier"
)

//go:embed tmpl/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "tmpl/*.tmpl"))

// Sender renders notification emails and hands them to a provider.
type Sender struct {
	provider       Provider
	logger         *slog.Logger
	from           notifier.Contact
	subject        string
	unsubscribeURL string
}

// New creates an email sender with the given provider.
func New(provider Provider, logger *slog.Logger, from notifier.Contact, subject, unsubscribeURL string) *Sender {
	return &Sender{
		provider:       provider,
		logger:         logger,
		from:           from,
		subject:        subject,
		unsubscribeURL: unsubscribeURL,
	}
}

// Render builds the outbound email notifying a subscriber about one item.
// The text body is derived from the rendered HTML so both stay in sync.
func (s *Sender) Render(sub *notifier.Subscriber, item notifier.Item) (notifier.Email, error) {
	data := map[string]any{
		"EmailAddress":   sub.EmailAddress,
		"UnsubscribeURL": s.unsubscribeURL,
		"Item":           item,
		"PublishedAt":    item.PublishedAt.UTC().Format("Jan 2, 2006 at 3:04 PM"),
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "new_entry.tmpl", data); err != nil {
		return notifier.Email{}, fmt.Errorf("render template: %w", err)
	}

	html := buf.String()
	text, err := htmlToText(html)
	if err != nil {
		return notifier.Email{}, fmt.Errorf("extract text body: %w", err)
	}

	return notifier.Email{
		From:    s.from,
		To:      []notifier.Contact{{Email: sub.EmailAddress}},
		Subject: s.subject,
		HTML:    html,
		Text:    text,
	}, nil
}

// Dispatch sends the rendered emails through the configured provider.
func (s *Sender) Dispatch(ctx context.Context, emails []notifier.Email) error {
	return s.provider.SendBulk(ctx, emails)
}

// htmlToText extracts the readable text from a rendered HTML body, one line
// per non-empty text run.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n"), nil
}
