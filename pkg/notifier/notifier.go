// Package notifier contains the core domain types for the RSS notification service.
package notifier

import "time"

// Subscriber is one email address enrolled on the mailing list.
// Timestamps are unix seconds; a LastNotifiedAt of 0 means never notified.
type Subscriber struct {
	EmailAddress   string `json:"email_address"`
	SubscribedAt   int64  `json:"subscribed_at"`
	LastNotifiedAt int64  `json:"last_notified_at"`
}

// Item is one normalized entry from the monitored RSS feed.
// Items are never persisted; they are rebuilt from the feed on every run.
type Item struct {
	PublishedAt time.Time
	ID          string
	Link        string
	Title       string
	Description string
}

// Decision pairs a subscriber with the item they will be notified about.
// A run produces at most one Decision per subscriber.
type Decision struct {
	Subscriber *Subscriber
	Item       Item
}

// Contact is an email sender or recipient.
type Contact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Email is one outbound message. The JSON shape matches the MailerSend
// bulk-email endpoint, so a batch can be marshalled directly.
type Email struct {
	From    Contact   `json:"from"`
	To      []Contact `json:"to"`
	Subject string    `json:"subject"`
	HTML    string    `json:"html"`
	Text    string    `json:"text"`
}
