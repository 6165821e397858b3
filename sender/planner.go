package sender

import (
	"rss-notifier/pkg/notifier"
)

// Plan computes which subscribers should be notified about which item.
//
// Items must be sorted newest first. Each subscriber gets at most one
// decision per run: the scan short-circuits on the first qualifying item,
// which by the sort order is the newest one. A claimed set keyed by email
// guards against duplicate subscriber entries in the input.
func Plan(subscribers []*notifier.Subscriber, items []notifier.Item) []notifier.Decision {
	claimed := make(map[string]bool, len(subscribers))
	var decisions []notifier.Decision

	for _, sub := range subscribers {
		if claimed[sub.EmailAddress] {
			continue
		}
		for _, item := range items {
			if !qualifies(sub, item) {
				continue
			}
			decisions = append(decisions, notifier.Decision{Subscriber: sub, Item: item})
			claimed[sub.EmailAddress] = true
			break
		}
	}

	return decisions
}

// qualifies reports whether an item is news for a subscriber. A subscriber
// who has never been notified is bounded by their subscription time, so
// historical posts are not backfilled to new subscribers.
func qualifies(sub *notifier.Subscriber, item notifier.Item) bool {
	bound := sub.LastNotifiedAt
	if bound == 0 {
		bound = sub.SubscribedAt
	}
	return item.PublishedAt.Unix() > bound
}
