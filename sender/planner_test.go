package sender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rss-notifier/pkg/notifier"
)

func item(id string, publishedAt int64) notifier.Item {
	return notifier.Item{
		ID:          id,
		Link:        "https://example.com/" + id,
		Title:       "Post " + id,
		PublishedAt: time.Unix(publishedAt, 0),
	}
}

func TestPlanNeverNotifiedBoundBySubscriptionTime(t *testing.T) {
	items := []notifier.Item{item("b", 150), item("a", 100)}

	subs := []*notifier.Subscriber{
		{EmailAddress: "early@example.com", SubscribedAt: 50},
		{EmailAddress: "late@example.com", SubscribedAt: 200},
	}

	decisions := Plan(subs, items)

	require.Len(t, decisions, 1)
	assert.Equal(t, "early@example.com", decisions[0].Subscriber.EmailAddress)
	assert.Equal(t, "b", decisions[0].Item.ID, "newest qualifying item wins")
}

func TestPlanNotifiedBoundByLastNotifiedTime(t *testing.T) {
	items := []notifier.Item{item("b", 150), item("a", 100)}

	subs := []*notifier.Subscriber{
		// Subscribed long ago but already notified past both items.
		{EmailAddress: "caught-up@example.com", SubscribedAt: 10, LastNotifiedAt: 150},
		// Notified before the newest item.
		{EmailAddress: "behind@example.com", SubscribedAt: 10, LastNotifiedAt: 120},
	}

	decisions := Plan(subs, items)

	require.Len(t, decisions, 1)
	assert.Equal(t, "behind@example.com", decisions[0].Subscriber.EmailAddress)
	assert.Equal(t, "b", decisions[0].Item.ID)
}

func TestPlanAtMostOneDecisionPerSubscriber(t *testing.T) {
	items := []notifier.Item{item("c", 300), item("b", 200), item("a", 100)}

	subs := []*notifier.Subscriber{
		{EmailAddress: "sub@example.com", SubscribedAt: 50},
	}

	decisions := Plan(subs, items)

	require.Len(t, decisions, 1, "multiple qualifying items still yield one decision")
	assert.Equal(t, "c", decisions[0].Item.ID)
}

func TestPlanDuplicateSubscriberEntries(t *testing.T) {
	items := []notifier.Item{item("a", 100)}

	subs := []*notifier.Subscriber{
		{EmailAddress: "dup@example.com", SubscribedAt: 50},
		{EmailAddress: "dup@example.com", SubscribedAt: 50},
	}

	decisions := Plan(subs, items)

	assert.Len(t, decisions, 1)
}

func TestPlanBoundaryIsExclusive(t *testing.T) {
	items := []notifier.Item{item("a", 100)}

	subs := []*notifier.Subscriber{
		{EmailAddress: "exact@example.com", SubscribedAt: 100},
	}

	assert.Empty(t, Plan(subs, items), "item published exactly at the bound is not news")
}

func TestPlanNoItems(t *testing.T) {
	subs := []*notifier.Subscriber{
		{EmailAddress: "sub@example.com", SubscribedAt: 50},
	}

	assert.Empty(t, Plan(subs, nil))
}
