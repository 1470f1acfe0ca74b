package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFiltersByType(t *testing.T) {
	t.Parallel()

	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	sent, unsubSent := b.Subscribe(4, ReminderSent)
	defer unsubSent()

	b.Publish(Event{Type: ReminderQueued})
	b.Publish(Event{Type: ReminderSent, Data: "x"})

	require.Len(t, all, 2)
	require.Len(t, sent, 1)
	e := <-sent
	assert.Equal(t, "x", e.Data)
	assert.False(t, e.Time.IsZero())
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})
	assert.Len(t, ch, 1)

	unsub()
	unsub()
	b.Publish(Event{Type: "c"})
	_, ok := <-ch
	assert.True(t, ok)
	_, ok = <-ch
	assert.False(t, ok)
}
