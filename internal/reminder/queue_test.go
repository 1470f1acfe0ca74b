package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birthdaybot/internal/domain"
)

func TestQueueFIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	var ids []domain.Event
	for i := 0; i < 200; i++ {
		ev := domain.Event{ID: domain.NewID(), Label: "x"}
		ids = append(ids, ev)
		q.Push(ev)
	}
	assert.Equal(t, 200, q.Len())
	for i := 0; i < 200; i++ {
		ev, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, ids[i].ID, ev.ID)
	}
	_, ok := q.TryPop()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	want := domain.Event{ID: domain.NewID()}
	got := make(chan domain.Event, 1)
	go func() {
		ev, err := q.Pop(context.Background())
		if err == nil {
			got <- ev
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(want)
	select {
	case ev := <-got:
		assert.Equal(t, want.ID, ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not wake up")
	}
}

func TestQueuePopHonoursCancel(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
