package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birthdaybot/internal/domain"
	"birthdaybot/internal/eventbus"
	logx "birthdaybot/pkg/logx"
)

func TestEngineRunsCycleOnStart(t *testing.T) {
	t.Parallel()

	owner := domain.User{ID: domain.NewID(), ChatID: 7, Locale: "ru"}
	today := domain.DayMonthOf(time.Now().UTC())
	ev := domain.Event{ID: domain.NewID(), OwnerID: owner.ID, Label: "Ann", Day: today.Day, Month: today.Month}

	sender := &fakeSender{}
	ledger := newFakeLedger()
	bus := eventbus.New()
	sent, unsub := bus.Subscribe(4, eventbus.ReminderSent)
	defer unsub()
	var logs syncBuffer

	e, err := NewEngine(Config{TriggerHour: 0, Timezone: "UTC", Pacing: time.Millisecond}, Deps{
		Source:   &fakeSource{events: []domain.Event{ev}},
		Users:    &fakeUsers{users: map[uuid.UUID]domain.User{owner.ID: owner}},
		Ledger:   ledger,
		Sender:   sender,
		Renderer: plainRenderer{},
		Bus:      bus,
		Log:      logx.NewWriter(&logs, "info"),
	})
	require.NoError(t, err)

	e.Start(context.Background())
	e.Start(context.Background())

	select {
	case <-sent:
	case <-time.After(3 * time.Second):
		t.Fatal("no reminder sent")
	}

	snap := e.Snapshot()
	assert.Len(t, snap.Supervisor.Tasks, 2)
	assert.True(t, snap.Next.After(time.Now()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Stop(ctx))
	require.NoError(t, e.Stop(ctx))

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ru|OnTheDay|Ann", msgs[0].text)
	assert.Equal(t, 1, ledger.len())

	var stopped []map[string]any
	for _, l := range logs.lines() {
		if l["message"] == "reminder engine stopped" {
			stopped = append(stopped, l)
		}
	}
	require.Len(t, stopped, 1)
	state, ok := stopped[0]["state"].(map[string]any)
	require.True(t, ok)
	tasks, ok := state["supervisor"].(map[string]any)["tasks"].([]any)
	require.True(t, ok)
	assert.Len(t, tasks, 2)
	assert.Contains(t, state, "next_trigger")
}

func TestNewEngineValidates(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(Config{TriggerHour: 9}, Deps{})
	assert.Error(t, err)

	_, err = NewEngine(Config{TriggerHour: 30}, Deps{
		Source:   &fakeSource{},
		Users:    &fakeUsers{},
		Ledger:   newFakeLedger(),
		Sender:   &fakeSender{},
		Renderer: plainRenderer{},
	})
	assert.Error(t, err)
}
