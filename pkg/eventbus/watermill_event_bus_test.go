package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestcrm/automata/pkg/channels/gochannel"
	"github.com/harvestcrm/automata/pkg/eventbus"
	"github.com/harvestcrm/automata/pkg/events"
	"github.com/harvestcrm/automata/pkg/models"
)

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	received := make(chan *events.ContactActivity, 1)

	err = bus.Handle(events.ContactActivityEvent, func(_ context.Context, event any) error {
		activity, ok := event.(*events.ContactActivity)
		require.True(t, ok)

		received <- activity

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	activity := events.ContactActivity{
		BaseEvent:    events.NewBaseEvent(events.ContactActivityEvent, "contact-1"),
		ActivityType: models.ActivityFormSubmitted,
		ActivityData: map[string]any{"form": "pricing"},
	}

	require.NoError(t, bus.Publish(ctx, "contact-1", activity))

	select {
	case got := <-received:
		assert.Equal(t, "contact-1", got.ContactID)
		assert.Equal(t, models.ActivityFormSubmitted, got.ActivityType)
		assert.Equal(t, "pricing", got.ActivityData["form"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	require.NoError(t, bus.Close())
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for sweep events; the message must not wedge the
	// subscription.
	sweep := events.SweepCompleted{
		BaseEvent: events.NewBaseEvent(events.SweepCompletedEvent, ""),
		Sweep:     "wait_resume",
	}

	assert.NoError(t, bus.Publish(ctx, "sweeper", sweep))
	assert.NoError(t, bus.Close())
}
