// Package queue receives contact events pushed by the CRM onto a Redis list
// and republishes them on the event bus for the trigger dispatcher.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/harvestcrm/automata/pkg/eventbus"
	"github.com/harvestcrm/automata/pkg/events"
	"github.com/harvestcrm/automata/pkg/models"
)

const (
	DefaultQueue = "automata:contact-events"

	popTimeout   = 1 * time.Second
	retryBackoff = 1 * time.Second
)

// envelope is the wire format the CRM pushes onto the list.
type envelope struct {
	Type         string         `json:"type"`
	ContactID    string         `json:"contact_id"`
	ActivityType string         `json:"activity_type,omitempty"`
	ActivityData map[string]any `json:"activity_data,omitempty"`
	OldStatus    string         `json:"old_status,omitempty"`
	NewStatus    string         `json:"new_status,omitempty"`
}

type Receiver struct {
	client    redis.UniversalClient
	queue     string
	publisher eventbus.EventPublisher
	logger    *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewReceiver connects to Redis using redisURL (redis://...) and consumes
// from the given list. An empty queue name falls back to DefaultQueue.
func NewReceiver(redisURL, queue string, publisher eventbus.EventPublisher, logger *slog.Logger) (*Receiver, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if queue == "" {
		queue = DefaultQueue
	}

	return &Receiver{
		client:    redis.NewClient(opts),
		queue:     queue,
		publisher: publisher,
		logger: logger.With(
			"module", "queue_receiver",
			"queue", queue,
		),
		stopCh: make(chan struct{}),
	}, nil
}

func (r *Receiver) Start(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.client.Ping(pingCtx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.logger.InfoContext(ctx, "Starting queue receiver")

	r.wg.Add(1)

	go r.consume(ctx)

	return nil
}

func (r *Receiver) Stop(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Stopping queue receiver")

	close(r.stopCh)
	r.wg.Wait()

	return r.client.Close()
}

func (r *Receiver) consume(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		default:
			err := r.processMessage(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(retryBackoff)
			}
		}
	}
}

func (r *Receiver) processMessage(ctx context.Context) error {
	result, err := r.client.BLPop(ctx, popTimeout, r.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var env envelope

	err = json.Unmarshal([]byte(result[1]), &env)
	if err != nil {
		r.logger.WarnContext(ctx, "Discarding malformed message", "error", err)

		return nil
	}

	event, err := env.toEvent()
	if err != nil {
		r.logger.WarnContext(ctx, "Discarding message", "error", err)

		return nil
	}

	return r.publisher.Publish(ctx, env.ContactID, event)
}

func (e envelope) toEvent() (eventbus.Event, error) {
	if e.ContactID == "" {
		return nil, errors.New("message has no contact_id")
	}

	switch e.Type {
	case "activity":
		return &events.ContactActivity{
			BaseEvent:    events.NewBaseEvent(events.ContactActivityEvent, e.ContactID),
			ActivityType: models.ActivityType(e.ActivityType),
			ActivityData: e.ActivityData,
		}, nil
	case "status_change":
		return &events.ContactStatusChanged{
			BaseEvent: events.NewBaseEvent(events.ContactStatusChangedEvent, e.ContactID),
			OldStatus: models.ContactStatus(e.OldStatus),
			NewStatus: models.ContactStatus(e.NewStatus),
		}, nil
	default:
		return nil, fmt.Errorf("unknown message type: %q", e.Type)
	}
}
