package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	redisclient "github.com/pastesync/sync-server-go/internal/redis"
)

// Subscriber is a cancellable handle on one session's event stream. The
// consumer drains Events in its own dispatch loop; Done closes when the
// broker shuts down.
type Subscriber struct {
	SessionID string
	Events    chan Event
	Done      chan struct{}
}

// Broker fans session events out to local subscribers. Events travel
// through Redis pub/sub so every server instance sees every session's
// changes regardless of which instance applied the write.
type Broker struct {
	redis       *redisclient.Client
	subscribers map[string]map[*Subscriber]bool // sessionID -> set of subscribers
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:       redisClient,
		subscribers: make(map[string]map[*Subscriber]bool),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (b *Broker) Subscribe(sessionID string) *Subscriber {
	sub := &Subscriber{
		SessionID: sessionID,
		Events:    make(chan Event, 100),
		Done:      make(chan struct{}),
	}

	b.mu.Lock()
	if b.subscribers[sessionID] == nil {
		b.subscribers[sessionID] = make(map[*Subscriber]bool)
		go b.subscribeToRedis(sessionID)
	}
	b.subscribers[sessionID][sub] = true
	count := len(b.subscribers[sessionID])
	b.mu.Unlock()

	log.Info().
		Str("sessionId", sessionID).
		Int("subscriberCount", count).
		Msg("bus subscriber attached")

	return sub
}

func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subscribers[sub.SessionID]; ok {
		delete(subs, sub)
		close(sub.Done)

		if len(subs) == 0 {
			delete(b.subscribers, sub.SessionID)
		}

		log.Info().
			Str("sessionId", sub.SessionID).
			Int("subscriberCount", len(subs)).
			Msg("bus subscriber detached")
	}
}

func (b *Broker) Publish(ctx context.Context, sessionID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.SessionChannel(sessionID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(sessionID string) {
	channel := redisclient.SessionChannel(sessionID)
	pubsub := b.redis.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("sessionId", sessionID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.fanOut(sessionID, event)
		}
	}
}

func (b *Broker) fanOut(sessionID string, event Event) {
	b.mu.RLock()
	subs := b.subscribers[sessionID]
	b.mu.RUnlock()

	for sub := range subs {
		select {
		case sub.Events <- event:
		default:
			log.Warn().
				Str("sessionId", sessionID).
				Str("eventType", event.Type).
				Msg("subscriber event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subs := range b.subscribers {
		for sub := range subs {
			close(sub.Done)
		}
	}
	b.subscribers = make(map[string]map[*Subscriber]bool)
}

func (b *Broker) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[sessionID])
}

func (b *Broker) TotalSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, subs := range b.subscribers {
		total += len(subs)
	}
	return total
}
