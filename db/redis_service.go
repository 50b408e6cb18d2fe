package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"classroom-rollcall-go/session"
)

const (
	DefaultStateKey      = "classroom_companion_data_v1" // String: the JSON AppState snapshot
	DefaultEventsChannel = "classroom:session:events"    // Pub/sub: session cues
)

// ErrNotFound is returned by a KV when the key does not exist.
var ErrNotFound = errors.New("key not found")

// KV is the durable byte store behind the gateway.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// RedisStore implements KV on a Redis string key.
type RedisStore struct {
	Client *redis.Client
}

// NewRedisStore creates a new RedisStore instance
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.Client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s in Redis: %w", key, err)
	}
	return nil
}

// --- Session cues ---

// EventPublisher publishes session cues on a Redis channel from a background
// goroutine so a slow Redis never delays the roll. Events are dropped when
// the queue is full; publish errors are logged and dropped.
type EventPublisher struct {
	client  *redis.Client
	channel string
	timeout time.Duration
	log     zerolog.Logger

	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

// NewEventPublisher starts a publisher for channel. An empty channel selects
// DefaultEventsChannel.
func NewEventPublisher(client *redis.Client, channel string, log zerolog.Logger) *EventPublisher {
	if channel == "" {
		channel = DefaultEventsChannel
	}
	p := &EventPublisher{
		client:  client,
		channel: channel,
		timeout: 500 * time.Millisecond,
		log:     log.With().Str("component", "events").Str("channel", channel).Logger(),
		queue:   make(chan []byte, 64),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Notify implements session.Notifier.
func (p *EventPublisher) Notify(ev session.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("marshal session event")
		return
	}
	select {
	case p.queue <- data:
	default:
		p.log.Warn().Str("kind", string(ev.Kind)).Msg("event queue full, dropping session event")
	}
}

func (p *EventPublisher) run() {
	defer close(p.done)
	for data := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
			p.log.Warn().Err(err).Msg("publish session event")
		}
		cancel()
	}
}

// Close publishes the queued events and stops the worker. Notify must not be
// called afterwards.
func (p *EventPublisher) Close() {
	p.once.Do(func() { close(p.queue) })
	<-p.done
}

// --- Utility ---

// RedisOptions selects the Redis server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// InitializeRedisClient creates a Redis client and pings it. The client is
// returned even when the ping fails; it reconnects on the next command.
func InitializeRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return rdb, fmt.Errorf("could not connect to Redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}
