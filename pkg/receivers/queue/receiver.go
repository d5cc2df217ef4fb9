// Package queue consumes trigger events pushed onto a Redis list by CRM
// services that do not speak Kafka.
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

	"github.com/relaycrm/relay/pkg/events"
)

const (
	popTimeout     = 1 * time.Second
	connectTimeout = 5 * time.Second
)

// Callback handles one decoded trigger event.
type Callback func(ctx context.Context, event *events.TriggerEvent) error

// Config connects the receiver to its Redis list.
type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// Receiver pops trigger events off a Redis list with BLPOP and forwards
// them to a callback. Malformed entries are logged and dropped.
type Receiver struct {
	config   Config
	client   redis.UniversalClient
	callback Callback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewReceiver(config Config, logger *slog.Logger) (*Receiver, error) {
	if config.Queue == "" {
		return nil, errors.New("queue receiver queue name is required")
	}

	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}

	return &Receiver{
		config: config,
		stopCh: make(chan struct{}),
		logger: logger.With(
			"module", "queue_receiver",
			"queue", config.Queue,
		),
	}, nil
}

// Start connects to Redis and begins consuming until Stop or context
// cancellation.
func (r *Receiver) Start(ctx context.Context, callback Callback) error {
	r.logger.InfoContext(ctx, "Starting queue receiver")
	r.callback = callback

	r.client = redis.NewClient(&redis.Options{
		Addr:     r.config.Addr,
		Password: r.config.Password,
		DB:       r.config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	err := r.client.Ping(pingCtx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.logger.InfoContext(ctx, "Connected to Redis", "addr", r.config.Addr, "db", r.config.DB)

	r.wg.Add(1)

	go r.consume(ctx)

	return nil
}

func (r *Receiver) consume(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopCh:
			r.logger.InfoContext(ctx, "Queue receiver stopped")

			return
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Context cancelled, stopping queue receiver")

			return
		default:
			err := r.processMessage(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "Error processing queue message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (r *Receiver) processMessage(ctx context.Context) error {
	result, err := r.client.BLPop(ctx, popTimeout, r.config.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	event, err := decodeTriggerEvent([]byte(result[1]))
	if err != nil {
		r.logger.WarnContext(ctx, "Dropping malformed queue message", "error", err)

		return nil
	}

	err = r.callback(ctx, event)
	if err != nil {
		r.logger.ErrorContext(ctx, "Trigger callback failed",
			"trigger_type", event.TriggerType,
			"organization_id", event.OrganizationID,
			"error", err)
	}

	return nil
}

func decodeTriggerEvent(payload []byte) (*events.TriggerEvent, error) {
	var event events.TriggerEvent

	err := json.Unmarshal(payload, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to decode trigger event: %w", err)
	}

	err = event.Validate()
	if err != nil {
		return nil, err
	}

	return &event, nil
}

// Stop halts consumption and closes the Redis connection.
func (r *Receiver) Stop(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Stopping queue receiver")

	close(r.stopCh)
	r.wg.Wait()

	if r.client != nil {
		err := r.client.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
