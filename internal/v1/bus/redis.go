package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RoseWrightdev/conference-authority/internal/v1/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// IdentityBoundEvent is the fan-out envelope published whenever Authenticate
// succeeds, so that other Authority instances in the deployment can update
// their own listeners (e.g. presence UIs) without re-running authentication.
type IdentityBoundEvent struct {
	ParticipantAddress string `json:"participant_address"`
	ExternalIdentity   string `json:"external_identity"`
	RoomName           string `json:"room_name"`
	AuthTimestamp      int64  `json:"auth_timestamp"`
}

// identityChannel returns the pub/sub channel a given participant's
// identity-bind events are published on.
func identityChannel(participantAddress string) string {
	return fmt.Sprintf("authz:identity:%s", participantAddress)
}

// Service handles all interaction with the Redis cluster.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client returns the underlying Redis client.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService creates a robust Redis connection with automatic retries.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	slog.Info("Connected to Redis Pub/Sub", "addr", addr)
	return &Service{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

// PublishIdentityBound fans out a successful Authenticate call to the
// participant's identity channel so other Authority instances can notify
// their own in-process IdentityBindListeners.
func (s *Service) PublishIdentityBound(ctx context.Context, event IdentityBoundEvent) error {
	if s == nil || s.client == nil {
		return nil // Single-instance mode, no Redis available
	}

	start := time.Now()
	_, err := s.cb.Execute(func() (interface{}, error) {
		data, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal identity-bound event: %w", err)
		}

		return nil, s.client.Publish(ctx, identityChannel(event.ParticipantAddress), data).Err()
	})
	metrics.RedisOperationDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailuresTotal.WithLabelValues("redis").Inc()
			metrics.RedisOperationsTotal.WithLabelValues("publish", "breaker_open").Inc()
			slog.Warn("Redis Circuit Breaker Open: dropping identity-bound event", "participantAddress", event.ParticipantAddress)
			return nil // Graceful degradation: drop the fan-out, the local listener already ran
		}
		metrics.RedisOperationsTotal.WithLabelValues("publish", "error").Inc()
		slog.Error("Redis Publish failed", "participantAddress", event.ParticipantAddress, "error", err)
		return err
	}

	metrics.RedisOperationsTotal.WithLabelValues("publish", "success").Inc()
	return nil
}

// SubscribeIdentityBound starts a background goroutine that listens for
// identity-bound events published by other Authority instances for the
// given participant address.
func (s *Service) SubscribeIdentityBound(ctx context.Context, participantAddress string, wg *sync.WaitGroup, handler func(IdentityBoundEvent)) {
	if s == nil || s.client == nil {
		return // Single-instance mode, no Redis available
	}

	channel := identityChannel(participantAddress)
	pubsub := s.client.Subscribe(ctx, channel)

	if wg != nil {
		wg.Add(1)
	}
	go func() {
		defer pubsub.Close()
		if wg != nil {
			defer wg.Done()
		}

		slog.Info("Subscribed to Redis channel", "channel", channel)

		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					slog.Warn("Redis subscription channel closed", "channel", channel)
					return
				}

				var event IdentityBoundEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.Error("Failed to unmarshal identity-bound event", "error", err, "raw", msg.Payload)
					continue
				}

				handler(event)
			}
		}
	}()
}

// Ping checks Redis connectivity using the PING command.
// Used by health checks to verify Redis is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil // Single-instance mode, no Redis available
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailuresTotal.WithLabelValues("redis").Inc()
		}
		return err
	}
	return nil
}

// Close gracefully shuts down the Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
