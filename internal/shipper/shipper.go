package shipper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/txgraph/rollingmedian/internal/config"
	"github.com/txgraph/rollingmedian/pkg/types"
)

const sendTimeout = 5 * time.Second

// conn is the subset of Redis used by the shipper.
type conn interface {
	Ping(ctx context.Context) error
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

// Shipper buffers emissions and publishes them to Redis.
type Shipper struct {
	channel string
	buf     chan types.Emission
	conn    conn
	wait    func(ctx context.Context, d time.Duration) bool
}

// New creates a Shipper from cfg. It does not contact Redis until Run.
func New(cfg config.RedisConfig) *Shipper {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password(),
		DB:       cfg.DB,
	})
	return newShipper(cfg, &redisConn{client: client})
}

func newShipper(cfg config.RedisConfig, c conn) *Shipper {
	size := cfg.BufferSize
	if size <= 0 {
		size = config.DefaultBufferSize
	}
	channel := cfg.Channel
	if channel == "" {
		channel = config.DefaultRedisChannel
	}
	return &Shipper{
		channel: channel,
		buf:     make(chan types.Emission, size),
		conn:    c,
		wait:    sleepCtx,
	}
}

// Emit implements stream.Sink. It never blocks and never fails.
func (s *Shipper) Emit(_ context.Context, e types.Emission) error {
	select {
	case s.buf <- e:
	default:
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest emission",
				"seq", old.Seq, "buffer_cap", cap(s.buf))
		default:
		}
		// Run may have refilled the slot; drop e rather than block.
		select {
		case s.buf <- e:
		default:
			slog.Warn("shipper: buffer full, dropped emission", "seq", e.Seq)
		}
	}
	return nil
}

// Pending returns the number of buffered emissions.
func (s *Shipper) Pending() int {
	return len(s.buf)
}

// Run drains the buffer until ctx is cancelled, then closes the Redis client.
func (s *Shipper) Run(ctx context.Context) {
	defer s.conn.Close()

	bo := newBackoff()
	var retry *types.Emission

	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.ping(ctx); err != nil {
			wait := bo.next()
			slog.Error("shipper: redis unreachable, will retry",
				"channel", s.channel, "err", err, "retry_in", wait)
			if !s.wait(ctx, wait) {
				return
			}
			continue
		}

		slog.Info("shipper: connected", "channel", s.channel)
		bo.reset()

		var err error
		retry, err = s.drain(ctx, retry)
		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: publish failed, will reconnect",
			"channel", s.channel, "err", err, "retry_in", wait)
		if !s.wait(ctx, wait) {
			return
		}
	}
}

// drain publishes pending first, then buffered emissions, until a publish
// fails or ctx is cancelled. It returns the emission that failed.
func (s *Shipper) drain(ctx context.Context, pending *types.Emission) (*types.Emission, error) {
	if pending != nil {
		if err := s.publish(ctx, *pending); err != nil {
			return pending, err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case e := <-s.buf:
			if err := s.publish(ctx, e); err != nil {
				return &e, err
			}
		}
	}
}

func (s *Shipper) publish(ctx context.Context, e types.Emission) error {
	payload, err := json.Marshal(e)
	if err != nil {
		// Not retryable; drop it.
		slog.Error("shipper: marshal failed, discarding emission", "seq", e.Seq, "err", err)
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := s.conn.Publish(sendCtx, s.channel, payload); err != nil {
		return fmt.Errorf("shipper: publish seq %d: %w", e.Seq, err)
	}
	slog.Debug("shipper: emission published", "seq", e.Seq)
	return nil
}

func (s *Shipper) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return s.conn.Ping(pingCtx)
}

// sleepCtx waits for d. It returns false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// redisConn adapts *redis.Client to conn.
type redisConn struct {
	client *redis.Client
}

func (r *redisConn) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisConn) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *redisConn) Close() error {
	return r.client.Close()
}
