package progress

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisTimeout = 2 * time.Second
	defaultHistory      = 1000
)

// RedisSink publishes progress text on a channel and keeps the most recent
// lines in a capped list so late subscribers can catch up.
type RedisSink struct {
	client  redis.UniversalClient
	channel string
	listKey string
	history int64
	timeout time.Duration
	// disabled is set after the first failed publish
	disabled atomic.Bool
}

// NewRedisSink creates a sink for one run. The list key is derived from
// channel and runID.
func NewRedisSink(client redis.UniversalClient, channel, runID string, history int64) *RedisSink {
	if history <= 0 {
		history = defaultHistory
	}
	return &RedisSink{
		client:  client,
		channel: channel,
		listKey: HistoryKey(channel, runID),
		history: history,
		timeout: defaultRedisTimeout,
	}
}

// HistoryKey is the Redis list holding the lines of a run.
func HistoryKey(channel, runID string) string {
	return channel + ":" + runID
}

// Progress never blocks the dispatcher for longer than the sink timeout.
// The first failure is logged and turns the sink off for the rest of the run.
func (s *RedisSink) Progress(text string) {
	if s.disabled.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Publish(ctx, s.channel, text)
	pipe.RPush(ctx, s.listKey, text)
	pipe.LTrim(ctx, s.listKey, -s.history, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.disabled.Store(true)
		slog.Warn("RedisSink: failed to publish progress, disabling sink for this run",
			"channel", s.channel,
			"error", err)
	}
}

// History returns the retained lines of the sink's run.
func (s *RedisSink) History(ctx context.Context) ([]string, error) {
	return s.client.LRange(ctx, s.listKey, 0, -1).Result()
}
