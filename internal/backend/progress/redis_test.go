package progress

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func TestRedisSink_PublishesAndKeepsHistory(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	subscription := client.Subscribe(ctx, "cdbgen:progress")
	t.Cleanup(func() { _ = subscription.Close() })
	if _, err := subscription.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	messages := subscription.Channel()

	sink := NewRedisSink(client, "cdbgen:progress", "run-1", 2)
	sink.Progress("Using /tools/cdb-inject")
	sink.Progress("Processing /data/a.tif")
	sink.Progress("Processing imagery file /data/a.tif")

	select {
	case msg := <-messages:
		if msg.Payload != "Using /tools/cdb-inject" {
			t.Errorf("unexpected first published message %q", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published progress")
	}

	history, err := sink.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected history capped at 2, got %q", history)
	}
	if history[1] != "Processing imagery file /data/a.tif" {
		t.Errorf("expected newest line last, got %q", history)
	}
	if key := HistoryKey("cdbgen:progress", "run-1"); key != "cdbgen:progress:run-1" {
		t.Errorf("unexpected history key %q", key)
	}
}

func TestRedisSink_UnavailableServerDoesNotPanic(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	server.Close()

	sink := NewRedisSink(client, "cdbgen:progress", "run-2", 0)
	sink.timeout = 200 * time.Millisecond
	sink.Progress("still running")
	if !sink.disabled.Load() {
		t.Fatal("expected sink to disable itself after a failed publish")
	}
}

func TestRedisSink_DisabledSinkDoesNotWait(t *testing.T) {
	server, client := newTestRedis(t)
	sink := NewRedisSink(client, "cdbgen:progress", "run-3", 0)
	sink.timeout = 200 * time.Millisecond

	sink.Progress("first line")
	server.Close()
	sink.Progress("lost line")
	if !sink.disabled.Load() {
		t.Fatal("expected sink to be disabled")
	}

	start := time.Now()
	for i := 0; i < 100; i++ {
		sink.Progress("tool output")
	}
	if elapsed := time.Since(start); elapsed > sink.timeout {
		t.Errorf("expected disabled sink to return immediately, 100 lines took %s", elapsed)
	}
}
