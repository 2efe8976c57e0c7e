package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/TariffHub/internal/aggregator"
	"github.com/LJTian/TariffHub/internal/collector"
)

type fixedBuilder struct {
	calls   int
	started chan struct{}
	block   chan struct{}
}

func (b *fixedBuilder) Build(ctx context.Context) *aggregator.Snapshot {
	b.calls++
	if b.block != nil {
		close(b.started)
		<-b.block
	}
	return &aggregator.Snapshot{
		GeneratedAt: "2025-01-01T00:00:00+00:00",
		Feeds: aggregator.Feeds{
			Top: map[string]collector.FetchResult{
				"cbp_csms": {Name: "cbp_csms", Items: []collector.Item{}, Errors: []string{}},
			},
			Groups: map[string]map[string]collector.FetchResult{},
		},
	}
}

type recordingPublisher struct {
	mu   sync.Mutex
	data [][]byte
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, snap *aggregator.Snapshot, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = append(p.data, data)
	return p.err
}

func TestRunOncePublishesToEveryPublisher(t *testing.T) {
	first := &recordingPublisher{err: errors.New("disk full")}
	second := &recordingPublisher{}
	b := &fixedBuilder{}

	s, err := New("*/30 * * * *", b, first, second)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	var observed *aggregator.Snapshot
	s.OnDone = func(snap *aggregator.Snapshot, took time.Duration) { observed = snap }
	snap, err := s.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected first publisher error, got %v", err)
	}
	if snap == nil || observed != snap || b.calls != 1 {
		t.Fatalf("builder should run exactly once")
	}
	if len(first.data) != 1 || len(second.data) != 1 {
		t.Fatalf("every publisher should receive the snapshot even after a failure")
	}
	if !strings.Contains(string(second.data[0]), `"cbp_csms"`) {
		t.Fatalf("unexpected payload: %s", second.data[0])
	}
}

func TestRunOnceSkipsWhileRunning(t *testing.T) {
	b := &fixedBuilder{started: make(chan struct{}), block: make(chan struct{})}
	s, err := New("@every 1h", b)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = s.RunOnce(context.Background())
		close(done)
	}()
	<-b.started
	snap, err := s.RunOnce(context.Background())
	if snap != nil || err != nil {
		t.Fatalf("overlapping run should be skipped")
	}
	close(b.block)
	<-done
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("not a cron", &fixedBuilder{}); err == nil {
		t.Fatalf("expected error for invalid cron spec")
	}
}

func TestPublisherFunc(t *testing.T) {
	var got string
	p := PublisherFunc(func(ctx context.Context, snap *aggregator.Snapshot, data []byte) error {
		got = snap.GeneratedAt
		return nil
	})
	if err := p.Publish(context.Background(), &aggregator.Snapshot{GeneratedAt: "x"}, nil); err != nil || got != "x" {
		t.Fatalf("PublisherFunc not invoked")
	}
}

func TestBestEffortPublisherFailureIsNotFatal(t *testing.T) {
	file := &recordingPublisher{}
	db := &recordingPublisher{err: errors.New("connection reset by peer")}

	s, err := New("", &fixedBuilder{}, file, BestEffort("postgres", db))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	snap, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("optional publisher failure should not fail the run: %v", err)
	}
	if snap == nil || len(file.data) != 1 || len(db.data) != 1 {
		t.Fatalf("both publishers should have been called")
	}
}

func TestNewWithoutSpecSkipsCron(t *testing.T) {
	s, err := New("", &fixedBuilder{})
	if err != nil {
		t.Fatalf("empty spec should be accepted for one-shot runs: %v", err)
	}
	if n := len(s.cron.Entries()); n != 0 {
		t.Fatalf("expected no cron entries, got %d", n)
	}
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
}
