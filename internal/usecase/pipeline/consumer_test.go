package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/db"
)

// mockStream serves one batch of entries then blocks until cancellation.
type mockStream struct {
	mu      sync.Mutex
	entries []db.StreamEntry
	served  bool
	acked   []string
	groups  []string
}

func (m *mockStream) StreamGroupCreate(_ context.Context, stream, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = append(m.groups, stream+"/"+group)
	return nil
}

func (m *mockStream) StreamRead(
	ctx context.Context, _, _, _ string, _ int, _ time.Duration,
) ([]db.StreamEntry, error) {
	m.mu.Lock()
	if !m.served {
		m.served = true
		entries := m.entries
		m.mu.Unlock()
		return entries, nil
	}
	m.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

func (m *mockStream) StreamAck(_ context.Context, _, _ string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, ids...)
	return nil
}

func (m *mockStream) ackedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

func TestConsumer_AcksTerminalOutcomes(t *testing.T) {
	f := newFixture()
	stream := &mockStream{
		entries: []db.StreamEntry{
			{ID: "1-0", Fields: map[string]string{"payload": string(searchPayload(t, "m1"))}},
			// Invalid payload is still a terminal outcome and must be acked.
			{ID: "2-0", Fields: map[string]string{"payload": "{broken"}},
		},
	}

	consumer := NewConsumer(stream, f.svc, ConsumerConfig{
		Stream:    "persona:events",
		Group:     "persona-profile",
		Workers:   1,
		BatchSize: 16,
		Block:     time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for len(stream.ackedIDs()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("acked %v, want both entries", stream.ackedIDs())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop on cancel")
	}

	if _, ok := f.profiles.profiles["u1"]; !ok {
		t.Error("expected the valid event to update the profile")
	}
}

func TestConsumer_LeavesUnackedOnInfraFailure(t *testing.T) {
	f := newFixture()
	f.dedup.err = context.DeadlineExceeded // dedup check fails, not terminal

	stream := &mockStream{
		entries: []db.StreamEntry{
			{ID: "1-0", Fields: map[string]string{"payload": string(searchPayload(t, "m1"))}},
		},
	}

	consumer := NewConsumer(stream, f.svc, ConsumerConfig{
		Stream:    "persona:events",
		Group:     "persona-profile",
		Workers:   1,
		BatchSize: 16,
		Block:     time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if len(stream.ackedIDs()) != 0 {
		t.Errorf("acked %v, want none", stream.ackedIDs())
	}
}
