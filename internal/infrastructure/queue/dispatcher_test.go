package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusflow/gateway/internal/core/domain"
)

type recordingService struct {
	mu   sync.Mutex
	seen map[string][]int64
	err  error
}

func (s *recordingService) Process(_ context.Context, evt domain.UserRegistered) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string][]int64)
	}
	s.seen[evt.Username] = append(s.seen[evt.Username], evt.OccurredAtEpochMillis)
	return s.err
}

func (s *recordingService) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingService) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.seen {
		n += len(v)
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestDispatcher_PreservesPerUserOrder(t *testing.T) {
	svc := &recordingService{}
	d := NewDispatcher(4, svc, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	var batch []Delivery
	for i := int64(0); i < 50; i++ {
		for _, u := range []string{"amy", "bob", "cat"} {
			batch = append(batch, Delivery{Event: domain.UserRegistered{Username: u, Role: domain.RoleStudent, OccurredAtEpochMillis: i}})
		}
	}
	if err := d.EnqueueBatch(ctx, batch); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, func() bool { return svc.count() == len(batch) })
	cancel()
	d.Wait()

	for user, seq := range svc.seen {
		for i := 1; i < len(seq); i++ {
			if seq[i] < seq[i-1] {
				t.Fatalf("events for %s processed out of order: %v", user, seq)
			}
		}
	}
}

func TestDispatcher_AckPolicy(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		wantAck bool
	}{
		{name: "success acks", err: nil, wantAck: true},
		{name: "invalid event is dropped and acked", err: domain.ErrValidation, wantAck: true},
		{name: "transient failure stays pending", err: errors.New("db down"), wantAck: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &recordingService{err: tc.err}
			d := NewDispatcher(1, svc, zerolog.Nop())
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			d.Start(ctx)

			acked := make(chan struct{}, 1)
			err := d.Enqueue(ctx, Delivery{
				MessageID: "1-0",
				Event:     domain.UserRegistered{Username: "amy"},
				Ack: func(context.Context) error {
					acked <- struct{}{}
					return nil
				},
			})
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}

			waitFor(t, func() bool { return svc.count() == 1 })
			select {
			case <-acked:
				if !tc.wantAck {
					t.Fatalf("unexpected ack")
				}
			case <-time.After(100 * time.Millisecond):
				if tc.wantAck {
					t.Fatalf("expected ack")
				}
			}
		})
	}
}

func TestDispatcher_EnqueueRespectsContext(t *testing.T) {
	d := NewDispatcher(1, &recordingService{}, zerolog.Nop())
	// Workers are not started, so the buffer fills up.
	for i := 0; i < channelBuffer; i++ {
		if err := d.Enqueue(context.Background(), Delivery{Event: domain.UserRegistered{Username: "amy"}}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Enqueue(ctx, Delivery{Event: domain.UserRegistered{Username: "amy"}}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDispatcher_ShardIndexStable(t *testing.T) {
	d := NewDispatcher(0, &recordingService{}, zerolog.Nop())
	if len(d.workers) != defaultWorkers {
		t.Fatalf("expected %d workers, got %d", defaultWorkers, len(d.workers))
	}
	if d.shardIndex("alice") != d.shardIndex("alice") {
		t.Fatalf("shard index must be deterministic")
	}
	for _, u := range []string{"", "a", "alice", "bob@example.com"} {
		if idx := d.shardIndex(u); idx < 0 || idx >= defaultWorkers {
			t.Fatalf("index %d out of range for %q", idx, u)
		}
	}
}
