package realtime

import (
	"context"
	"testing"
	"time"
)

func TestAudioQueue_FIFO(t *testing.T) {
	q := NewAudioQueue(4)
	q.Push([]byte{1})
	q.Push([]byte{2})
	q.Push([]byte{3})

	for want := byte(1); want <= 3; want++ {
		chunk, ok := q.TryPop()
		if !ok {
			t.Fatalf("expected chunk %d", want)
		}
		if chunk[0] != want {
			t.Errorf("expected %d, got %d", want, chunk[0])
		}
	}

	if _, ok := q.TryPop(); ok {
		t.Error("expected empty queue")
	}
}

func TestAudioQueue_DropsOldestWhenFull(t *testing.T) {
	q := NewAudioQueue(32)

	evicted := 0
	for i := 0; i < 40; i++ {
		evicted += q.Push([]byte{byte(i)})
	}

	if q.Len() != 32 {
		t.Errorf("expected length 32, got %d", q.Len())
	}
	if evicted != 8 {
		t.Errorf("expected 8 evictions, got %d", evicted)
	}
	if q.Dropped() != 8 {
		t.Errorf("expected Dropped 8, got %d", q.Dropped())
	}

	chunk, ok := q.TryPop()
	if !ok || chunk[0] != 8 {
		t.Errorf("expected oldest surviving chunk 8, got %v", chunk)
	}
}

func TestAudioQueue_PopTimeout(t *testing.T) {
	q := NewAudioQueue(2)

	start := time.Now()
	chunk, ok := q.Pop(context.Background(), 50*time.Millisecond)
	elapsed := time.Since(start)

	if ok || chunk != nil {
		t.Error("expected timeout with no chunk")
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("returned too early: %v", elapsed)
	}
}

func TestAudioQueue_PopWakesOnPush(t *testing.T) {
	q := NewAudioQueue(2)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push([]byte{7})
	}()

	chunk, ok := q.Pop(context.Background(), time.Second)
	if !ok {
		t.Fatal("expected chunk")
	}
	if chunk[0] != 7 {
		t.Errorf("expected 7, got %d", chunk[0])
	}
}

func TestAudioQueue_PopContextCancelled(t *testing.T) {
	q := NewAudioQueue(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := q.Pop(ctx, time.Second); ok {
		t.Error("expected no chunk after cancellation")
	}
}

func TestAudioQueue_Reset(t *testing.T) {
	q := NewAudioQueue(4)
	q.Push([]byte{1})
	q.Push([]byte{2})
	q.Reset()

	if q.Len() != 0 {
		t.Errorf("expected empty queue after reset, got %d", q.Len())
	}
}
