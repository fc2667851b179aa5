package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/voice-bridge/internal/audiocodes"
)

type nopSender struct{}

func (nopSender) Send(context.Context, any) error { return nil }

func TestRegistry_AddGetRemove(t *testing.T) {
	r := NewRegistry()

	replaced := r.Add(Conversation{
		ID:          "abc-1",
		ConnID:      "conn-1",
		Downstream:  nopSender{},
		MediaFormat: audiocodes.FormatRawLPCM16,
	})
	if replaced {
		t.Error("first add should not replace")
	}

	c, ok := r.Get("abc-1")
	if !ok {
		t.Fatal("expected conversation")
	}
	if c.MediaFormat != audiocodes.FormatRawLPCM16 {
		t.Errorf("unexpected format %s", c.MediaFormat)
	}
	if c.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}

	if _, ok := r.Remove("abc-1"); !ok {
		t.Error("expected remove to find the conversation")
	}
	if _, ok := r.Get("abc-1"); ok {
		t.Error("conversation should be gone")
	}
	if _, ok := r.Remove("abc-1"); ok {
		t.Error("second remove should be a no-op")
	}
}

func TestRegistry_AddReplaces(t *testing.T) {
	r := NewRegistry()
	r.Add(Conversation{ID: "abc-1", ConnID: "conn-1"})

	if !r.Add(Conversation{ID: "abc-1", ConnID: "conn-2"}) {
		t.Error("expected replace")
	}
	c, _ := r.Get("abc-1")
	if c.ConnID != "conn-2" {
		t.Errorf("expected conn-2, got %s", c.ConnID)
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 conversation, got %d", r.Count())
	}
}

func TestRegistry_RemoveIfOwned(t *testing.T) {
	r := NewRegistry()
	r.Add(Conversation{ID: "abc-1", ConnID: "conn-2"})

	if _, ok := r.RemoveIfOwned("abc-1", "conn-1"); ok {
		t.Error("should not remove a conversation owned by another connection")
	}
	if _, ok := r.RemoveIfOwned("abc-1", "conn-2"); !ok {
		t.Error("expected owner to remove the conversation")
	}
}

func TestRegistry_ListAndByConnection(t *testing.T) {
	r := NewRegistry()
	base := time.Now()
	r.Add(Conversation{ID: "b", ConnID: "conn-1", StartedAt: base.Add(time.Second)})
	r.Add(Conversation{ID: "a", ConnID: "conn-1", StartedAt: base})
	r.Add(Conversation{ID: "c", ConnID: "conn-2", StartedAt: base.Add(2 * time.Second)})

	list := r.List()
	if len(list) != 3 || list[0].ID != "a" || list[2].ID != "c" {
		t.Errorf("unexpected order %v", list)
	}

	if got := r.ByConnection("conn-1"); len(got) != 2 {
		t.Errorf("expected 2 conversations on conn-1, got %d", len(got))
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	r := NewRegistry()
	r.Add(Conversation{ID: "abc-1", Caller: "+1"})

	c, _ := r.Get("abc-1")
	c.Caller = "changed"

	again, _ := r.Get("abc-1")
	if again.Caller != "+1" {
		t.Error("mutating a returned conversation must not affect the registry")
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", i)
			r.Add(Conversation{ID: id})
			r.Get(id)
			r.List()
			if i%2 == 0 {
				r.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	if r.Count() != 25 {
		t.Errorf("expected 25 conversations, got %d", r.Count())
	}
}
