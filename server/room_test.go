package server

import (
	"sync"
	"testing"
	"time"

	"dungeonsync/protocol"
)

type sink struct {
	mu     sync.Mutex
	frames []protocol.Envelope
	full   bool
}

func (s *sink) Enqueue(b []byte) bool {
	if s.full {
		return false
	}
	env, err := protocol.DecodeEnvelope(b)
	if err != nil {
		return false
	}
	s.mu.Lock()
	s.frames = append(s.frames, env)
	s.mu.Unlock()
	return true
}

func (s *sink) events() []protocol.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []protocol.Envelope
	for _, e := range s.frames {
		if e.Op == protocol.OpPublish {
			out = append(out, e)
		}
	}
	return out
}

func chatFrame(t *testing.T, from string) Frame {
	t.Helper()
	env, err := protocol.NewEnvelope("room:t", protocol.ChatMessage, from, protocol.ChatMessagePayload{PlayerID: from, Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := env.Encode()
	return Frame{From: PlayerID(from), Raw: raw}
}

func newTestRoom(t *testing.T, cfg RoomConfig) (*Room, *sink, *sink) {
	t.Helper()
	r := NewRoom("room:t", cfg, nil)
	a, b := &sink{}, &sink{}
	if err := r.RequestJoin(&Subscriber{ID: "a", Conn: a}); err != nil {
		t.Fatal(err)
	}
	if err := r.RequestJoin(&Subscriber{ID: "b", Conn: b}); err != nil {
		t.Fatal(err)
	}
	r.Tick(time.UnixMilli(1000))
	return r, a, b
}

func TestRoomFanOutSkipsSender(t *testing.T) {
	r, a, b := newTestRoom(t, DefaultRoomConfig())
	if len(a.frames) != 1 || a.frames[0].Op != protocol.OpSubscribed {
		t.Fatalf("a should get a subscribed ack, got %+v", a.frames)
	}
	if r.Members() != 2 {
		t.Fatalf("members = %d", r.Members())
	}

	r.OnPublish(chatFrame(t, "a"))
	r.Tick(time.UnixMilli(1050))

	if got := a.events(); len(got) != 0 {
		t.Errorf("sender received its own frame: %+v", got)
	}
	got := b.events()
	if len(got) != 1 || got[0].Event != protocol.ChatMessage || got[0].From != "a" {
		t.Fatalf("b got %+v", got)
	}
	snap := r.metrics.Snapshot()
	if snap["published"].(int64) != 1 || snap["delivered"].(int64) != 1 {
		t.Errorf("metrics = %v", snap)
	}
}

func TestRoomRateLimitPerSender(t *testing.T) {
	r, _, b := newTestRoom(t, RoomConfig{MaxPublishesPerTick: 1})
	r.OnPublish(chatFrame(t, "a"))
	r.OnPublish(chatFrame(t, "a"))
	r.Tick(time.UnixMilli(1050))

	if got := len(b.events()); got != 1 {
		t.Fatalf("delivered %d frames, want 1", got)
	}
	if n := r.metrics.Snapshot()["rate_limited"].(int64); n != 1 {
		t.Errorf("rate_limited = %d", n)
	}

	// 下一帧计数重置
	r.OnPublish(chatFrame(t, "a"))
	r.Tick(time.UnixMilli(1100))
	if got := len(b.events()); got != 2 {
		t.Errorf("delivered %d frames after reset, want 2", got)
	}
}

func TestRoomSimulatedDelayAndDrop(t *testing.T) {
	r, _, b := newTestRoom(t, RoomConfig{SimulateDelayMinMs: 100, SimulateDelayMaxMs: 100})
	r.OnPublish(chatFrame(t, "a"))
	r.Tick(time.UnixMilli(1050))
	if len(b.events()) != 0 {
		t.Fatal("delayed frame delivered early")
	}
	r.Tick(time.UnixMilli(1100))
	if len(b.events()) != 0 {
		t.Fatal("delayed frame delivered before due")
	}
	r.Tick(time.UnixMilli(1150))
	if len(b.events()) != 1 {
		t.Fatal("delayed frame not delivered once due")
	}

	r.SetConfig(RoomConfig{SimulateDropProb: 1})
	r.OnPublish(chatFrame(t, "a"))
	r.Tick(time.UnixMilli(1200))
	if len(b.events()) != 1 {
		t.Error("frame delivered despite drop probability 1")
	}
	if n := r.metrics.Snapshot()["drops_simulated"].(int64); n != 1 {
		t.Errorf("drops_simulated = %d", n)
	}
}

func TestRoomLeaveIgnoresReplacedSubscriber(t *testing.T) {
	r, _, _ := newTestRoom(t, DefaultRoomConfig())
	old := r.Subscribers["b"]
	fresh := &sink{}
	_ = r.RequestJoin(&Subscriber{ID: "b", Conn: fresh})
	r.Tick(time.UnixMilli(1050))

	r.RequestLeave(old)
	r.Tick(time.UnixMilli(1100))
	if s, ok := r.Subscribers["b"]; !ok || s.Conn != fresh {
		t.Fatal("stale leave removed the reconnected subscriber")
	}

	r.OnPublish(chatFrame(t, "a"))
	r.Tick(time.UnixMilli(1150))
	if len(fresh.events()) != 1 {
		t.Error("reconnected subscriber missed the frame")
	}
}

func TestRoomFullSendQueueCounted(t *testing.T) {
	r, _, b := newTestRoom(t, DefaultRoomConfig())
	b.full = true
	r.OnPublish(chatFrame(t, "a"))
	r.Tick(time.UnixMilli(1050))
	if n := r.metrics.Snapshot()["send_queue_full"].(int64); n != 1 {
		t.Errorf("send_queue_full = %d", n)
	}
}
