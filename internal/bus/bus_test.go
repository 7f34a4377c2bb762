package bus

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishSubscribe(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Close()

	ch, unsub := b.Subscribe(nil, 8)
	defer unsub()

	b.Publish(EntityMutated{OwnerID: "u1", EntityType: "expense", EntityID: "e1", Operation: "create"})

	evt := recvEvent(t, ch)
	if evt.Kind != KindEntityMutated {
		t.Errorf("kind = %s, want %s", evt.Kind, KindEntityMutated)
	}
	p, ok := evt.Payload.(EntityMutated)
	if !ok {
		t.Fatalf("payload type = %T, want EntityMutated", evt.Payload)
	}
	if p.EntityID != "e1" {
		t.Errorf("entity id = %s, want e1", p.EntityID)
	}
	if evt.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestSubscribeFilter(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Close()

	ch, unsub := b.Subscribe(KindIn(KindUploadSucceeded), 8)
	defer unsub()

	b.Publish(EntityMutated{EntityID: "e1"})
	b.Publish(UploadSucceeded{EntityID: "e1"})

	evt := recvEvent(t, ch)
	if evt.Kind != KindUploadSucceeded {
		t.Errorf("kind = %s, want %s", evt.Kind, KindUploadSucceeded)
	}
	assertNoEvent(t, ch)
}

func TestForOwnerFilter(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Close()

	ch, unsub := b.Subscribe(ForOwner("u1"), 8)
	defer unsub()

	b.Publish(EntityMutated{OwnerID: "u2", EntityID: "e1"})
	b.Publish(StatusChanged{From: "IDLE", To: "DRAINING"})
	b.Publish(UploadSucceeded{OwnerID: "u1", EntityID: "e2"})

	evt := recvEvent(t, ch)
	if evt.Kind != KindUploadSucceeded {
		t.Errorf("kind = %s, want %s", evt.Kind, KindUploadSucceeded)
	}
	assertNoEvent(t, ch)
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Close()

	b.Publish(EntityMutated{EntityID: "e1"})

	ch, unsub := b.Subscribe(nil, 8)
	defer unsub()
	assertNoEvent(t, ch)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Close()

	ch, unsub := b.Subscribe(nil, 8)
	unsub()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(EntityMutated{EntityID: "e1"})

	// Unsubscribing twice is harmless.
	unsub()
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Close()

	ch, unsub := b.Subscribe(nil, 1)
	defer unsub()

	// Second publish finds the buffer full and is dropped, not blocked.
	done := make(chan struct{})
	go func() {
		b.Publish(EntityMutated{EntityID: "e1"})
		b.Publish(EntityMutated{EntityID: "e2"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	evt := recvEvent(t, ch)
	if evt.Payload.(EntityMutated).EntityID != "e1" {
		t.Errorf("got %+v, want e1", evt.Payload)
	}
	assertNoEvent(t, ch)
}

func TestCloseTerminatesSubscribers(t *testing.T) {
	b := New(zap.NewNop())

	ch, _ := b.Subscribe(nil, 8)
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after bus Close")
	}

	// Publish and Subscribe on a closed bus are no-ops.
	b.Publish(EntityMutated{EntityID: "e1"})
	ch2, unsub2 := b.Subscribe(nil, 8)
	if _, ok := <-ch2; ok {
		t.Error("subscribe on closed bus should return a closed channel")
	}
	unsub2()

	// Close is idempotent.
	b.Close()
}

func TestFanOutReachesAllSubscribers(t *testing.T) {
	b := New(zap.NewNop())
	defer b.Close()

	ch1, unsub1 := b.Subscribe(nil, 8)
	defer unsub1()
	ch2, unsub2 := b.Subscribe(KindIn(KindEntityMutated), 8)
	defer unsub2()

	b.Publish(EntityMutated{EntityID: "e1"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		evt := recvEvent(t, ch)
		if evt.Kind != KindEntityMutated {
			t.Errorf("kind = %s, want %s", evt.Kind, KindEntityMutated)
		}
	}
}
