package hub

import (
	"errors"
	"testing"

	"github.com/brianly1003/aidev/internal/domain"
	"github.com/brianly1003/aidev/internal/domain/events"
)

func TestNewChannelSubscriber(t *testing.T) {
	sub := NewChannelSubscriber("test-1", 10)

	if sub.ID() != "test-1" {
		t.Errorf("ID() = %q, want test-1", sub.ID())
	}
	if sub.closed {
		t.Error("subscriber should not be closed initially")
	}
	if cap(sub.send) != 10 {
		t.Errorf("buffer = %d, want 10", cap(sub.send))
	}
}

func TestChannelSubscriber_Send(t *testing.T) {
	sub := NewChannelSubscriber("test", 10)

	if err := sub.Send(events.NewGitUpdateEvent("commit", "main", "")); err != nil {
		t.Errorf("Send() error = %v, want nil", err)
	}

	select {
	case received := <-sub.Events():
		if received.Type() != events.EventTypeGitUpdate {
			t.Errorf("received event type = %v, want %v", received.Type(), events.EventTypeGitUpdate)
		}
	default:
		t.Error("expected event in channel")
	}
}

func TestChannelSubscriber_SendFull(t *testing.T) {
	sub := NewChannelSubscriber("slow", 1)

	if err := sub.Send(events.NewConnectEvent("ws://a")); err != nil {
		t.Fatalf("first Send() error = %v", err)
	}
	err := sub.Send(events.NewConnectEvent("ws://a"))
	if !errors.Is(err, domain.ErrSubscriberClosed) {
		t.Errorf("Send() on full buffer error = %v, want ErrSubscriberClosed", err)
	}
}

func TestChannelSubscriber_Close(t *testing.T) {
	sub := NewChannelSubscriber("test", 1)

	if err := sub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	select {
	case <-sub.Done():
	default:
		t.Error("Done() should be closed")
	}

	if err := sub.Send(events.NewConnectEvent("ws://a")); !errors.Is(err, domain.ErrSubscriberClosed) {
		t.Errorf("Send() after close error = %v, want ErrSubscriberClosed", err)
	}
}

func TestCallbackSubscriber(t *testing.T) {
	var got []events.EventType
	sub := NewCallbackSubscriber("cb", func(e events.Event) {
		got = append(got, e.Type())
	})

	_ = sub.Send(events.NewConnectEvent("ws://a"))
	_ = sub.Send(events.NewGitUpdateEvent("commit", "main", ""))

	if len(got) != 2 || got[0] != events.EventTypeConnect || got[1] != events.EventTypeGitUpdate {
		t.Errorf("handler saw %v", got)
	}

	_ = sub.Close()
	if err := sub.Send(events.NewConnectEvent("ws://a")); !errors.Is(err, domain.ErrSubscriberClosed) {
		t.Errorf("Send() after close error = %v, want ErrSubscriberClosed", err)
	}
	if len(got) != 2 {
		t.Errorf("handler called after close")
	}
}

func TestCallbackSubscriber_RecoversPanic(t *testing.T) {
	sub := NewCallbackSubscriber("panics", func(e events.Event) {
		panic("boom")
	})

	if err := sub.Send(events.NewConnectEvent("ws://a")); err != nil {
		t.Errorf("Send() error = %v, want nil", err)
	}
}
