package views

import (
	"context"
	"errors"
	"testing"
)

func TestLifecycle_CloseCancelsRequests(t *testing.T) {
	l := NewLifecycle()
	ctx, cancel := l.Context(context.Background())
	defer cancel()

	if l.Closed() {
		t.Fatal("new lifecycle reports closed")
	}
	if !l.Close() {
		t.Fatal("first Close() = false")
	}
	if l.Close() {
		t.Error("second Close() = true")
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Errorf("request ctx.Err() = %v, want Canceled", ctx.Err())
	}
}

func TestLifecycle_ParentCancel(t *testing.T) {
	l := NewLifecycle()
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := l.Context(parent)
	defer cancel()

	cancelParent()
	if ctx.Err() == nil {
		t.Error("request ctx not cancelled with its parent")
	}
	if l.Closed() {
		t.Error("parent cancel must not close the view")
	}
}

func TestObservers(t *testing.T) {
	var o Observers
	var calls []string

	o.Add(func() { calls = append(calls, "a") })
	remove := o.Add(func() { calls = append(calls, "b") })
	o.Add(func() { calls = append(calls, "c") })

	o.Notify()
	remove()
	remove()
	o.Notify()

	want := "a b c a c"
	got := ""
	for i, c := range calls {
		if i > 0 {
			got += " "
		}
		got += c
	}
	if got != want {
		t.Errorf("calls = %q, want %q", got, want)
	}
}
