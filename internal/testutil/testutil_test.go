package testutil

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/brianly1003/aidev/internal/domain/events"
)

func TestMockSubscriber_Send(t *testing.T) {
	sub := NewMockSubscriber("test-sub")
	if sub.ID() != "test-sub" {
		t.Errorf("ID() = %s", sub.ID())
	}

	_ = sub.Send(events.NewEvent(events.EventTypeGitUpdate, nil))
	_ = sub.Send(events.NewEvent(events.EventTypeFileUpdated, nil))

	if sub.EventCount() != 2 {
		t.Fatalf("EventCount() = %d, want 2", sub.EventCount())
	}
	if got := sub.Events()[1].Type(); got != events.EventTypeFileUpdated {
		t.Errorf("second event = %s", got)
	}

	sub.ClearEvents()
	if sub.EventCount() != 0 {
		t.Errorf("EventCount() after ClearEvents = %d", sub.EventCount())
	}
}

func TestMockSubscriber_SendError(t *testing.T) {
	sub := NewMockSubscriber("test-sub")
	want := errors.New("boom")
	sub.SetSendError(want)

	if err := sub.Send(events.NewEvent(events.EventTypeGitUpdate, nil)); !errors.Is(err, want) {
		t.Errorf("Send() error = %v, want %v", err, want)
	}
	if sub.EventCount() != 0 {
		t.Error("failed send should not be recorded")
	}
}

func TestMockSubscriber_Close(t *testing.T) {
	sub := NewMockSubscriber("test-sub")
	_ = sub.Close()
	_ = sub.Close()

	if !sub.IsClosed() {
		t.Error("IsClosed() = false")
	}
	select {
	case <-sub.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("Done() not closed")
	}
}

func TestFakeBackend_RequiresAuth(t *testing.T) {
	fb := NewFakeBackend(t)

	resp, err := http.Get(fb.URL() + "/files/list")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, fb.URL()+"/files/list", nil)
	req.Header.Set("Authorization", "Bearer "+fb.IssueToken("alice"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if got := fb.RequestsTo(http.MethodGet, "/files/list"); len(got) != 2 || got[0].HasAuth || !got[1].HasAuth {
		t.Errorf("recorded = %+v", got)
	}
}

func TestFakeBackend_FailNextAndHold(t *testing.T) {
	fb := NewFakeBackend(t)
	fb.FailNext(http.MethodPost, "/auth/token", http.StatusServiceUnavailable)

	resp, err := http.Post(fb.URL()+"/auth/token", "application/x-www-form-urlencoded", strings.NewReader("username=alice&password=wonderland"))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	fb.FailNext(http.MethodPost, "/auth/token", 0)

	release := fb.Hold(http.MethodPost, "/auth/token")
	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(fb.URL()+"/auth/token", "application/x-www-form-urlencoded", strings.NewReader("username=alice&password=wonderland"))
		if err != nil {
			done <- 0
			return
		}
		_ = resp.Body.Close()
		done <- resp.StatusCode
	}()

	Eventually(t, time.Second, func() bool { return len(fb.RequestsTo(http.MethodPost, "/auth/token")) == 2 }, "held request recorded")
	select {
	case <-done:
		t.Fatal("held request completed before release")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	release()
	if status := <-done; status != http.StatusOK {
		t.Errorf("status after release = %d, want 200", status)
	}
}

func TestEventually(t *testing.T) {
	start := time.Now()
	n := 0
	Eventually(t, time.Second, func() bool {
		n++
		return n >= 3
	}, "counter")
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Eventually waited longer than needed")
	}
}
