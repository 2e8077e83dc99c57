package http

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestOutbox_PreservesOrderAndNeverBlocks(t *testing.T) {
	out := newOutbox()

	// Producers run before the writer starts; push must not wait for it.
	for i := 0; i < 100; i++ {
		if err := out.push([]byte{byte(i)}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	var (
		mu  sync.Mutex
		got []byte
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		out.run(func(frame []byte) error {
			mu.Lock()
			got = append(got, frame...)
			mu.Unlock()
			return nil
		}, func() error { return nil })
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 100 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	out.close()
	<-done

	if len(got) != 100 {
		t.Fatalf("expected 100 frames, got %d", len(got))
	}
	for i, b := range got {
		if int(b) != i {
			t.Fatalf("frame %d out of order: %d", i, b)
		}
	}
}

func TestOutbox_PushAfterClose(t *testing.T) {
	out := newOutbox()
	out.close()
	if err := out.push([]byte("x")); !errors.Is(err, errSessionClosed) {
		t.Errorf("expected errSessionClosed, got %v", err)
	}
}

func TestOutbox_WriteFailureClosesOutbox(t *testing.T) {
	out := newOutbox()
	_ = out.push([]byte("x"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		out.run(func([]byte) error { return errors.New("broken pipe") }, func() error { return nil })
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop after a failed write")
	}
	if err := out.push([]byte("y")); !errors.Is(err, errSessionClosed) {
		t.Errorf("expected errSessionClosed, got %v", err)
	}
}

func TestRelaySubject(t *testing.T) {
	tests := []struct {
		msg     relayMessage
		subject string
		ok      bool
	}{
		{relayMessage{}, "cityview.fetch.>", true},
		{relayMessage{Channel: "fetches", View: "cityA"}, "cityview.fetch.cityA.>", true},
		{relayMessage{Channel: "selections"}, "cityview.view.selected", true},
		{relayMessage{Channel: "fetches", View: "city.*"}, "", false},
		{relayMessage{Channel: "fetches", View: ">"}, "", false},
		{relayMessage{Channel: "vehicles"}, "", false},
	}
	for _, tt := range tests {
		subject, ok := relaySubject(tt.msg)
		if ok != tt.ok || subject != tt.subject {
			t.Errorf("relaySubject(%+v) = %q, %v; want %q, %v", tt.msg, subject, ok, tt.subject, tt.ok)
		}
	}
}
