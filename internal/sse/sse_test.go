package sse

import (
	"bytes"
	"testing"
)

func TestPublishReachesSubscribersOfRun(t *testing.T) {
	h := NewHub(4)
	a, cancelA := h.Subscribe("run1")
	defer cancelA()
	b, cancelB := h.Subscribe("run2")
	defer cancelB()

	h.Publish("run1", Event{Data: "hello"})

	select {
	case ev := <-a:
		if ev.Data != "hello" {
			t.Fatalf("got %q", ev.Data)
		}
	default:
		t.Fatal("run1 subscriber got nothing")
	}
	select {
	case ev := <-b:
		t.Fatalf("run2 subscriber got %q", ev.Data)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe("r")
	cancel()
	cancel()
	if _, ok := h.conns["r"]; ok {
		t.Fatal("expected the run entry to be removed")
	}
	h.Publish("r", Event{Data: "nobody listens"})
	select {
	case ev := <-ch:
		t.Fatalf("unsubscribed channel got %q", ev.Data)
	default:
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe("r")
	defer cancel()
	h.Publish("r", Event{Data: "1"})
	h.Publish("r", Event{Data: "2"})
	if ev := <-ch; ev.Data != "1" {
		t.Fatalf("got %q", ev.Data)
	}
	select {
	case ev := <-ch:
		t.Fatalf("expected drop, got %q", ev.Data)
	default:
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Event{Data: `{"a":1}`}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got, want := buf.String(), "event: msg\ndata: {\"a\":1}\n\n"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	buf.Reset()
	_ = Write(&buf, Event{Name: "done", Data: "a\nb"})
	if got, want := buf.String(), "event: done\ndata: a\ndata: b\n\n"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
