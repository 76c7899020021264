package event

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTopicMapping(t *testing.T) {
	now := time.Now()
	cases := []struct {
		evt   Identity
		topic string
	}{
		{Registered("u-1", "a@example.org", "Alice", "patient", now), TopicRegistered},
		{LoggedIn("u-1", "a@example.org", now), TopicLoggedIn},
		{LoggedOut("u-1", "a@example.org", now), TopicLoggedOut},
		{TokenRefreshed("u-1", "a@example.org", now), TopicTokenRefreshed},
	}
	for _, c := range cases {
		if got := c.evt.Topic(); got != c.topic {
			t.Fatalf("Topic() for %s = %q, want %q", c.evt.Kind, got, c.topic)
		}
	}
	if got := (Identity{Kind: "unknown"}).Topic(); got != "" {
		t.Fatalf("unknown kind should have no topic, got %q", got)
	}
	if len(Topics()) != 4 {
		t.Fatalf("expected 4 topics, got %v", Topics())
	}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	evt := Registered("u-1", "a@example.org", "Alice", "clinician", time.Now())
	payload, err := evt.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != KindRegistered || got.UserID != "u-1" || got.Role != "clinician" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestEncodeRejectsUnknownKind(t *testing.T) {
	if _, err := (Identity{Kind: "mystery", UserID: "u-1"}).Encode(); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDecodeFailures(t *testing.T) {
	for _, payload := range []string{"", "not json", `{"kind":"loggedIn"}`, `{"kind":"loggedIn","userId":"  "}`} {
		if _, err := Decode([]byte(payload)); !errors.Is(err, ErrDeserialization) {
			t.Fatalf("Decode(%q): expected ErrDeserialization, got %v", payload, err)
		}
	}
}

func TestProcessSkipsAckOnFailure(t *testing.T) {
	// rdb stays nil: neither path below may reach the broker.
	c := NewConsumer(nil, "test-group", "test-consumer")

	handlerCalls := 0
	c.Handle(TopicLoggedIn, func(_ context.Context, _ Identity) error {
		handlerCalls++
		return errors.New("transient failure")
	})

	// Undecodable payload never reaches the handler.
	c.process(context.Background(), delivery{topic: TopicLoggedIn, id: "1-0", payload: []byte("junk")})
	if handlerCalls != 0 {
		t.Fatalf("handler must not run for undecodable payload, ran %d times", handlerCalls)
	}

	// A failing handler leaves the entry unacknowledged.
	payload, _ := LoggedIn("u-1", "a@example.org", time.Now()).Encode()
	c.process(context.Background(), delivery{topic: TopicLoggedIn, id: "1-1", payload: payload})
	if handlerCalls != 1 {
		t.Fatalf("expected one handler call, got %d", handlerCalls)
	}
}

func TestProcessIgnoresUnroutedTopic(t *testing.T) {
	c := NewConsumer(nil, "test-group", "test-consumer")
	payload, _ := LoggedIn("u-1", "a@example.org", time.Now()).Encode()
	// No handler registered for the topic; must not panic or touch the broker.
	c.process(context.Background(), delivery{topic: TopicLoggedIn, id: "1-0", payload: payload})
}
