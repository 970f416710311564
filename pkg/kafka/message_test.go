package kafka

import (
	"testing"
)

func TestMessageBuilder(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	msg := NewMessage().
		WithKey("2026-10-01T09:00").
		WithValue(payload{Name: "alice"}).
		WithEventType("promotion.occurred").
		WithSource("appointments-api").
		Build()

	if msg.Key != "2026-10-01T09:00" {
		t.Errorf("unexpected key: %s", msg.Key)
	}
	if msg.GetEventType() != "promotion.occurred" {
		t.Errorf("unexpected event type: %s", msg.GetEventType())
	}
	if msg.GetEventID() == "" {
		t.Error("Build must assign an event ID")
	}
	if msg.Headers[HeaderTimestamp] == "" {
		t.Error("Build must assign a timestamp header")
	}

	var decoded payload
	if err := msg.DecodeValue(&decoded); err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if decoded.Name != "alice" {
		t.Errorf("round trip lost payload: %+v", decoded)
	}
}

func TestRetryCount(t *testing.T) {
	msg := NewMessage().WithKey("k").WithValue("v").Build()

	if msg.GetRetryCount() != 0 {
		t.Errorf("expected initial retry count 0, got %d", msg.GetRetryCount())
	}

	for i := 1; i <= 12; i++ {
		msg.IncrementRetryCount()
		if msg.GetRetryCount() != i {
			t.Fatalf("after %d increments: got %d", i, msg.GetRetryCount())
		}
	}
}

func TestRetryCount_GarbageHeader(t *testing.T) {
	msg := Message{Headers: map[string]string{HeaderRetryCount: "many"}}
	if msg.GetRetryCount() != 0 {
		t.Errorf("garbage retry header must read as 0, got %d", msg.GetRetryCount())
	}
}
