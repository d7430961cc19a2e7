package eventbus_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/sdk/eventbus"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	messages []kafka.Message
	writeErr error
	closed   bool
}

func (fw *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if fw.writeErr != nil {
		return fw.writeErr
	}
	fw.messages = append(fw.messages, msgs...)
	return nil
}

func (fw *fakeWriter) Close() error {
	fw.closed = true
	return nil
}

func Test_Publish_WritesKeyedJSON(t *testing.T) {
	ctx := context.Background()
	fw := &fakeWriter{}
	pub := eventbus.NewKafkaPublisherWithWriter(fw)

	orgID := uuid.New()
	event := struct {
		EventType      string    `json:"eventType"`
		Operation      string    `json:"operation"`
		OrganizationID uuid.UUID `json:"organizationId"`
	}{
		EventType:      "HIERARCHY_CHANGE",
		Operation:      "CREATE",
		OrganizationID: orgID,
	}

	if err := pub.Publish(ctx, orgID.String(), event); err != nil {
		t.Fatalf("publishing: %s", err)
	}

	if len(fw.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(fw.messages))
	}

	msg := fw.messages[0]
	if string(msg.Key) != orgID.String() {
		t.Errorf("got key %q, want %q", msg.Key, orgID)
	}

	var decoded map[string]any
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decoding message value: %s", err)
	}
	if decoded["eventType"] != "HIERARCHY_CHANGE" {
		t.Errorf("got eventType %v, want HIERARCHY_CHANGE", decoded["eventType"])
	}
	if decoded["operation"] != "CREATE" {
		t.Errorf("got operation %v, want CREATE", decoded["operation"])
	}
}

func Test_Publish_SameKeySameOrdering(t *testing.T) {
	ctx := context.Background()
	fw := &fakeWriter{}
	pub := eventbus.NewKafkaPublisherWithWriter(fw)

	key := uuid.NewString()
	for _, op := range []string{"CREATE", "UPDATE", "DELETE"} {
		if err := pub.Publish(ctx, key, map[string]string{"operation": op}); err != nil {
			t.Fatalf("publishing %s: %s", op, err)
		}
	}

	if len(fw.messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(fw.messages))
	}
	for i, want := range []string{"CREATE", "UPDATE", "DELETE"} {
		var decoded map[string]string
		if err := json.Unmarshal(fw.messages[i].Value, &decoded); err != nil {
			t.Fatalf("decoding message %d: %s", i, err)
		}
		if decoded["operation"] != want {
			t.Errorf("message %d: got operation %q, want %q", i, decoded["operation"], want)
		}
	}
}

func Test_Publish_PropagatesWriteError(t *testing.T) {
	ctx := context.Background()
	fw := &fakeWriter{writeErr: errors.New("broker unreachable")}
	pub := eventbus.NewKafkaPublisherWithWriter(fw)

	if err := pub.Publish(ctx, "k", map[string]string{"a": "b"}); err == nil {
		t.Fatal("expected the writer error to surface")
	}
}

func Test_Publish_RejectsUnencodableValue(t *testing.T) {
	ctx := context.Background()
	fw := &fakeWriter{}
	pub := eventbus.NewKafkaPublisherWithWriter(fw)

	if err := pub.Publish(ctx, "k", func() {}); err == nil {
		t.Fatal("expected a marshal error for a func value")
	}
	if len(fw.messages) != 0 {
		t.Errorf("got %d messages, want none written", len(fw.messages))
	}
}

func Test_Close(t *testing.T) {
	fw := &fakeWriter{}
	pub := eventbus.NewKafkaPublisherWithWriter(fw)

	if err := pub.Close(); err != nil {
		t.Fatalf("closing: %s", err)
	}
	if !fw.closed {
		t.Error("underlying writer was not closed")
	}
}
