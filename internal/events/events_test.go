package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
)

type recordingPublisher struct {
	got []Event
	err error
}

func (r *recordingPublisher) Publish(_ context.Context, evt Event) error {
	r.got = append(r.got, evt)
	return r.err
}

func TestMulti_PublishesToAllAndJoinsErrors(t *testing.T) {
	errBroker := errors.New("broker down")
	errSocket := errors.New("socket closed")
	failing := &recordingPublisher{err: errBroker}
	ok := &recordingPublisher{}
	alsoFailing := &recordingPublisher{err: errSocket}

	err := Multi{failing, nil, ok, alsoFailing}.Publish(context.Background(), Event{Event: OrderCreated})
	if !errors.Is(err, errBroker) || !errors.Is(err, errSocket) {
		t.Fatalf("expected both failures, got %v", err)
	}
	if len(ok.got) != 1 || len(alsoFailing.got) != 1 {
		t.Errorf("every publisher must receive the event, got %d/%d", len(ok.got), len(alsoFailing.got))
	}

	if err := (Multi{ok}).Publish(context.Background(), Event{Event: OrderCreated}); err != nil {
		t.Errorf("expected nil when every publisher succeeds, got %v", err)
	}
}

type stubProducer struct {
	sarama.SyncProducer
	sent []*sarama.ProducerMessage
}

func (s *stubProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	s.sent = append(s.sent, msg)
	return 0, int64(len(s.sent)), nil
}

func TestKafkaPublisher_KeysByEventName(t *testing.T) {
	producer := &stubProducer{}
	pub := NewKafkaPublisherWithProducer(producer, "ledger")

	evt := Event{Event: StockLow, Data: map[string]interface{}{"stock": 2}}
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(producer.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(producer.sent))
	}
	msg := producer.sent[0]
	if msg.Topic != "ledger" {
		t.Errorf("expected topic ledger, got %s", msg.Topic)
	}
	key, _ := msg.Key.Encode()
	if string(key) != StockLow {
		t.Errorf("expected key %s, got %s", StockLow, key)
	}
	value, _ := msg.Value.Encode()
	var decoded Event
	if err := json.Unmarshal(value, &decoded); err != nil || decoded.Event != StockLow {
		t.Errorf("unexpected payload %s (%v)", value, err)
	}
}
