package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"

	"irisml/sink"
)

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "m" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}
func (s *fakeSession) Context() context.Context { return s.ctx }

type fakeClaim struct{ ch chan *sarama.ConsumerMessage }

func (c *fakeClaim) Topic() string                            { return "runs" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func message(t *testing.T, off int64, ev any) *sarama.ConsumerMessage {
	t.Helper()
	var val []byte
	switch v := ev.(type) {
	case []byte:
		val = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		val = b
	}
	return &sarama.ConsumerMessage{Topic: "runs", Offset: off, Value: val}
}

func TestConsumeClaim_DecodesAndMarks(t *testing.T) {
	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 3)}
	claim.ch <- message(t, 1, sink.Event{RunID: "a", Status: "FINISHED", ModelVersion: 1})
	claim.ch <- message(t, 2, []byte("garbage"))
	claim.ch <- message(t, 3, sink.Event{RunID: "b", Status: "FAILED"})
	close(claim.ch)

	var got []string
	h := &groupHandler{emit: func(_ context.Context, ev sink.Event) error {
		got = append(got, ev.RunID)
		return nil
	}}
	sess := &fakeSession{ctx: context.Background()}
	if err := h.ConsumeClaim(sess, claim); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected events %v", got)
	}
	if len(sess.marked) != 3 {
		t.Fatalf("want every message marked, got %v", sess.marked)
	}
}

func TestConsumeClaim_EmitErrorLeavesMessageUnmarked(t *testing.T) {
	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 1)}
	claim.ch <- message(t, 7, sink.Event{RunID: "a"})

	boom := errors.New("reload failed")
	h := &groupHandler{emit: func(context.Context, sink.Event) error { return boom }}
	sess := &fakeSession{ctx: context.Background()}
	if err := h.ConsumeClaim(sess, claim); !errors.Is(err, boom) {
		t.Fatalf("want emit error, got %v", err)
	}
	if len(sess.marked) != 0 {
		t.Fatalf("message should stay unmarked, got %v", sess.marked)
	}
}

func TestConsumeClaim_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := &groupHandler{emit: func(context.Context, sink.Event) error { return nil }}
	err := h.ConsumeClaim(&fakeSession{ctx: ctx}, &fakeClaim{ch: make(chan *sarama.ConsumerMessage)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestConfigure_Validation(t *testing.T) {
	if err := (&SaramaDriver{}).Configure(Config{}); err == nil {
		t.Fatal("expected missing brokers/topics error")
	}
	if err := (&SaramaDriver{}).Configure(Config{Brokers: []string{"b:9092"}, Topics: []string{"runs"}, Version: "nope"}); err == nil {
		t.Fatal("expected version parse error")
	}
}

func TestNewAdapter(t *testing.T) {
	if _, err := NewAdapter("sarama"); err != nil {
		t.Fatalf("sarama not registered: %v", err)
	}
	if _, err := NewAdapter("kgo"); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	var c Config
	ApplyDefaults(&c)
	if c.StartFrom != "newest" || c.GroupID == "" || c.Version == "" {
		t.Fatalf("defaults not applied: %+v", c)
	}
}

func TestRun_Unconfigured(t *testing.T) {
	if err := (&SaramaDriver{}).Run(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	if err := (&SaramaDriver{}).Close(); err != nil {
		t.Fatalf("Close on unconfigured driver: %v", err)
	}
}
