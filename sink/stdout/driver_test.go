package stdout

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"irisml/sink"
)

func event() sink.Event {
	return sink.Event{
		RunID:          "r1",
		RunName:        "run-00-depth3-p0.0",
		Experiment:     "iris",
		PoisonFraction: 0.05,
		Metrics:        map[string]float64{"validation_accuracy_clean": 0.9, "train_accuracy": 1},
		ModelName:      "iris-model",
		ModelVersion:   2,
		Status:         "FINISHED",
	}
}

func TestPush_Text(t *testing.T) {
	var buf bytes.Buffer
	d := &driver{}
	if err := d.Configure(Config{PrintCounter: true, Out: &buf}); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if err := d.Push(event()); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d", len(lines))
	}
	want := "[sink 000002] iris run-00-depth3-p0.0 status=FINISHED poison=5.0% train_accuracy=1.0000 validation_accuracy_clean=0.9000 model=iris-model/v2"
	if lines[1] != want {
		t.Fatalf("got  %q\nwant %q", lines[1], want)
	}
}

func TestPush_JSON(t *testing.T) {
	var buf bytes.Buffer
	d := &driver{}
	_ = d.Configure(Config{JSON: true, Out: &buf})
	if err := d.Push(event()); err != nil {
		t.Fatal(err)
	}
	var got sink.Event
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if got.RunID != "r1" || got.ModelVersion != 2 {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestConfigure_WrongType(t *testing.T) {
	if err := (&driver{}).Configure(42); err == nil {
		t.Fatal("expected error")
	}
}

func TestRegistered(t *testing.T) {
	if _, err := sink.NewAdapter("stdout"); err != nil {
		t.Fatalf("stdout not registered: %v", err)
	}
}
