package sink

import (
	"fmt"
	"sort"
	"time"
)

// Event is what the training pipeline announces once a run is over.
type Event struct {
	RunID          string             `json:"run_id"`
	RunName        string             `json:"run_name"`
	Experiment     string             `json:"experiment"`
	PoisonFraction float64            `json:"poison_fraction"`
	Params         map[string]string  `json:"params"`
	Metrics        map[string]float64 `json:"metrics"`
	ModelName      string             `json:"model_name,omitempty"`
	ModelVersion   int                `json:"model_version,omitempty"`
	Status         string             `json:"status"`
	Error          string             `json:"error,omitempty"`
	Time           time.Time          `json:"time"`
}

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error // driver-specific YAML ⇒ struct
	Push(Event) error    // consume one event
	Close() error        // idempotent
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}

// Names lists the registered drivers in sorted order.
func Names() []string {
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
