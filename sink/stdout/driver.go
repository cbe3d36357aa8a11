package stdout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"irisml/sink"
)

/* ────────── public YAML config ────────── */
type Config struct {
	PrintCounter bool `yaml:"print_counter"` // prepend seq#
	JSON         bool `yaml:"json"`          // one JSON object per line

	// Out defaults to os.Stdout.
	Out io.Writer `yaml:"-"`
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config

	mu  sync.Mutex // guards seq and writes
	seq uint64
}

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	d.cfg = c
	return nil
}

func (d *driver) Push(e sink.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++

	var line string
	if d.cfg.JSON {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("stdout-sink: %w", err)
		}
		line = string(b)
	} else {
		line = format(e)
	}
	if d.cfg.PrintCounter {
		line = fmt.Sprintf("[sink %06d] %s", d.seq, line)
	}
	_, err := fmt.Fprintln(d.cfg.Out, line)
	return err
}

func (d *driver) Close() error { return nil }

/* ────────── internals ────────── */

func format(e sink.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s status=%s poison=%.1f%%", e.Experiment, e.RunName, e.Status, e.PoisonFraction*100)
	keys := make([]string, 0, len(e.Metrics))
	for k := range e.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%.4f", k, e.Metrics[k])
	}
	if e.ModelVersion > 0 {
		fmt.Fprintf(&b, " model=%s/v%d", e.ModelName, e.ModelVersion)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, " error=%q", e.Error)
	}
	return b.String()
}

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
