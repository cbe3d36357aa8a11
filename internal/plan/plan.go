// Package plan holds the experiment plan file layout.
package plan

type stdoutSink struct {
	PrintCounter bool `yaml:"print_counter"`
	JSON         bool `yaml:"json"`
}

type kafkaSink struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	RequiredAcks int16    `yaml:"required_acks"` // 0,1,-1
}

type sinkConfigs struct {
	Stdout stdoutSink `yaml:"stdout"`
	Kafka  kafkaSink  `yaml:"kafka"`
}

type DatasetSpec struct {
	Path        string `yaml:"path"`
	LabelColumn string `yaml:"label_column"` // empty = last column
	// Fraction of rows held out, clean, for validation. 0 validates on
	// the full clean table.
	HoldoutFraction float64 `yaml:"holdout_fraction"`
}

type ModelSpec struct {
	MaxDepth        int    `yaml:"max_depth"`
	Criterion       string `yaml:"criterion"`
	RandomState     int64  `yaml:"random_state"`
	MinSamplesSplit int    `yaml:"min_samples_split"`
	MinSamplesLeaf  int    `yaml:"min_samples_leaf"`
}

type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Experiment string      `yaml:"experiment"`
	ModelName  string      `yaml:"model_name"`
	Dataset    DatasetSpec `yaml:"dataset"`

	// Every level is crossed with every model.
	PoisonLevels []float64   `yaml:"poison_levels"`
	Models       []ModelSpec `yaml:"models"`
	Seed         uint64      `yaml:"seed"`

	Sinks       []string    `yaml:"sinks"`
	SinkConfigs sinkConfigs `yaml:"sink_configs"`
}

// Runs is the number of training runs the plan describes.
func (f File) Runs() int { return len(f.PoisonLevels) * len(f.Models) }
