package kafka

import "errors"

type Config struct {
	Brokers   []string `koanf:"brokers"`
	Topics    []string `koanf:"topics"`
	GroupID   string   `koanf:"group_id"`
	StartFrom string   `koanf:"start_from"` // oldest|newest (default newest)
	Version   string   `koanf:"version"`
	TLSEn     bool     `koanf:"tls_enabled"`
	SASLUser  string   `koanf:"sasl_user"`
	SASLPass  string   `koanf:"sasl_pass"`
}

// ApplyDefaults fills the optional fields.
func ApplyDefaults(c *Config) {
	if c.StartFrom == "" {
		c.StartFrom = "newest"
	}
	if c.Version == "" {
		c.Version = "2.1.0"
	}
	if c.GroupID == "" {
		c.GroupID = "irisml-serve"
	}
}

func (c Config) validate() error {
	var errs []error
	if len(c.Brokers) == 0 {
		errs = append(errs, errors.New("kafka: at least one broker is required"))
	}
	if len(c.Topics) == 0 {
		errs = append(errs, errors.New("kafka: at least one topic is required"))
	}
	return errors.Join(errs...)
}
