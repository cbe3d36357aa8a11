package kafka

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"irisml/sink"
)

type Config struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Acks    int16    `yaml:"required_acks"` // 0,1,-1

	// Producer, when set, is used instead of dialing Brokers.
	Producer sarama.SyncProducer `yaml:"-"`
}

type driver struct {
	cfg Config
	p   sarama.SyncProducer
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", c)
	}
	if cfg.Topic == "" {
		return errors.New("kafka-sink: topic is required")
	}
	d.cfg = cfg
	if cfg.Producer != nil {
		d.p = cfg.Producer
		return nil
	}
	if len(cfg.Brokers) == 0 {
		return errors.New("kafka-sink: at least one broker is required")
	}

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true
	var err error
	d.p, err = sarama.NewSyncProducer(cfg.Brokers, sc)
	return err
}

func (d *driver) Push(e sink.Event) error {
	if d.p == nil {
		return errors.New("kafka-sink: not configured")
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka-sink: encode: %w", err)
	}
	_, _, err = d.p.SendMessage(&sarama.ProducerMessage{
		Topic: d.cfg.Topic,
		Key:   sarama.StringEncoder(e.RunID),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("kafka-sink: send %s: %w", e.RunID, err)
	}
	return nil
}

func (d *driver) Close() error {
	if d.p == nil {
		return nil
	}
	p := d.p
	d.p = nil
	return p.Close()
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
