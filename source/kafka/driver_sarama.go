package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"

	"irisml/internal/logging"
	"irisml/sink"
)

type SaramaDriver struct {
	cfg   Config
	cl    sarama.Client
	group sarama.ConsumerGroup
}

func (d *SaramaDriver) Configure(config Config) error {
	ApplyDefaults(&config)
	if err := config.validate(); err != nil {
		return err
	}
	d.cfg = config

	ver, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.Consumer.Return.Errors = true
	if config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASLUser, config.SASLPass
	}
	switch config.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl)
	return err
}

func (d *SaramaDriver) Run(ctx context.Context, emit EmitFunc) error {
	if d.group == nil {
		return errors.New("sarama-driver: not configured")
	}
	handler := &groupHandler{emit: emit}

	for {
		if err := d.group.Consume(ctx, d.cfg.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (d *SaramaDriver) Close() error {
	var errs []error
	if d.group != nil {
		errs = append(errs, d.group.Close())
	}
	if d.cl != nil && !d.cl.Closed() {
		errs = append(errs, d.cl.Close())
	}
	return errors.Join(errs...)
}

type groupHandler struct {
	emit EmitFunc
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error { return nil }

func (*groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim decodes each message as a run event. Undecodable messages
// are logged and skipped; an emit error stops the claim without marking
// the message so it is redelivered.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log := logging.For("kafka-source")
	for {
		select {
		case <-sess.Context().Done():
			return sess.Context().Err()

		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			var ev sink.Event
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				log.Warn("skipping undecodable run event",
					"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
				sess.MarkMessage(msg, "")
				continue
			}
			if err := h.emit(sess.Context(), ev); err != nil {
				return err
			}
			sess.MarkMessage(msg, "")
		}
	}
}

func init() { Register("sarama", func() Adapter { return &SaramaDriver{} }) }
