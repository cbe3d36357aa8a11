package kafka

import (
	"context"

	"irisml/sink"
)

// EmitFunc receives every decoded run event. Returning an error stops the
// consumer.
type EmitFunc func(context.Context, sink.Event) error

type Adapter interface {
	Configure(Config) error
	Run(context.Context, EmitFunc) error
	Close() error
}
