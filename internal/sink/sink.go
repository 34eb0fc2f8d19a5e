// Package sink delivers normalized weather records downstream.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/i474232898/weather-poller/internal/weather"
)

// DefaultTopic is the topic name records are published under.
const DefaultTopic = "android_local_weather"

// Sink accepts records for delivery. Delivery guarantees beyond a successful
// Emit are the sink's own business.
type Sink interface {
	Name() string
	Emit(ctx context.Context, rec weather.Record) error
	Close() error
}

// EmitError reports that a sink refused a record.
type EmitError struct {
	Sink string
	Err  error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("sink %s: emit failed: %v", e.Sink, e.Err)
}

func (e *EmitError) Unwrap() error {
	return e.Err
}

// Multi fans a record out to several sinks.
type Multi struct {
	sinks   []Sink
	onError func(sink string)
}

// NewMulti returns a sink that emits to every given sink in order. onError,
// if not nil, is called with the name of each sink that fails.
func NewMulti(onError func(sink string), sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, onError: onError}
}

func (m *Multi) Name() string { return "multi" }

// Emit tries every sink even if earlier ones fail. The result joins one
// *EmitError per failed sink.
func (m *Multi) Emit(ctx context.Context, rec weather.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(ctx, rec); err != nil {
			var ee *EmitError
			if !errors.As(err, &ee) {
				ee = &EmitError{Sink: s.Name(), Err: err}
			}
			errs = append(errs, ee)
			if m.onError != nil {
				m.onError(s.Name())
			}
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Names lists the wrapped sinks.
func (m *Multi) Names() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return names
}
