// Package notify delivers alert messages over independent channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds a single channel send when none is configured.
const DefaultTimeout = 30 * time.Second

var (
	// ErrUnknownChannel is returned for a channel name with no registered sender.
	ErrUnknownChannel = errors.New("unknown notification channel")
	// ErrDisabled is returned by a channel that lacks credentials.
	ErrDisabled = errors.New("notification channel disabled")
)

// Message is a notification payload. Channels without a subject line
// ignore Subject. Kind, Symbol and PercentChange are metadata for
// structured channels such as the event stream.
type Message struct {
	Subject string
	Body    string

	Kind          string
	Symbol        string
	PercentChange *decimal.Decimal
}

// Channel sends a message to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Result is the outcome of sending to one channel.
type Result struct {
	Channel  string
	Err      error
	Duration time.Duration
}

// OK reports whether the send succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Dispatcher fans a message out to named channels. A failure or timeout on
// one channel never affects the others.
type Dispatcher struct {
	channels map[string]Channel
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher registers channels by their Name.
func NewDispatcher(timeout time.Duration, logger *slog.Logger, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		channels: make(map[string]Channel, len(channels)),
		timeout:  timeout,
		logger:   logger,
	}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
	}
	return d
}

// Channels returns the registered channel names, sorted.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Send delivers msg to every named channel concurrently and returns one
// Result per requested name. It blocks until all channels have finished or
// timed out.
func (d *Dispatcher) Send(ctx context.Context, msg Message, names []string) map[string]Result {
	results := make(map[string]Result, len(names))
	var targets []Channel
	for _, name := range names {
		if _, dup := results[name]; dup {
			continue
		}
		ch, ok := d.channels[name]
		if !ok {
			results[name] = Result{Channel: name, Err: fmt.Errorf("%w: %s", ErrUnknownChannel, name)}
			continue
		}
		results[name] = Result{Channel: name}
		targets = append(targets, ch)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ch := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := d.sendOne(ctx, ch, msg)
			mu.Lock()
			results[ch.Name()] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, res := range results {
		if res.Err != nil {
			d.logger.Error("notification failed", "channel", res.Channel, "error", res.Err)
		} else {
			d.logger.Info("notification sent", "channel", res.Channel, "duration", res.Duration)
		}
	}
	return results
}

// sendOne runs a single channel under its own timeout. A channel that
// ignores its context is abandoned once the timeout elapses.
func (d *Dispatcher) sendOne(ctx context.Context, ch Channel, msg Message) Result {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("channel %s panicked: %v", ch.Name(), r)
			}
		}()
		done <- ch.Send(ctx, msg)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("send via %s: %w", ch.Name(), ctx.Err())
	}
	return Result{Channel: ch.Name(), Err: err, Duration: time.Since(start)}
}
