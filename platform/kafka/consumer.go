package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"manuell_oppgave_backend/platform/logger"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrFatal marks a consumer failure that must stop the process.
var ErrFatal = errors.New("kafka: fatal consumer error")

// Handler processes one record. Returning nil commits the record.
type Handler interface {
	Handle(ctx context.Context, rec *kgo.Record) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, rec *kgo.Record) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, rec *kgo.Record) error {
	return f(ctx, rec)
}

// ErrorPolicy decides what happens when a handler fails.
type ErrorPolicy int

const (
	// PolicySkip logs the failure and commits past the record.
	PolicySkip ErrorPolicy = iota
	// PolicyRetry pauses the partition, backs off, seeks back to the failed
	// record and resumes so it is redelivered.
	PolicyRetry
)

// Client is the subset of *kgo.Client the consumer depends on.
type Client interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	PauseFetchPartitions(topicPartitions map[string][]int32) map[string][]int32
	ResumeFetchPartitions(topicPartitions map[string][]int32)
	SetOffsets(setOffsets map[string]map[int32]kgo.EpochOffset)
}

// ErrorRecorder receives a signal every time a record fails.
type ErrorRecorder interface {
	RecordError(topic string)
}

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	Name    string
	Policy  ErrorPolicy
	Backoff time.Duration
	// Running is checked before each poll; the loop exits once it returns false.
	Running  func() bool
	Recorder ErrorRecorder
}

// Consumer runs a poll-handle-commit loop over a single client.
type Consumer struct {
	client  Client
	handler Handler
	opts    ConsumerOptions
	log     *logger.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewConsumer creates a consumer. A nil Running func means run until ctx is done.
func NewConsumer(client Client, handler Handler, opts ConsumerOptions, log *logger.Logger) *Consumer {
	if opts.Running == nil {
		opts.Running = func() bool { return true }
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Minute
	}
	return &Consumer{
		client:  client,
		handler: handler,
		opts:    opts,
		log:     &logger.Logger{Logger: log.With(slog.String("consumer", opts.Name))},
		sleep:   sleepCtx,
	}
}

// Run polls until ctx is cancelled, the running check fails, or a fatal
// error occurs. Fatal errors are returned wrapped in ErrFatal.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("consumer started")
	defer c.log.Info("consumer stopped")

	for c.opts.Running() {
		if ctx.Err() != nil {
			return nil
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		if err := c.checkFetchErrors(fetches); err != nil {
			return err
		}

		var fatal error
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if fatal != nil || len(p.Records) == 0 {
				return
			}
			fatal = c.processPartition(ctx, p)
		})
		if fatal != nil {
			return fatal
		}
	}
	return nil
}

func (c *Consumer) checkFetchErrors(fetches kgo.Fetches) error {
	for _, fe := range fetches.Errors() {
		if errors.Is(fe.Err, context.Canceled) {
			continue
		}
		if isFatal(fe.Err) {
			return fmt.Errorf("%w: topic %s partition %d: %v", ErrFatal, fe.Topic, fe.Partition, fe.Err)
		}
		c.log.Warn("fetch error",
			slog.String("topic", fe.Topic),
			slog.Int("partition", int(fe.Partition)),
			slog.String("error", fe.Err.Error()),
		)
	}
	return nil
}

func (c *Consumer) processPartition(ctx context.Context, p kgo.FetchTopicPartition) error {
	for _, rec := range p.Records {
		err := c.handler.Handle(ctx, rec)
		if err == nil {
			if cerr := c.client.CommitRecords(ctx, rec); cerr != nil {
				if isFatal(cerr) {
					return fmt.Errorf("%w: commit: %v", ErrFatal, cerr)
				}
				c.log.Warn("commit failed", slog.String("error", cerr.Error()))
			}
			continue
		}

		if errors.Is(err, ErrFatal) || isFatal(err) {
			return fmt.Errorf("%w: %v", ErrFatal, err)
		}
		if ctx.Err() != nil {
			return nil
		}

		if c.opts.Recorder != nil {
			c.opts.Recorder.RecordError(rec.Topic)
		}
		c.log.Error("failed to process record",
			slog.String("topic", rec.Topic),
			slog.Int("partition", int(rec.Partition)),
			slog.Int64("offset", rec.Offset),
			slog.String("error", err.Error()),
		)

		if c.opts.Policy == PolicySkip {
			_ = c.client.CommitRecords(ctx, rec)
			continue
		}

		c.rewind(ctx, rec)
		return nil
	}
	return nil
}

// rewind pauses the record's partition, waits for the backoff, points the
// partition back at the record and resumes it.
func (c *Consumer) rewind(ctx context.Context, rec *kgo.Record) {
	tp := map[string][]int32{rec.Topic: {rec.Partition}}
	c.client.PauseFetchPartitions(tp)
	defer c.client.ResumeFetchPartitions(tp)

	c.log.Info("backing off before retrying record",
		slog.String("topic", rec.Topic),
		slog.Int64("offset", rec.Offset),
		slog.Duration("backoff", c.opts.Backoff),
	)
	if err := c.sleep(ctx, c.opts.Backoff); err != nil {
		return
	}

	c.client.SetOffsets(map[string]map[int32]kgo.EpochOffset{
		rec.Topic: {rec.Partition: {Epoch: rec.LeaderEpoch, Offset: rec.Offset}},
	})
}

var fatalErrors = []error{
	kerr.TopicAuthorizationFailed,
	kerr.GroupAuthorizationFailed,
	kerr.ClusterAuthorizationFailed,
	kerr.SaslAuthenticationFailed,
}

func isFatal(err error) bool {
	for _, target := range fatalErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
