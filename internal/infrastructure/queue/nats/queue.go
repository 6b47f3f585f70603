package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/cropguard/internal/infrastructure/resilience"
)

// AssetJanitorsGroup is the queue group shared by release workers so each
// message reaches one of them.
const AssetJanitorsGroup = "asset-janitors"

const (
	defaultMaxDeliveries     = 5
	defaultRedeliveryBackoff = 2 * time.Second
	maxRedeliveryBackoff     = time.Minute
)

// releaseMessage is the wire form of a deferred asset deletion. NotBefore is
// set on redeliveries; workers hold the message until then.
type releaseMessage struct {
	AssetID     string    `json:"asset_id"`
	Attempt     int       `json:"attempt"`
	RequestedAt time.Time `json:"requested_at"`
	NotBefore   time.Time `json:"not_before,omitzero"`
}

// Queue carries image asset ids whose inline deletion failed to the worker.
// Plain core NATS has no redelivery, so a failed release is republished with
// its attempt count bumped and a doubling delay until MaxDeliveries is
// reached.
type Queue struct {
	conn              *nats.Conn
	subject           string
	executor          *resilience.Executor
	maxDeliveries     int
	redeliveryBackoff time.Duration
	now               func() time.Time

	// send overrides publish for redeliveries.
	send func(context.Context, releaseMessage) error
}

type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	MaxDeliveries      int
	RedeliveryBackoff  time.Duration
	ResilienceExecutor *resilience.Executor
	ClientName         string
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	name := strings.TrimSpace(options.ClientName)
	if name == "" {
		name = "cropguard"
	}

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(positiveOr(options.ConnectTimeout, 2*time.Second)),
		nats.ReconnectWait(positiveOr(options.ReconnectWait, 2*time.Second)),
		nats.MaxReconnects(positiveOr(options.MaxReconnects, 60)),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("asset_queue_disconnected", "subject", subject, "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("asset_queue_reconnected", "subject", subject, "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:              conn,
		subject:           subject,
		executor:          options.ResilienceExecutor,
		maxDeliveries:     positiveOr(options.MaxDeliveries, defaultMaxDeliveries),
		redeliveryBackoff: options.RedeliveryBackoff,
		now:               time.Now,
	}, nil
}

func positiveOr[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishAssetRelease(ctx context.Context, assetID string) error {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return errors.New("nats publish: empty asset id")
	}
	return q.publish(ctx, releaseMessage{AssetID: assetID, Attempt: 1, RequestedAt: q.clock()})
}

func (q *Queue) publish(ctx context.Context, msg releaseMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode asset release: %w", err)
	}
	call := func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeAssetRelease blocks until ctx is done, then drains the
// subscription so in-flight releases finish.
func (q *Queue) SubscribeAssetRelease(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, AssetJanitorsGroup, func(m *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		q.deliver(ctx, m.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// deliver runs handler for one message once its NotBefore has passed and
// schedules a delayed redelivery on failure. Malformed payloads are dropped.
func (q *Queue) deliver(ctx context.Context, data []byte, handler func(context.Context, string) error) {
	msg, err := decodeRelease(data)
	if err != nil {
		slog.Error("asset_release_dropped", "reason", "malformed", "error", err)
		return
	}

	if !q.waitUntil(ctx, msg.NotBefore) {
		// Shutting down: hand the message back unchanged for another worker.
		if pubErr := q.redeliver(context.WithoutCancel(ctx), msg); pubErr != nil {
			slog.Error("asset_release_requeue_failed", "asset_id", msg.AssetID, "error", pubErr)
		}
		return
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	err = handler(handlerCtx, msg.AssetID)
	if err == nil {
		return
	}

	if msg.Attempt >= q.maxDeliveries {
		slog.Error("asset_release_abandoned",
			"asset_id", msg.AssetID,
			"attempts", msg.Attempt,
			"pending_since", msg.RequestedAt,
			"error", err,
		)
		return
	}
	delay := q.redeliveryDelay(msg.Attempt)
	slog.Warn("asset_release_redelivering",
		"asset_id", msg.AssetID,
		"attempt", msg.Attempt,
		"delay_ms", delay.Milliseconds(),
		"error", err,
	)
	msg.Attempt++
	msg.NotBefore = q.clock().Add(delay)
	if pubErr := q.redeliver(context.WithoutCancel(ctx), msg); pubErr != nil {
		slog.Error("asset_release_redelivery_failed", "asset_id", msg.AssetID, "error", pubErr)
	}
}

func (q *Queue) redeliver(ctx context.Context, msg releaseMessage) error {
	if q.send != nil {
		return q.send(ctx, msg)
	}
	return q.publish(ctx, msg)
}

// redeliveryDelay doubles from the configured backoff per failed attempt and
// is capped at maxRedeliveryBackoff.
func (q *Queue) redeliveryDelay(failedAttempt int) time.Duration {
	delay := positiveOr(q.redeliveryBackoff, defaultRedeliveryBackoff)
	for i := 1; i < failedAttempt && delay < maxRedeliveryBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxRedeliveryBackoff)
}

// waitUntil blocks until notBefore or ctx is done and reports whether the
// message is due. Waits are capped at maxRedeliveryBackoff so a skewed
// publisher clock cannot park a worker.
func (q *Queue) waitUntil(ctx context.Context, notBefore time.Time) bool {
	if notBefore.IsZero() {
		return ctx.Err() == nil
	}
	wait := min(notBefore.Sub(q.clock()), maxRedeliveryBackoff)
	if wait <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func decodeRelease(data []byte) (releaseMessage, error) {
	var msg releaseMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("decode asset release: %w", err)
	}
	msg.AssetID = strings.TrimSpace(msg.AssetID)
	if msg.AssetID == "" {
		return msg, errors.New("decode asset release: empty asset id")
	}
	if msg.Attempt < 1 {
		msg.Attempt = 1
	}
	return msg, nil
}

func (q *Queue) clock() time.Time {
	if q.now == nil {
		return time.Now().UTC()
	}
	return q.now().UTC()
}
