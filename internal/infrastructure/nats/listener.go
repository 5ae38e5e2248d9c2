// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/log"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const defaultWorkers = 4

// Listener joins a queue group on every notification subject and hands
// decoded events to a dispatcher from a fixed pool of workers. Every
// message counts as handled once dispatched, whatever the outcome.
//
// Delivery into the pool blocks while the workers are busy. Messages then
// wait in the subscription's pending queue, which is left unbounded, so a
// burst is slowed down rather than dropped as a slow consumer.
type Listener struct {
	conn       *nats.Conn
	dispatcher port.EventDispatcher
	queue      string
	workers    int

	msgs     chan *nats.Msg
	done     chan struct{}
	stopOnce sync.Once
	subs     []*nats.Subscription
	wg       sync.WaitGroup
}

// NewListener returns a listener that has not subscribed yet.
func NewListener(conn *nats.Conn, dispatcher port.EventDispatcher, config Config) *Listener {
	queue := config.Queue
	if queue == "" {
		queue = constants.DefaultNotificationQueue
	}
	workers := config.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Listener{
		conn:       conn,
		dispatcher: dispatcher,
		queue:      queue,
		workers:    workers,
		msgs:       make(chan *nats.Msg, workers),
		done:       make(chan struct{}),
	}
}

// Start subscribes to each stream and launches the workers.
func (l *Listener) Start(ctx context.Context, streams []model.TopicExchange) error {
	for _, stream := range streams {
		subject := stream.Subject(constants.NotificationPriority)
		sub, err := l.conn.QueueSubscribe(subject, l.queue, l.deliver)
		if err != nil {
			l.unsubscribe(ctx)
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		// negative limits disable the slow consumer cutoff
		if err := sub.SetPendingLimits(-1, -1); err != nil {
			l.subs = append(l.subs, sub)
			l.unsubscribe(ctx)
			return fmt.Errorf("failed to lift pending limits on %s: %w", subject, err)
		}
		l.subs = append(l.subs, sub)
		slog.InfoContext(ctx, "subscribed to notifications",
			"subject", subject,
			"queue", l.queue,
		)
	}

	// queued notifications are still processed after ctx is cancelled; Stop
	// drains them
	workCtx := context.WithoutCancel(ctx)
	for range l.workers {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.work(workCtx)
		}()
	}
	return nil
}

// deliver is the subscription callback. It waits for a free worker and
// only gives up once the listener is stopping.
func (l *Listener) deliver(msg *nats.Msg) {
	select {
	case l.msgs <- msg:
	case <-l.done:
		slog.Warn("listener stopped, notification not processed", "subject", msg.Subject)
	}
}

func (l *Listener) work(ctx context.Context) {
	for {
		select {
		case msg := <-l.msgs:
			l.process(ctx, msg.Subject, msg.Data)
		case <-l.done:
			for {
				select {
				case msg := <-l.msgs:
					l.process(ctx, msg.Subject, msg.Data)
				default:
					return
				}
			}
		}
	}
}

// Stop unsubscribes and waits for in-flight notifications to finish.
func (l *Listener) Stop(ctx context.Context) {
	l.stopOnce.Do(func() {
		l.unsubscribe(ctx)
		close(l.done)
		l.wg.Wait()
		slog.InfoContext(ctx, "notification listener stopped")
	})
}

func (l *Listener) unsubscribe(ctx context.Context) {
	for _, sub := range l.subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.WarnContext(ctx, "failed to unsubscribe", "subject", sub.Subject, "error", err)
		}
	}
	l.subs = nil
}

// process decodes and dispatches one message. Malformed messages are
// logged and dropped.
func (l *Listener) process(ctx context.Context, subject string, data []byte) model.Outcome {
	event, err := decodeNotification(data)
	if err != nil {
		slog.WarnContext(ctx, "dropping malformed notification",
			"subject", subject,
			"error", err,
		)
		return model.OutcomeFailed
	}

	messageID, _ := event.Metadata["message_id"].(string)
	if messageID == "" {
		messageID = uuid.New().String()
	}
	ctx = log.AppendCtx(ctx, slog.String("message_id", messageID))

	outcome := l.dispatcher.Dispatch(ctx, event)
	slog.DebugContext(ctx, "notification processed",
		"subject", subject,
		"event_type", event.EventType,
		"outcome", outcome.String(),
	)
	return outcome
}
