// Package worker turns queued absentee notices into guardian e-mails.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scuola/internal/amqp"
	"scuola/internal/cache"
	"scuola/internal/log"
	"scuola/internal/metrics"
	"scuola/internal/notify"
)

const (
	sentCacheSize = 10000
	sentCacheTTL  = 24 * time.Hour
)

// NoticeWorker mails one guardian per message. Message ids already mailed are
// remembered for a day so a redelivery does not send twice.
type NoticeWorker struct {
	mailer  notify.Mailer
	logger  *log.Logger
	metrics *metrics.Metrics
	sent    *cache.LRUCache[struct{}]
}

func NewNoticeWorker(mailer notify.Mailer, logger *log.Logger, m *metrics.Metrics) *NoticeWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &NoticeWorker{
		mailer:  mailer,
		logger:  logger.WithComponent(log.ComponentWorker),
		metrics: m,
		sent:    cache.NewLRUCache[struct{}](sentCacheSize, sentCacheTTL),
	}
}

// Sent exposes the dedupe cache so it can be registered for periodic cleanup.
func (w *NoticeWorker) Sent() cache.Cleaner { return w.sent }

// HandleNotice processes a single notice message from AMQP.
func (w *NoticeWorker) HandleNotice(ctx context.Context, msg *amqp.AbsenteeMessage) error {
	if _, done := w.sent.Get(msg.ID); done {
		w.logger.DebugContext(ctx, "Skipping already mailed notice", "id", msg.ID)
		return nil
	}

	mail, err := notify.Compose(msg.Notice)
	if errors.Is(err, notify.ErrNoRecipient) {
		w.metrics.Notice("no_recipient")
		w.logger.WarnContext(ctx, "Absentee has no guardian e-mail, dropping notice",
			"id", msg.ID, log.FieldAdmissionNo, msg.Notice.AdmissionNo)
		return nil
	}
	if err != nil {
		return err
	}

	if err := w.mailer.Send(ctx, mail); err != nil {
		w.metrics.Notice("mail_failed")
		return fmt.Errorf("mail notice %s: %w", msg.ID, err)
	}
	w.sent.Set(msg.ID, struct{}{})
	w.metrics.Notice("mailed")
	w.logger.InfoContext(ctx, "Mailed absentee notice",
		"id", msg.ID,
		log.FieldAdmissionNo, msg.Notice.AdmissionNo,
		log.FieldDate, msg.Notice.Date)
	return nil
}
