// Package notify delivers absentee notices: the API publishes them and the
// worker turns them into guardian e-mails.
package notify

import (
	"context"

	"scuola/internal/core"
	"scuola/internal/log"
	"scuola/internal/metrics"
)

// Notifier hands one notice to a delivery channel.
type Notifier interface {
	NotifyAbsentee(ctx context.Context, notice core.AbsenteeNotice) error
}

// LogNotifier records notices in the log. Used when no broker is configured.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogNotifier{logger: logger.WithComponent(log.ComponentNotify)}
}

func (n *LogNotifier) NotifyAbsentee(ctx context.Context, notice core.AbsenteeNotice) error {
	n.logger.InfoContext(ctx, "Absentee notice",
		log.FieldAdmissionNo, notice.AdmissionNo,
		log.FieldClass, notice.Class,
		log.FieldSection, notice.Section,
		log.FieldDate, notice.Date,
		"guardian_email", notice.GuardianEmail,
		"phone", notice.Phone)
	return nil
}

type instrumented struct {
	next    Notifier
	metrics *metrics.Metrics
}

// WithMetrics counts published and failed notices.
func WithMetrics(next Notifier, m *metrics.Metrics) Notifier {
	return &instrumented{next: next, metrics: m}
}

func (i *instrumented) NotifyAbsentee(ctx context.Context, notice core.AbsenteeNotice) error {
	if err := i.next.NotifyAbsentee(ctx, notice); err != nil {
		i.metrics.Notice("failed")
		return err
	}
	i.metrics.Notice("published")
	return nil
}
