package worker

import (
	"context"
	"errors"
	"testing"

	"scuola/internal/amqp"
	"scuola/internal/core"
	"scuola/internal/notify"
)

type recordingMailer struct {
	sent []notify.Mail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, mail notify.Mail) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

func notice(email string) *amqp.AbsenteeMessage {
	return amqp.NewAbsenteeMessage(core.AbsenteeNotice{
		AdmissionNo:   "A1",
		StudentName:   "Asha",
		Class:         "5",
		Section:       "B",
		Date:          "2024-06-01",
		GuardianEmail: email,
	})
}

func TestHandleNoticeMailsOnce(t *testing.T) {
	mailer := &recordingMailer{}
	w := NewNoticeWorker(mailer, nil, nil)
	msg := notice("parent@example.com")

	for i := 0; i < 2; i++ {
		if err := w.HandleNotice(context.Background(), msg); err != nil {
			t.Fatalf("HandleNotice: %v", err)
		}
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1 for a redelivered message", len(mailer.sent))
	}
	if mailer.sent[0].ToEmail != "parent@example.com" {
		t.Fatalf("mail to %q", mailer.sent[0].ToEmail)
	}
}

func TestHandleNoticeWithoutRecipientIsDropped(t *testing.T) {
	mailer := &recordingMailer{}
	w := NewNoticeWorker(mailer, nil, nil)
	if err := w.HandleNotice(context.Background(), notice("")); err != nil {
		t.Fatalf("a notice without e-mail must be acknowledged, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("nothing should be mailed: %v", mailer.sent)
	}
}

func TestHandleNoticeMailFailureIsRetried(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("sendgrid down")}
	w := NewNoticeWorker(mailer, nil, nil)
	msg := notice("parent@example.com")

	if err := w.HandleNotice(context.Background(), msg); err == nil {
		t.Fatal("expected the mail failure to surface for requeue")
	}

	mailer.err = nil
	if err := w.HandleNotice(context.Background(), msg); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails after retry, want 1", len(mailer.sent))
	}
	if w.Sent().CleanExpired() != 0 {
		t.Fatal("fresh entries must not be cleaned")
	}
}
