package mailer

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Publisher enqueues a JSON-encodable message; helpers.RabbitPublisher implements it.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// QueueNotifier hands messages to the email worker through the broker.
// Delivery counts as successful once the broker accepts the publish.
type QueueNotifier struct {
	Pub Publisher
}

func NewQueueNotifier(pub Publisher) *QueueNotifier {
	return &QueueNotifier{Pub: pub}
}

func (n *QueueNotifier) Deliver(ctx context.Context, to, subject, body string) error {
	if n.Pub == nil {
		return errors.New("email queue not configured")
	}
	return n.Pub.PublishJSON(ctx, EmailJob{To: to, Subject: subject, HTML: body})
}

// LogNotifier only records that a message would have been sent. The body is
// never logged since it carries the code.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n *LogNotifier) Deliver(_ context.Context, to, subject, _ string) error {
	if n.Logger != nil {
		n.Logger.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("mail sending disabled; message dropped")
	}
	return nil
}
