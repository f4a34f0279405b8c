package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	mailtpl "github.com/oksasatya/barterx-accounts/pkg/mailer/templates"
)

// Disposition tells the consumer loop what to do with a delivery.
type Disposition int

const (
	Ack     Disposition = iota
	Reject              // malformed or permanently undeliverable; drop without requeue
	Requeue             // transient send failure
)

// ErrPermanent marks send failures that will not succeed on retry.
var ErrPermanent = errors.New("permanent send failure")

type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Worker turns queued EmailJobs into sends.
type Worker struct {
	Sender      Sender
	Logger      *logrus.Logger
	SendTimeout time.Duration
}

var errBadJob = errors.New("bad email job")

// Handle decodes, renders and sends one job.
func (w *Worker) Handle(ctx context.Context, body []byte) Disposition {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.warn("bad message", err, "")
		return Reject
	}
	subject, text, html, err := prepare(job)
	if err != nil {
		w.warn("render failed", err, job.To)
		return Reject
	}

	timeout := w.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := w.Sender.Send(c, job.To, subject, text, html); err != nil {
		w.warn("send failed", err, job.To)
		if errors.Is(err, ErrPermanent) {
			return Reject
		}
		return Requeue
	}
	return Ack
}

// HandleDelivery runs Handle for a broker delivery. A job that was already
// requeued once is dropped if it fails again.
func (w *Worker) HandleDelivery(ctx context.Context, d amqp.Delivery) Disposition {
	disp := w.Handle(ctx, d.Body)
	if disp == Requeue && d.Redelivered {
		w.warn("dropping job after failed redelivery", errors.New("retry limit reached"), "")
		return Reject
	}
	return disp
}

func prepare(job EmailJob) (subject, text, html string, err error) {
	if strings.TrimSpace(job.To) == "" {
		return "", "", "", fmt.Errorf("%w: missing recipient", errBadJob)
	}
	if job.Template == "" {
		if job.Subject == "" || (job.Text == "" && job.HTML == "") {
			return "", "", "", fmt.Errorf("%w: subject with text or html is required", errBadJob)
		}
		return job.Subject, job.Text, job.HTML, nil
	}
	if job.Data == nil {
		job.Data = map[string]any{}
	}
	if v, ok := job.Data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["Email"] = job.To
	}
	subject, html, err = mailtpl.Render(job.Template, job.Data)
	if err != nil {
		return "", "", "", err
	}
	if job.Subject != "" {
		subject = job.Subject
	}
	return subject, job.Text, html, nil
}

func (w *Worker) warn(msg string, err error, to string) {
	if w.Logger == nil {
		return
	}
	e := w.Logger.WithError(err)
	if to != "" {
		e = e.WithField("to", to)
	}
	e.Warn(msg)
}
