package notification

import (
	"context"

	"github.com/riverqueue/river"
)

type SendEmailArgs struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (SendEmailArgs) Kind() string { return "send_email" }

// SendEmailWorker delivers queued emails through the configured Mailer.
// River retries on error with its default backoff.
type SendEmailWorker struct {
	river.WorkerDefaults[SendEmailArgs]
	mailer Mailer
}

func NewSendEmailWorker(mailer Mailer) *SendEmailWorker {
	return &SendEmailWorker{mailer: mailer}
}

func (w *SendEmailWorker) Work(ctx context.Context, job *river.Job[SendEmailArgs]) error {
	return w.mailer.Send(ctx, job.Args.To, job.Args.Subject, job.Args.Body)
}
