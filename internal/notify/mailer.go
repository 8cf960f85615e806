package notify

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

const (
	KindEntityNotice   = "pqr.created.entity"
	KindCreatorReceipt = "pqr.created.creator"
	KindAssigneeNotice = "pqr.assigned"
)

type Message struct {
	Kind    string
	PQRID   string
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	Logger zerolog.Logger
}

func (m LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Logger.Info().
		Str("kind", msg.Kind).
		Str("pqr_id", msg.PQRID).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.Body)).
		Msg("mail")
	return nil
}

func isHTML(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "<")
}
