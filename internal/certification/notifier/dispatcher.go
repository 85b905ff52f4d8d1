// Package notifier turns workflow notifications consumed from Kafka into
// mail for the users they are addressed to.
package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/gartstein/certify/internal/certification/directory"
	"github.com/gartstein/certify/internal/certification/events"
	"github.com/gartstein/certify/internal/certification/models"
	"go.uber.org/zap"
)

// Message is a single plain-text mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Directory resolves recipients.
type Directory interface {
	Lookup(username string) (directory.User, bool)
	ByRole(role models.Role) []directory.User
}

type Dispatcher struct {
	dir    Directory
	mailer Mailer
	logger *zap.Logger
}

func NewDispatcher(dir Directory, mailer Mailer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		dir:    dir,
		mailer: mailer,
		logger: logger.Named("notifier"),
	}
}

// Handle mails n to each resolved recipient. A notification nobody can
// receive is logged and dropped; a delivery failure is returned so the
// consumer retries the whole notification. Recipients already mailed may
// receive it again.
func (d *Dispatcher) Handle(ctx context.Context, n *events.Notification) error {
	recipients := d.recipients(n)
	if len(recipients) == 0 {
		d.logger.Warn("No recipient for notification",
			zap.String("notification_id", n.ID),
			zap.Uint("certification_id", n.CertificationID),
			zap.String("recipient_role", string(n.RecipientRole)),
			zap.String("recipient_identity", n.RecipientIdentity),
		)
		return nil
	}

	for _, u := range recipients {
		msg := Message{To: u.Email, Subject: n.Subject, Body: body(u, n)}
		if err := d.mailer.Send(ctx, msg); err != nil {
			return fmt.Errorf("failed to mail %s: %w", u.Username, err)
		}
	}
	d.logger.Info("Notification dispatched",
		zap.String("notification_id", n.ID),
		zap.Uint("certification_id", n.CertificationID),
		zap.Int("recipients", len(recipients)),
	)
	return nil
}

func (d *Dispatcher) recipients(n *events.Notification) []directory.User {
	var users []directory.User
	if n.RecipientIdentity != "" {
		if u, ok := d.dir.Lookup(n.RecipientIdentity); ok {
			users = append(users, u)
		}
	}
	if n.RecipientRole != "" {
		users = append(users, d.dir.ByRole(n.RecipientRole)...)
	}

	out := users[:0]
	for _, u := range users {
		if u.Email != "" {
			out = append(out, u)
		}
	}
	return out
}

func body(u directory.User, n *events.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greeting(u))

	switch n.Type {
	case events.CertificationSubmitted:
		fmt.Fprintf(&b, "A new certification request #%d (%s) has been submitted by %s.\n",
			n.CertificationID, n.ProjectName, actorName(n))
	case events.StageApproved:
		fmt.Fprintf(&b, "Certification request #%d (%s) has been approved by %s at the %s stage.\n",
			n.CertificationID, n.ProjectName, actorName(n), n.Stage)
	case events.CertificationRejected:
		fmt.Fprintf(&b, "Your certification request #%d (%s) has been rejected by %s at the %s stage.\n",
			n.CertificationID, n.ProjectName, actorName(n), n.Stage)
	case events.CertificationCompleted:
		fmt.Fprintf(&b, "Your certification request #%d (%s) has been approved at every stage.\n",
			n.CertificationID, n.ProjectName)
	default:
		fmt.Fprintf(&b, "%s\n", n.Subject)
	}

	if n.DueDate != "" {
		fmt.Fprintf(&b, "Due date: %s\n", n.DueDate)
	}
	if n.Comment != "" {
		fmt.Fprintf(&b, "Comments: %s\n", n.Comment)
	}

	switch n.Type {
	case events.CertificationRejected:
		b.WriteString("\nPlease address the comments and resubmit if appropriate.\n")
	case events.CertificationCompleted:
		b.WriteString("\nYou may now proceed to the next steps.\n")
	default:
		b.WriteString("\nPlease review it at your earliest convenience.\n")
	}
	return b.String()
}

func greeting(u directory.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func actorName(n *events.Notification) string {
	if n.ActorName != "" {
		return n.ActorName
	}
	return n.Actor
}
