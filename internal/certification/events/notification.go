// Package events carries workflow notifications from the certification
// service to the notification worker over Kafka.
package events

import (
	"strconv"
	"time"

	"github.com/gartstein/certify/internal/certification/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	CertificationSubmitted EventType = "certification_submitted"
	StageApproved          EventType = "certification_stage_approved"
	CertificationRejected  EventType = "certification_rejected"
	CertificationCompleted EventType = "certification_completed"
)

// Notification is addressed either to every user holding RecipientRole or
// to the single user RecipientIdentity.
type Notification struct {
	ID                string      `json:"id"`
	Type              EventType   `json:"type"`
	CertificationID   uint        `json:"certificationId"`
	ProjectName       string      `json:"projectName"`
	DueDate           string      `json:"dueDate,omitempty"`
	Subject           string      `json:"subject"`
	RecipientRole     models.Role `json:"recipientRole,omitempty"`
	RecipientIdentity string      `json:"recipientIdentity,omitempty"`
	Actor             string      `json:"actor"`
	ActorName         string      `json:"actorName,omitempty"`
	Stage             string      `json:"stage,omitempty"`
	Comment           string      `json:"comment,omitempty"`
	OccurredAt        time.Time   `json:"occurredAt"`
}

// New returns a notification about c raised by actor.
func New(eventType EventType, c *models.Certification, actor models.Actor, at time.Time) *Notification {
	n := &Notification{
		ID:              uuid.NewString(),
		Type:            eventType,
		CertificationID: c.ID,
		ProjectName:     c.ProjectName,
		Actor:           actor.Identity,
		ActorName:       actor.Name,
		OccurredAt:      at.UTC(),
	}
	if !c.DueDate.IsZero() {
		n.DueDate = c.DueDate.Format(models.DateLayout)
	}
	return n
}

// Key is the Kafka message key. Notifications of one certification share a
// partition and stay ordered.
func (n *Notification) Key() []byte {
	return []byte(strconv.FormatUint(uint64(n.CertificationID), 10))
}

func (n *Notification) fields() []zap.Field {
	return []zap.Field{
		zap.String("notification_id", n.ID),
		zap.String("event_type", string(n.Type)),
		zap.Uint("certification_id", n.CertificationID),
		zap.String("recipient_role", string(n.RecipientRole)),
		zap.String("recipient_identity", n.RecipientIdentity),
	}
}
