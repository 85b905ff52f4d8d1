// Package controller implements the certification workflow service: it
// validates and authorizes requests, drives the approval state machine and
// the due-date tracker through the store, and raises notifications once a
// change has committed.
package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/gartstein/certify/internal/certification/approval"
	"github.com/gartstein/certify/internal/certification/db"
	"github.com/gartstein/certify/internal/certification/duedate"
	"github.com/gartstein/certify/internal/certification/events"
	"github.com/gartstein/certify/internal/certification/metrics"
	"github.com/gartstein/certify/internal/certification/models"
	"go.uber.org/zap"
)

// Notifier delivers workflow notifications. Implementations must not block
// and never report failure to the caller.
type Notifier interface {
	Notify(n *events.Notification)
}

// Repository defines the storage interface for the certification aggregate.
type Repository interface {
	CreateCertification(ctx context.Context, draft *models.Draft, requestedBy string) (*models.Certification, error)
	ReplaceCertification(ctx context.Context, id uint, draft *models.Draft, revise db.ReviseFunc) error
	GetCertification(ctx context.Context, id uint) (*models.Certification, error)
	ListCertifications(ctx context.Context) ([]*models.Certification, error)
	DeleteCertification(ctx context.Context, id uint) error
	ApplyApprovalStage(ctx context.Context, id uint, decision approval.Decision) (*models.Certification, error)
	Close() error
}

// CertificationService orchestrates the workflow operations.
type CertificationService struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	tracker  *duedate.Tracker
}

type Option func(*CertificationService)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *CertificationService) { s.metrics = m }
}

// WithClock overrides the clock used for decision and history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *CertificationService) { s.now = now }
}

func NewCertificationService(repo Repository, notifier Notifier, logger *zap.Logger, opts ...Option) *CertificationService {
	s := &CertificationService{
		repo:     repo,
		notifier: notifier,
		logger:   logger.Named("certification_service"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tracker = duedate.NewTracker(s.now)
	return s
}

// Submit validates draft, stores it with every stage pending and notifies
// the Technical Head.
func (s *CertificationService) Submit(ctx context.Context, draft *models.Draft, actor models.Actor) (*models.Certification, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	s.logUnknownEntries(draft)

	created, err := s.repo.CreateCertification(ctx, draft, actor.Identity)
	if err != nil {
		return nil, fmt.Errorf("failed to create certification: %w", err)
	}
	s.metrics.Submitted()
	s.logger.Info("Certification submitted",
		zap.Uint("certification_id", created.ID),
		zap.String("requested_by", actor.Identity),
	)

	n := events.New(events.CertificationSubmitted, created, actor, s.now())
	n.RecipientRole = models.RoleTechnicalHead
	n.Subject = fmt.Sprintf("New Certification Request #%d", created.SerialNumber)
	s.notify(n)

	return created, nil
}

// Edit replaces the descriptive fields of certification id. Stage
// decisions are kept as they are and a due-date move is appended to the
// history. No one is notified.
func (s *CertificationService) Edit(ctx context.Context, id uint, draft *models.Draft, actor models.Actor) (*models.Certification, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	s.logUnknownEntries(draft)

	revise := func(previous time.Time) *models.DueDateChange {
		return s.tracker.RecordIfChanged(previous, draft.DueDate)
	}
	if err := s.repo.ReplaceCertification(ctx, id, draft, revise); err != nil {
		return nil, fmt.Errorf("failed to update certification: %w", err)
	}
	s.metrics.Edited()
	s.logger.Info("Certification edited",
		zap.Uint("certification_id", id),
		zap.String("actor", actor.Identity),
	)

	return s.Get(ctx, id)
}

// Decide records actor's decision on the stage their role owns and notifies
// whoever acts next.
func (s *CertificationService) Decide(
	ctx context.Context,
	id uint,
	actor models.Actor,
	action models.StageStatus,
	comment string,
) (*models.Certification, error) {
	stage, err := approval.StageForRole(actor.Role)
	if err != nil {
		return nil, err
	}

	decision := approval.Decision{
		Stage:   stage,
		Action:  action,
		Comment: comment,
		At:      s.now().UTC(),
	}
	if err := approval.Validate(decision); err != nil {
		return nil, err
	}

	updated, err := s.repo.ApplyApprovalStage(ctx, id, decision)
	if err != nil {
		return nil, fmt.Errorf("failed to record %s decision: %w", stage, err)
	}
	s.metrics.Decided(stage.String(), string(action))
	s.logger.Info("Stage decided",
		zap.Uint("certification_id", id),
		zap.String("stage", stage.String()),
		zap.String("action", string(action)),
		zap.String("actor", actor.Identity),
		zap.String("status", string(updated.Status)),
	)

	s.notify(decisionNotification(updated, actor, decision))
	return updated, nil
}

// decisionNotification addresses the follow-up of decision: the requestor
// on rejection or completion, otherwise the next stage's role. A COO
// approval that leaves earlier stages pending goes back to the requestor.
func decisionNotification(c *models.Certification, actor models.Actor, d approval.Decision) *events.Notification {
	var n *events.Notification
	next, hasNext := d.Stage.Next()

	switch {
	case d.Action == models.StageRejected:
		n = events.New(events.CertificationRejected, c, actor, d.At)
		n.RecipientIdentity = c.RequestedBy
		n.Subject = fmt.Sprintf("Certification Request #%d Rejected by %s", c.SerialNumber, displayName(actor))
	case c.Status == models.StatusCompleted:
		n = events.New(events.CertificationCompleted, c, actor, d.At)
		n.RecipientIdentity = c.RequestedBy
		n.Subject = fmt.Sprintf("Certification Request #%d Fully Approved", c.SerialNumber)
	case hasNext:
		n = events.New(events.StageApproved, c, actor, d.At)
		n.RecipientRole = next.Role()
		n.Subject = fmt.Sprintf("Certification Request #%d Approved by %s", c.SerialNumber, d.Stage)
	default:
		n = events.New(events.StageApproved, c, actor, d.At)
		n.RecipientIdentity = c.RequestedBy
		n.Subject = fmt.Sprintf("Certification Request #%d Approved by %s", c.SerialNumber, d.Stage)
	}
	n.Stage = d.Stage.String()
	n.Comment = c.Stage(d.Stage).Comment
	return n
}

func (s *CertificationService) Get(ctx context.Context, id uint) (*models.Certification, error) {
	c, err := s.repo.GetCertification(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get certification: %w", err)
	}
	return c, nil
}

func (s *CertificationService) List(ctx context.Context) ([]*models.Certification, error) {
	list, err := s.repo.ListCertifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list certifications: %w", err)
	}
	return list, nil
}

func (s *CertificationService) Delete(ctx context.Context, id uint, actor models.Actor) error {
	if err := s.repo.DeleteCertification(ctx, id); err != nil {
		return fmt.Errorf("failed to delete certification: %w", err)
	}
	s.logger.Info("Certification deleted",
		zap.Uint("certification_id", id),
		zap.String("actor", actor.Identity),
	)
	return nil
}

// notify hands n to the notifier. A panicking notifier is logged and
// swallowed; the change it reports has already committed.
func (s *CertificationService) notify(n *events.Notification) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Notifier panicked",
				zap.Any("panic", r),
				zap.Uint("certification_id", n.CertificationID),
				zap.String("event_type", string(n.Type)),
			)
		}
	}()
	s.notifier.Notify(n)
}

func (s *CertificationService) logUnknownEntries(draft *models.Draft) {
	for field, unknown := range map[string][]string{
		"product_types":       models.Unknown(draft.ProductTypes, models.KnownProductTypes),
		"material_categories": models.Unknown(draft.MaterialCategories, models.KnownMaterialCategories),
		"production_lines":    models.Unknown(draft.ProductionLines, models.KnownProductionLines),
		"testing_laboratory":  models.Unknown([]string{draft.TestingLaboratory}, models.KnownTestingLaboratories),
	} {
		if len(unknown) > 0 {
			s.logger.Debug("Free-text catalogue entries",
				zap.String("field", field),
				zap.Strings("values", unknown),
			)
		}
	}
}

func displayName(a models.Actor) string {
	if a.Name != "" {
		return a.Name
	}
	return a.Identity
}
