// Package approval implements the four-stage sign-off state machine.
//
// Each stage moves from Pending to either Approved or Rejected exactly once.
// A single rejection freezes the whole certification. Stage order is
// advisory: any stage's approver may act on their own stage at any time.
package approval

import (
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/certify/internal/certification/errors"
	"github.com/gartstein/certify/internal/certification/models"
)

// Decision is one approver's action on their stage.
type Decision struct {
	Stage   models.Stage
	Action  models.StageStatus
	Comment string
	At      time.Time
}

// StageForRole maps an approver role to the stage it signs off.
func StageForRole(role models.Role) (models.Stage, error) {
	for _, s := range models.Stages {
		if s.Role() == role {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: role %q is not permitted to approve", e.ErrForbidden, role)
}

// Validate checks the parts of d that do not depend on stored state.
func Validate(d Decision) error {
	if !d.Stage.Valid() {
		return fmt.Errorf("%w: unknown stage %d", e.ErrInvalidInput, d.Stage)
	}
	switch d.Action {
	case models.StageApproved:
	case models.StageRejected:
		if strings.TrimSpace(d.Comment) == "" {
			return &e.ValidationError{Fields: []string{"comment"}}
		}
	default:
		return fmt.Errorf("%w: action must be %q or %q", e.ErrInvalidInput, models.StageApproved, models.StageRejected)
	}
	return nil
}

// Check reports whether d may be applied on top of stages.
func Check(stages models.StageDecisions, d Decision) error {
	if err := Validate(d); err != nil {
		return err
	}
	for _, s := range models.Stages {
		if stages[s].Status == models.StageRejected {
			return fmt.Errorf("%w: rejected at %s stage", e.ErrAlreadyRejected, s)
		}
	}
	if current := stages[d.Stage].Status; current != models.StagePending {
		return fmt.Errorf("%w: %s stage is %s", e.ErrAlreadyDecided, d.Stage, current)
	}
	return nil
}

// Apply returns stages with d recorded on its stage. Callers run Check first.
func Apply(stages models.StageDecisions, d Decision) models.StageDecisions {
	at := d.At
	stages[d.Stage] = models.StageDecision{
		Status:  d.Action,
		Comment: strings.TrimSpace(d.Comment),
		At:      &at,
	}
	return stages
}

// DeriveStatus computes the aggregate status from the stage decisions.
func DeriveStatus(stages models.StageDecisions) models.Status {
	approved := 0
	for _, s := range models.Stages {
		switch stages[s].Status {
		case models.StageRejected:
			return models.StatusRejected
		case models.StageApproved:
			approved++
		}
	}
	switch approved {
	case models.StageCount:
		return models.StatusCompleted
	case 0:
		return models.StatusNotStartedYet
	default:
		return models.StatusInProgress
	}
}
