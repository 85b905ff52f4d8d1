package models

import "time"

// Role is the role carried by an authenticated user.
type Role string

const (
	RoleRequestor     Role = "Requestor"
	RoleTechnicalHead Role = "TechnicalHead"
	RolePlantHead     Role = "PlantHead"
	RoleDirector      Role = "Director"
	RoleCOO           Role = "COO"
	RoleAdmin         Role = "Admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleRequestor, RoleTechnicalHead, RolePlantHead, RoleDirector, RoleCOO, RoleAdmin:
		return true
	}
	return false
}

// Stage is one of the four approval checkpoints, in sign-off order.
type Stage int

const (
	StageTechnicalHead Stage = iota
	StagePlantHead
	StageDirector
	StageCOO

	// StageCount is the number of approval stages.
	StageCount = 4
)

// Stages lists every stage in sign-off order.
var Stages = [StageCount]Stage{StageTechnicalHead, StagePlantHead, StageDirector, StageCOO}

var stageRoles = [StageCount]Role{RoleTechnicalHead, RolePlantHead, RoleDirector, RoleCOO}

var stageTitles = [StageCount]string{"Technical Head", "Plant Head", "Director", "COO"}

// Valid reports whether s is one of the four stages.
func (s Stage) Valid() bool {
	return s >= StageTechnicalHead && s <= StageCOO
}

// Role returns the role that signs off s.
func (s Stage) Role() Role {
	return stageRoles[s]
}

// String returns the human-readable stage title.
func (s Stage) String() string {
	if !s.Valid() {
		return "Unknown"
	}
	return stageTitles[s]
}

// Next returns the stage after s. ok is false for the last stage.
func (s Stage) Next() (next Stage, ok bool) {
	if s >= StageCOO {
		return s, false
	}
	return s + 1, true
}

// StageStatus is the decision recorded on a single stage.
type StageStatus string

const (
	StagePending  StageStatus = "Pending"
	StageApproved StageStatus = "Approved"
	StageRejected StageStatus = "Rejected"
)

// StageDecision is the state of one approval stage.
type StageDecision struct {
	Status  StageStatus
	Comment string
	At      *time.Time
}

// StageDecisions holds one decision per stage, indexed by Stage.
type StageDecisions [StageCount]StageDecision

// PendingStages returns a fresh set of decisions with every stage pending.
func PendingStages() StageDecisions {
	var d StageDecisions
	for i := range d {
		d[i] = StageDecision{Status: StagePending}
	}
	return d
}

// Status is the aggregate workflow status of a certification.
type Status string

const (
	StatusNotStartedYet Status = "Not Started Yet"
	StatusInProgress    Status = "In Progress"
	StatusCompleted     Status = "Completed"
	StatusRejected      Status = "Rejected"
)
