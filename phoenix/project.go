package phoenix

import "time"

type AssignmentStatus string

const (
	AssignmentNotParticipating AssignmentStatus = "not_participating"
	AssignmentWaiting          AssignmentStatus = "waiting"
	AssignmentAccepted         AssignmentStatus = "accepted"
	AssignmentRejected         AssignmentStatus = "rejected"
	AssignmentCompleted        AssignmentStatus = "completed"
)

type BonusGrant string

const (
	BonusGrantNone     BonusGrant = "none"
	BonusGrantApplied  BonusGrant = "applied"
	BonusGrantReceived BonusGrant = "received"
)

type ProjectAssignment struct {
	UserID     string
	ProjectID  string
	Status     AssignmentStatus
	BonusGrant BonusGrant
	UpdatedAt  time.Time
}

// ProjectRoleMapping binds a project to its Discord tags. Either id may be
// empty, meaning no tag governs that category for the project.
type ProjectRoleMapping struct {
	ProjectID     string
	AcceptedTagID string
	BonusTagID    string
}

// ProjectGrant is one accepted assignment joined to its project mapping,
// the row shape the desired-tag computation works from.
type ProjectGrant struct {
	AcceptedTagID string
	BonusTagID    string
	BonusGrant    BonusGrant
}
