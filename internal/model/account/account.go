package account

import (
	"context"
	"time"
)

// Role distinguishes the metered learner from the supervising guardian.
type Role string

const (
	RoleLearner  Role = "user"
	RoleGuardian Role = "parent"
)

// ParseRole normalizes the wire-level role string. Age-banded learner
// variants collapse onto RoleLearner.
func ParseRole(raw string) (Role, bool) {
	switch raw {
	case "parent":
		return RoleGuardian, true
	case "user", "user_under_13", "user_over_13":
		return RoleLearner, true
	default:
		return "", false
	}
}

// Chatter is the identity snapshot of whoever is typing: a learner or their
// guardian. Resolved by the external identity collaborator.
type Chatter struct {
	ID              string
	Username        string
	DisplayName     string
	DisplayLanguage string
	ChatLanguages   []string
	DateOfBirth     time.Time
	BillingGroupID  string
}

// Name prefers the display name, falling back to the username.
func (c Chatter) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Username
}

// Age computes whole years since DateOfBirth. An unset birth date reports 13,
// the middle of the supported age bands.
func (c Chatter) Age() int {
	if c.DateOfBirth.IsZero() {
		return 13
	}
	now := time.Now().UTC()
	age := now.Year() - c.DateOfBirth.Year()
	if now.Month() < c.DateOfBirth.Month() ||
		(now.Month() == c.DateOfBirth.Month() && now.Day() < c.DateOfBirth.Day()) {
		age--
	}
	return age
}

// Unlimited marks a package limit with no quota check.
const Unlimited = -1

// Package is the entitlement snapshot active for a chatter.
type Package struct {
	ID                   string
	AllowedRequest       int // text generations per hour, Unlimited to bypass
	ImageGenerationLimit int // image generations per billing period
}

// BillingGroup ties learners and guardians to one subscription. PeriodAnchor
// is the subscription start; its day-of-month anchors the monthly quota
// bucket.
type BillingGroup struct {
	ID           string
	PeriodAnchor time.Time
	LearnerIDs   []string
	GuardianIDs  []string
}

// Directory resolves identity, entitlement and billing snapshots by id. It is
// an external collaborator; the engine only consumes these lookups.
type Directory interface {
	Chatter(ctx context.Context, id string, role Role) (Chatter, error)
	ActivePackage(ctx context.Context, chatterID string, role Role) (Package, error)
	BillingGroup(ctx context.Context, id string) (BillingGroup, error)
}
