package domain

import (
	"fmt"
	"time"
)

// TenantKey identifies a gym's data partition. Services only ever take it from an
// authenticated Identity.
type TenantKey string

// Role is the closed set of identity roles.
type Role string

const (
	RoleMember Role = "member"
	RoleCoach  Role = "coach"
	RoleAdmin  Role = "admin"
)

// ParseRole maps a wire value to a Role.
func ParseRole(value string) (Role, error) {
	switch r := Role(value); r {
	case RoleMember, RoleCoach, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, value)
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r), nil }

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ApprovalStatus tracks whether an admin has accepted a registration.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// ParseApprovalStatus maps a wire value to an ApprovalStatus.
func ParseApprovalStatus(value string) (ApprovalStatus, error) {
	switch s := ApprovalStatus(value); s {
	case StatusPending, StatusApproved, StatusRejected:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown approval status %q", ErrValidation, value)
}

func (s ApprovalStatus) MarshalText() ([]byte, error) { return []byte(s), nil }

func (s *ApprovalStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseApprovalStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// TrainingGroup is the optional programme cohort of a member.
type TrainingGroup string

const (
	GroupMuscleGain  TrainingGroup = "muscle_gain"
	GroupFatLoss     TrainingGroup = "fat_loss"
	GroupMaintenance TrainingGroup = "maintenance"
)

// ParseTrainingGroup maps a wire value to a TrainingGroup.
func ParseTrainingGroup(value string) (TrainingGroup, error) {
	switch g := TrainingGroup(value); g {
	case GroupMuscleGain, GroupFatLoss, GroupMaintenance:
		return g, nil
	}
	return "", fmt.Errorf("%w: unknown training group %q", ErrValidation, value)
}

func (g TrainingGroup) MarshalText() ([]byte, error) { return []byte(g), nil }

func (g *TrainingGroup) UnmarshalText(text []byte) error {
	parsed, err := ParseTrainingGroup(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Identity is a registered person within exactly one tenant.
type Identity struct {
	ID            string
	PhoneNumber   string
	Name          string
	Role          Role
	Status        ApprovalStatus
	TrainingGroup *TrainingGroup
	TenantKey     TenantKey
	CreatedAt     time.Time
}

// IsAdmin reports whether the identity holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// RequireAdmin fails with ErrForbidden unless the identity is an admin.
func RequireAdmin(identity *Identity) error {
	if identity == nil {
		return ErrUnauthenticated
	}
	if !identity.IsAdmin() {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

// transition moves a pending identity to target. Repeating the same decision is a no-op.
func (i *Identity) transition(target ApprovalStatus) (bool, error) {
	if i.Status == target {
		return false, nil
	}
	if i.Status != StatusPending {
		return false, fmt.Errorf("%w: identity %s is already %s", ErrInvalidState, i.ID, i.Status)
	}
	i.Status = target
	return true, nil
}
