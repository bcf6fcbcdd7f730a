package model

import "context"

// Action defines an operation a caller asks to perform on a review.
type Action string

// Review actions.
const (
	ActionCreate    = Action("create")
	ActionUpdate    = Action("update")
	ActionDelete    = Action("delete")
	ActionApprove   = Action("approve")
	ActionRecompute = Action("recompute")
)

// Role defines a platform role.
type Role string

// Platform roles.
const (
	RoleTourist       = Role("tourist")
	RoleBusinessOwner = Role("business_owner")
	RoleStaff         = Role("staff")
	RoleAdmin         = Role("admin")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID UserID `json:"userId"`
	Role   Role   `json:"role"`
}

// CapabilityCheck decides whether the caller may perform action on
// review. It is supplied per call and evaluated inside the store
// transaction, before any write. For updates review is the stored
// state; for creates it is the candidate.
type CapabilityCheck func(ctx context.Context, action Action, review *Review) error
