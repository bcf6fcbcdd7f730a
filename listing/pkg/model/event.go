package model

import "fmt"

// ModerationAction defines what the approval workflow decided.
type ModerationAction string

// Moderation actions.
const (
	ModerationApprove = ModerationAction("approve")
	ModerationReject  = ModerationAction("reject")
	ModerationDelete  = ModerationAction("delete")
)

// ModerationEvent is published by the approval workflow for a review.
type ModerationEvent struct {
	ReviewID    ReviewID         `json:"reviewId"`
	Action      ModerationAction `json:"action"`
	ModeratorID UserID           `json:"moderatorId"`
}

func (ev *ModerationEvent) String() string {
	return fmt.Sprintf("ModerationEvent{reviewId=%s, action=%s, moderator=%s}", ev.ReviewID, ev.Action, ev.ModeratorID)
}
