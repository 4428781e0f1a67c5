package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// ConversationDirectory creates and locates conversations and manages their
// membership. It is the only writer of conversation and participant rows
// except for the last_message_at bump (message log) and the read watermark
// (read tracker).
type ConversationDirectory struct {
	conversations repositories.ConversationRepository
	events        EventPublisher
	logger        *zap.Logger
}

// NewConversationDirectory constructs a ConversationDirectory.
func NewConversationDirectory(conversations repositories.ConversationRepository, events EventPublisher, logger *zap.Logger) *ConversationDirectory {
	return &ConversationDirectory{conversations: conversations, events: events, logger: logger}
}

// StartDirect returns the direct conversation between the caller and otherID,
// creating it when none exists. The boolean is true when a new conversation
// was created. Concurrent calls for the same pair converge on one row.
func (d *ConversationDirectory) StartDirect(ctx context.Context, callerID, otherID int) (models.Conversation, bool, error) {
	if otherID <= 0 {
		return models.Conversation{}, false, apperrors.Invalid("user_id is required")
	}
	if callerID == otherID {
		return models.Conversation{}, false, apperrors.Invalid("cannot start a conversation with yourself")
	}

	conv, created, err := d.conversations.CreateDirect(ctx, callerID, otherID)
	if err != nil {
		return models.Conversation{}, false, apperrors.Internal(err)
	}

	if created {
		publishEvent(ctx, d.logger, d.events, EventConversationCreated,
			models.Subject{Kind: models.SubjectConversation, ID: conv.ID}, callerID, nil)
	} else if conv.CreatedBy != callerID {
		// The pre-existing row may be the other side of a race that this
		// caller lost; either way the pair converged on one conversation.
		observability.IncDirectConversationReuse()
	}
	return conv, created, nil
}

// CreateGroup creates a group conversation with the caller as its admin.
func (d *ConversationDirectory) CreateGroup(ctx context.Context, callerID int, name, description string) (models.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Conversation{}, apperrors.Invalid("group name is required")
	}

	conv, err := d.conversations.CreateGroup(ctx, callerID, name, strings.TrimSpace(description))
	if err != nil {
		return models.Conversation{}, apperrors.Internal(err)
	}

	publishEvent(ctx, d.logger, d.events, EventConversationCreated,
		models.Subject{Kind: models.SubjectConversation, ID: conv.ID}, callerID, nil)
	return conv, nil
}

// AddParticipant invites userID into a group conversation. Only admins and the
// creator may add; direct conversations have fixed membership.
func (d *ConversationDirectory) AddParticipant(ctx context.Context, callerID, convID, userID int, role string) (models.Participant, error) {
	if role == "" {
		role = models.RoleMember
	}
	if !models.ValidRole(role) {
		return models.Participant{}, apperrors.Invalid("unknown role")
	}

	conv, caller, err := d.Membership(ctx, convID, callerID)
	if err != nil {
		return models.Participant{}, err
	}
	if conv.IsDirect() {
		return models.Participant{}, apperrors.Invalid("direct conversations have a fixed membership")
	}
	if caller.Role != models.RoleAdmin && conv.CreatedBy != callerID {
		return models.Participant{}, apperrors.PermissionDenied("only admins can add participants")
	}

	part, err := d.conversations.AddParticipant(ctx, convID, userID, role)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateParticipant) {
			return models.Participant{}, apperrors.Conflict("user is already a participant")
		}
		return models.Participant{}, apperrors.Internal(err)
	}

	publishEvent(ctx, d.logger, d.events, EventParticipantAdded,
		models.Subject{Kind: models.SubjectParticipant, ID: part.ID}, callerID,
		map[string]int{"conversation_id": convID, "user_id": userID})
	return part, nil
}

// RemoveParticipant removes targetID from a group conversation. The creator
// can never be removed.
func (d *ConversationDirectory) RemoveParticipant(ctx context.Context, callerID, convID, targetID int) error {
	conv, caller, err := d.Membership(ctx, convID, callerID)
	if err != nil {
		return err
	}
	if conv.IsDirect() {
		return apperrors.Invalid("direct conversations have a fixed membership")
	}
	if caller.Role != models.RoleAdmin && conv.CreatedBy != callerID {
		return apperrors.PermissionDenied("only admins can remove participants")
	}
	if targetID == conv.CreatedBy {
		return apperrors.PermissionDenied("the conversation creator cannot be removed")
	}

	target, err := d.conversations.GetParticipant(ctx, convID, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return apperrors.NotFound("participant not found")
		}
		return apperrors.Internal(err)
	}

	if err := d.conversations.RemoveParticipant(ctx, convID, targetID); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return apperrors.NotFound("participant not found")
		}
		return apperrors.Internal(err)
	}

	publishEvent(ctx, d.logger, d.events, EventParticipantRemoved,
		models.Subject{Kind: models.SubjectParticipant, ID: target.ID}, callerID,
		map[string]int{"conversation_id": convID, "user_id": targetID})
	return nil
}

// Leave removes the caller from a group conversation. The creator cannot
// leave; they must delete the conversation instead.
func (d *ConversationDirectory) Leave(ctx context.Context, callerID, convID int) error {
	conv, caller, err := d.Membership(ctx, convID, callerID)
	if err != nil {
		return err
	}
	if conv.IsDirect() {
		return apperrors.Invalid("cannot leave a direct conversation")
	}
	if conv.CreatedBy == callerID {
		return apperrors.PermissionDenied("the conversation creator cannot leave")
	}

	if err := d.conversations.RemoveParticipant(ctx, convID, callerID); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return apperrors.NotFound("participant not found")
		}
		return apperrors.Internal(err)
	}

	publishEvent(ctx, d.logger, d.events, EventParticipantRemoved,
		models.Subject{Kind: models.SubjectParticipant, ID: caller.ID}, callerID,
		map[string]int{"conversation_id": convID, "user_id": callerID})
	return nil
}

// Delete removes a conversation and, through the cascade, everything it owns.
// Only the creator may delete.
func (d *ConversationDirectory) Delete(ctx context.Context, callerID, convID int) error {
	conv, _, err := d.Membership(ctx, convID, callerID)
	if err != nil {
		return err
	}
	if conv.CreatedBy != callerID {
		return apperrors.PermissionDenied("only the creator can delete a conversation")
	}

	if err := d.conversations.DeleteConversation(ctx, convID); err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return apperrors.NotFound("conversation not found")
		}
		return apperrors.Internal(err)
	}
	return nil
}

// SetMuted toggles the caller's own mute flag.
func (d *ConversationDirectory) SetMuted(ctx context.Context, callerID, convID int, muted bool) error {
	if _, _, err := d.Membership(ctx, convID, callerID); err != nil {
		return err
	}

	if err := d.conversations.SetMuted(ctx, convID, callerID, muted); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return apperrors.NotFound("conversation not found")
		}
		return apperrors.Internal(err)
	}
	return nil
}

// ListForUser returns the caller's active conversations, most recent activity
// first.
func (d *ConversationDirectory) ListForUser(ctx context.Context, userID, limit int) ([]models.Conversation, error) {
	convs, err := d.conversations.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return convs, nil
}

// Conversation fetches an active conversation, absent ones report NotFound.
func (d *ConversationDirectory) Conversation(ctx context.Context, convID int) (models.Conversation, error) {
	conv, err := d.conversations.GetConversation(ctx, convID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return models.Conversation{}, apperrors.NotFound("conversation not found")
		}
		return models.Conversation{}, apperrors.Internal(err)
	}
	if !conv.IsActive {
		return models.Conversation{}, apperrors.NotFound("conversation not found")
	}
	return conv, nil
}

// IsMember reports whether userID has a participant row in the conversation.
func (d *ConversationDirectory) IsMember(ctx context.Context, convID, userID int) (bool, error) {
	_, err := d.conversations.GetParticipant(ctx, convID, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repositories.ErrParticipantNotFound) {
		return false, nil
	}
	return false, apperrors.Internal(err)
}

// Membership resolves the conversation and the user's participant row. An
// absent conversation and a non-membership both report NotFound, so callers
// cannot probe membership of conversations they do not belong to.
func (d *ConversationDirectory) Membership(ctx context.Context, convID, userID int) (models.Conversation, models.Participant, error) {
	conv, err := d.Conversation(ctx, convID)
	if err != nil {
		return models.Conversation{}, models.Participant{}, err
	}

	part, err := d.conversations.GetParticipant(ctx, convID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return models.Conversation{}, models.Participant{}, apperrors.NotFound("conversation not found")
		}
		return models.Conversation{}, models.Participant{}, apperrors.Internal(err)
	}
	return conv, part, nil
}

// Memberships returns the user's participant rows for the given
// conversations, keyed by conversation id.
func (d *ConversationDirectory) Memberships(ctx context.Context, userID int, convIDs []int) (map[int]models.Participant, error) {
	parts, err := d.conversations.ListMembershipsForUser(ctx, userID, convIDs)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	byConv := make(map[int]models.Participant, len(parts))
	for _, p := range parts {
		byConv[p.ConversationID] = p
	}
	return byConv, nil
}

// ParticipantCounts returns member counts for the given conversations.
func (d *ConversationDirectory) ParticipantCounts(ctx context.Context, convIDs []int) (map[int]int, error) {
	counts, err := d.conversations.ParticipantCounts(ctx, convIDs)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return counts, nil
}
