package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/userdir"
)

const (
	previewLength   = 80
	placeholderName = "Unknown user"
)

// ConversationView is the per-viewer projection of a conversation.
type ConversationView struct {
	ID               int             `json:"id"`
	Type             string          `json:"type"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Avatar           string          `json:"avatar,omitempty"`
	ParticipantCount int             `json:"participant_count"`
	UnreadCount      int             `json:"unread_count"`
	IsMuted          bool            `json:"is_muted"`
	LastMessage      *MessagePreview `json:"last_message,omitempty"`
	LastMessageAt    *time.Time      `json:"last_message_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// MessagePreview is the truncated last-message summary shown in list views.
type MessagePreview struct {
	ID         int       `json:"id"`
	SenderID   int       `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationViewBuilder assembles per-viewer conversation projections. It is
// strictly read-only: building a view never advances a read watermark or any
// other state.
type ConversationViewBuilder struct {
	directory *ConversationDirectory
	messages  *MessageLog
	reads     *ReadTracker
	users     userdir.Directory
	logger    *zap.Logger
}

// NewConversationViewBuilder constructs a ConversationViewBuilder.
func NewConversationViewBuilder(directory *ConversationDirectory, messages *MessageLog, reads *ReadTracker, users userdir.Directory, logger *zap.Logger) *ConversationViewBuilder {
	return &ConversationViewBuilder{
		directory: directory,
		messages:  messages,
		reads:     reads,
		users:     users,
		logger:    logger,
	}
}

// Build produces the viewer's projection of a single conversation.
func (b *ConversationViewBuilder) Build(ctx context.Context, conv models.Conversation, part models.Participant, viewerID int) (ConversationView, error) {
	views, err := b.assemble(ctx, viewerID, []models.Conversation{conv}, map[int]bool{conv.ID: part.IsMuted})
	if err != nil {
		return ConversationView{}, err
	}
	return views[0], nil
}

// BuildList produces the viewer's projections for a list of conversations,
// batching the directory and storage lookups.
func (b *ConversationViewBuilder) BuildList(ctx context.Context, viewerID int, convs []models.Conversation) ([]ConversationView, error) {
	convIDs := make([]int, 0, len(convs))
	for _, conv := range convs {
		convIDs = append(convIDs, conv.ID)
	}
	memberships, err := b.directory.Memberships(ctx, viewerID, convIDs)
	if err != nil {
		return nil, err
	}
	muted := make(map[int]bool, len(memberships))
	for convID, p := range memberships {
		muted[convID] = p.IsMuted
	}
	return b.assemble(ctx, viewerID, convs, muted)
}

func (b *ConversationViewBuilder) assemble(ctx context.Context, viewerID int, convs []models.Conversation, muted map[int]bool) ([]ConversationView, error) {
	convIDs := make([]int, 0, len(convs))
	for _, conv := range convs {
		convIDs = append(convIDs, conv.ID)
	}

	latest, err := b.messages.Latest(ctx, convIDs)
	if err != nil {
		return nil, err
	}
	unread, err := b.reads.UnreadCounts(ctx, viewerID, convIDs)
	if err != nil {
		return nil, err
	}
	counts, err := b.directory.ParticipantCounts(ctx, convIDs)
	if err != nil {
		return nil, err
	}

	profiles := b.resolveProfiles(ctx, viewerID, convs, latest)

	views := make([]ConversationView, 0, len(convs))
	for _, conv := range convs {
		view := ConversationView{
			ID:               conv.ID,
			Type:             conv.Type,
			ParticipantCount: counts[conv.ID],
			UnreadCount:      unread[conv.ID],
			IsMuted:          muted[conv.ID],
			LastMessageAt:    conv.LastMessageAt,
			CreatedAt:        conv.CreatedAt,
		}

		if conv.IsDirect() {
			view.Name = placeholderName
			if other, ok := conv.Counterpart(viewerID); ok {
				if profile, ok := profiles[other]; ok {
					view.Name = displayName(profile)
					view.Avatar = profile.Avatar
				}
			}
		} else {
			if conv.Name != nil {
				view.Name = *conv.Name
			}
			if conv.Description != nil {
				view.Description = *conv.Description
			}
			if conv.Avatar != nil {
				view.Avatar = *conv.Avatar
			}
		}

		if msg, ok := latest[conv.ID]; ok {
			preview := &MessagePreview{
				ID:        msg.ID,
				SenderID:  msg.SenderID,
				Type:      msg.Type,
				Content:   truncate(msg.Content, previewLength),
				CreatedAt: msg.CreatedAt,
			}
			preview.SenderName = placeholderName
			if profile, ok := profiles[msg.SenderID]; ok {
				preview.SenderName = displayName(profile)
			}
			view.LastMessage = preview
		}

		views = append(views, view)
	}
	return views, nil
}

// resolveProfiles looks up every user id a view needs in one directory call.
// A directory failure degrades to placeholders; it never fails the view.
func (b *ConversationViewBuilder) resolveProfiles(ctx context.Context, viewerID int, convs []models.Conversation, latest map[int]models.Message) map[int]userdir.User {
	profiles := map[int]userdir.User{}
	if b.users == nil {
		return profiles
	}

	seen := map[int]struct{}{}
	ids := make([]int, 0, len(convs)+len(latest))
	add := func(id int) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, conv := range convs {
		if other, ok := conv.Counterpart(viewerID); ok {
			add(other)
		}
	}
	for _, msg := range latest {
		add(msg.SenderID)
	}
	if len(ids) == 0 {
		return profiles
	}

	users, err := b.users.BulkUsers(ctx, ids)
	if err != nil {
		observability.IncUserDirFailure()
		if b.logger != nil {
			b.logger.Warn("user directory lookup failed", zap.Int("users", len(ids)), zap.Error(err))
		}
		return profiles
	}
	for _, u := range users {
		profiles[u.ID] = u
	}
	return profiles
}

func displayName(u userdir.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username != "" {
		return u.Username
	}
	return placeholderName
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
