package sponsors

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/sponsor-points-backend/internal/common/errors"
	"github.com/open-builders/sponsor-points-backend/internal/common/validation"
	"github.com/open-builders/sponsor-points-backend/internal/domain/sponsor"
	"github.com/open-builders/sponsor-points-backend/internal/platform/telegram"
	pgrepo "github.com/open-builders/sponsor-points-backend/internal/repository/postgres"
)

type ChatGetter interface {
	GetChat(ctx context.Context, chatID string) (*telegram.Chat, error)
}

type ChatCache interface {
	Get(ctx context.Context, chatID string) (*telegram.Chat, error)
	Set(ctx context.Context, chatID string, chat *telegram.Chat) error
	Invalidate(ctx context.Context, chatID string) error
}

type Auditor interface {
	AuditChannel(ctx context.Context, ch *sponsor.Channel) bool
}

// CreateInput is the admin request to register a sponsor channel.
type CreateInput struct {
	ChannelID    string `json:"channel_id" binding:"required"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	PointsReward int64  `json:"points_reward"`
}

// MembershipView is a membership joined with its channel for the user-facing listing.
type MembershipView struct {
	sponsor.Membership
	ChannelTitle    string `json:"channel_title"`
	ChannelUsername string `json:"channel_username,omitempty"`
	ChannelActive   bool   `json:"channel_active"`
}

// Service manages sponsor channels on behalf of admins. Chat lookups go through the cache when one is set.
type Service struct {
	repo    sponsor.Repository
	tg      ChatGetter
	cache   ChatCache
	auditor Auditor
	logger  zerolog.Logger
}

func NewService(repo sponsor.Repository, tg ChatGetter, cache ChatCache, auditor Auditor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tg: tg, cache: cache, auditor: auditor, logger: logger}
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]sponsor.Channel, error) {
	list, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, errors.NewDatabaseError("list sponsor channels", err)
	}
	if list == nil {
		list = []sponsor.Channel{}
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*sponsor.Channel, error) {
	ch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewDatabaseError("get sponsor channel", err)
	}
	if ch == nil {
		return nil, errors.NewChannelNotFoundError(id)
	}
	return ch, nil
}

// Create registers a channel. Metadata missing from the input is filled from Telegram; when the
// bot cannot read the channel it is stored without access and picked up by a later audit.
func (s *Service) Create(ctx context.Context, in CreateInput) (*sponsor.Channel, error) {
	in.ChannelID = strings.TrimSpace(in.ChannelID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.ValidateChannelRef(in.ChannelID); err != nil {
		return nil, errors.NewValidationError("channel_id", err.Error())
	}
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, errors.NewValidationError("title", err.Error())
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, errors.NewValidationError("description", err.Error())
	}
	if err := validation.ValidatePointsReward(in.PointsReward); err != nil {
		return nil, errors.NewValidationError("points_reward", err.Error())
	}

	now := time.Now()
	ch := &sponsor.Channel{
		ChannelID:       in.ChannelID,
		Title:           in.Title,
		Description:     in.Description,
		PointsReward:    in.PointsReward,
		IsActive:        true,
		LastAccessCheck: &now,
	}

	chat, err := s.resolveChat(ctx, in.ChannelID)
	if err != nil {
		// A username cannot be turned into the numeric id that bot events and the unique
		// constraint use, so it is only accepted once the bot can read the channel.
		if strings.HasPrefix(in.ChannelID, "@") {
			return nil, errors.NewChannelInvalidError(in.ChannelID, err).
				WithDetail("reason", "bot cannot read the channel; add the bot or register it by numeric id")
		}
		s.logger.Warn().Err(err).Str("channel_id", in.ChannelID).Msg("Sponsor channel is not readable by the bot")
	} else {
		ch.ChannelID = strconv.FormatInt(chat.ID, 10)
		ch.BotHasAccess = true
		ch.Username = chat.Username
		if ch.Title == "" {
			ch.Title = chat.Title
		}
	}
	if ch.Title == "" {
		ch.Title = in.ChannelID
	}

	if err := s.repo.Create(ctx, ch); err != nil {
		if stderrors.Is(err, pgrepo.ErrChannelExists) {
			return nil, errors.NewConflictError("sponsor channel", "channel is already registered")
		}
		return nil, errors.NewDatabaseError("create sponsor channel", err)
	}
	s.logger.Info().
		Int64("id", ch.ID).
		Str("channel_id", ch.ChannelID).
		Int64("points_reward", ch.PointsReward).
		Bool("bot_has_access", ch.BotHasAccess).
		Msg("Sponsor channel created")
	return ch, nil
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	err := s.repo.Deactivate(ctx, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NewChannelNotFoundError(id)
	}
	if err != nil {
		return errors.NewDatabaseError("deactivate sponsor channel", err)
	}
	return nil
}

// Audit probes one channel now and returns it with the refreshed access flag.
func (s *Service) Audit(ctx context.Context, id int64) (*sponsor.Channel, error) {
	ch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.auditor.AuditChannel(ctx, ch) && s.cache != nil {
		s.invalidateChat(ctx, ch)
	}
	return ch, nil
}

func (s *Service) UserMemberships(ctx context.Context, userID int64) ([]MembershipView, error) {
	memberships, err := s.repo.ListUserMemberships(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("list user memberships", err)
	}
	out := make([]MembershipView, 0, len(memberships))
	channels := make(map[int64]*sponsor.Channel)
	for _, m := range memberships {
		ch, ok := channels[m.ChannelID]
		if !ok {
			ch, err = s.repo.GetByID(ctx, m.ChannelID)
			if err != nil {
				return nil, errors.NewDatabaseError("get sponsor channel", err)
			}
			channels[m.ChannelID] = ch
		}
		view := MembershipView{Membership: m}
		if ch != nil {
			view.ChannelTitle = ch.Title
			view.ChannelUsername = ch.Username
			view.ChannelActive = ch.IsActive
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *Service) resolveChat(ctx context.Context, chatID string) (*telegram.Chat, error) {
	if s.cache != nil {
		if chat, err := s.cache.Get(ctx, chatID); err == nil && chat != nil {
			return chat, nil
		}
	}
	chat, err := s.tg.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, chatID, chat); err != nil {
			s.logger.Debug().Err(err).Str("channel_id", chatID).Msg("Failed to cache chat")
		}
	}
	return chat, nil
}

// invalidateChat drops cached metadata of a channel the bot can no longer read, under both
// references it may have been resolved by.
func (s *Service) invalidateChat(ctx context.Context, ch *sponsor.Channel) {
	refs := []string{ch.ChannelID}
	if ch.Username != "" {
		refs = append(refs, "@"+ch.Username)
	}
	for _, ref := range refs {
		if err := s.cache.Invalidate(ctx, ref); err != nil {
			s.logger.Debug().Err(err).Str("channel_id", ref).Msg("Failed to invalidate cached chat")
		}
	}
}
