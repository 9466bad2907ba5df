package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord only removes up to seven days of messages with a ban.
const discordMaxDeleteDays = 7

// DiscordAPI is the subset of *discordgo.Session used by DiscordSink.
type DiscordAPI interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildBanDelete(guildID, userID string, options ...discordgo.RequestOption) error
	GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error
}

var _ DiscordAPI = (*discordgo.Session)(nil)

// DiscordSink executes actions with the Discord REST API.
//
// Responses saying the target is already gone (unknown message, member or ban) count as success, so repeated dispatches are harmless. Temporary bans and role mutes are undone by process-local timers, which don't survive a restart.
type DiscordSink struct {
	API    DiscordAPI
	Logger *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

var _ Sink = (*DiscordSink)(nil)

// NewDiscordSink creates a REST-only session for a bot token.
func NewDiscordSink(token string, client *http.Client, logger *slog.Logger) (*DiscordSink, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	if client != nil {
		session.Client = client
	}
	return NewDiscordSinkWithAPI(session, logger), nil
}

func NewDiscordSinkWithAPI(api DiscordAPI, logger *slog.Logger) *DiscordSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscordSink{
		API:    api,
		Logger: logger.With("sink", "discord"),
		timers: make(map[string]*time.Timer),
	}
}

// alreadyDone reports whether err means the action has no target left: a duplicate delete, kick or unban.
func alreadyDone(err error) bool {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) || rerr.Message == nil {
		return false
	}
	switch rerr.Message.Code {
	case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownBan:
		return true
	}
	return false
}

func (s *DiscordSink) Execute(ctx context.Context, d *Dispatch) error {
	err := s.execute(ctx, d.Action)
	if err != nil && alreadyDone(err) {
		s.Logger.Debug("action target already gone", "kind", d.Action.Kind(), "key", d.Key, "err", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("discord %s: %w", d.Action.Kind(), err)
	}
	return nil
}

func (s *DiscordSink) execute(ctx context.Context, a Action) error {
	withCtx := discordgo.WithContext(ctx)
	switch a := a.(type) {
	case Reply:
		ref := &discordgo.MessageReference{
			MessageID: a.MessageID.String(),
			ChannelID: a.ChannelID.String(),
			GuildID:   a.GuildID.String(),
		}
		_, err := s.API.ChannelMessageSendReply(a.ChannelID.String(), a.Content, ref, withCtx)
		return err
	case SendMessage:
		_, err := s.API.ChannelMessageSend(a.ChannelID.String(), a.Content, withCtx)
		return err
	case DeleteMessage:
		return s.API.ChannelMessageDelete(a.ChannelID.String(), a.MessageID.String(), withCtx)
	case Ban:
		days := min(a.DeleteDays, discordMaxDeleteDays)
		if err := s.API.GuildBanCreateWithReason(a.GuildID.String(), a.UserID.String(), a.Reason, days, withCtx); err != nil {
			return err
		}
		if a.Duration != nil {
			guild, user := a.GuildID.String(), a.UserID.String()
			s.after("unban/"+guild+"/"+user, *a.Duration, func() error {
				return s.API.GuildBanDelete(guild, user)
			})
		}
		return nil
	case Kick:
		return s.API.GuildMemberDeleteWithReason(a.GuildID.String(), a.UserID.String(), a.Reason, withCtx)
	case Mute:
		guild, user := a.GuildID.String(), a.UserID.String()
		if a.RoleID == 0 {
			until := time.Now().Add(a.Duration)
			return s.API.GuildMemberTimeout(guild, user, &until, withCtx, discordgo.WithAuditLogReason(a.Reason))
		}
		role := a.RoleID.String()
		if err := s.API.GuildMemberRoleAdd(guild, user, role, withCtx, discordgo.WithAuditLogReason(a.Reason)); err != nil {
			return err
		}
		s.after("unmute/"+guild+"/"+user, a.Duration, func() error {
			return s.API.GuildMemberRoleRemove(guild, user, role)
		})
		return nil
	case AddRole:
		return s.API.GuildMemberRoleAdd(a.GuildID.String(), a.UserID.String(), a.RoleID.String(), withCtx, discordgo.WithAuditLogReason(a.Reason))
	case RemoveRole:
		return s.API.GuildMemberRoleRemove(a.GuildID.String(), a.UserID.String(), a.RoleID.String(), withCtx, discordgo.WithAuditLogReason(a.Reason))
	}
	return fmt.Errorf("unsupported action type %T", a)
}

// after schedules an undo operation. A later action with the same key replaces the pending one.
func (s *DiscordSink) after(key string, d time.Duration, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.timers[key]; ok {
		prev.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.timers[key] == t {
			delete(s.timers, key)
		}
		s.mu.Unlock()
		if err := fn(); err != nil && !alreadyDone(err) {
			s.Logger.Warn("failed to undo timed action", "key", key, "err", err)
		}
	})
	s.timers[key] = t
}

// Pending returns the number of scheduled undo operations.
func (s *DiscordSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close cancels every pending undo operation.
func (s *DiscordSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
