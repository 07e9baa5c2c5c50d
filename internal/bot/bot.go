// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/oops"

	"github.com/classmate/classmate/internal/command"
	"github.com/classmate/classmate/pkg/errutil"
)

// Bot owns the gateway session and forwards message events to the
// dispatcher. Each event is dispatched on its own goroutine so a command
// waiting on argument prompts never stalls the gateway reader.
type Bot struct {
	session *discordgo.Session
	logger  *slog.Logger

	mu         sync.RWMutex
	dispatcher *command.Dispatcher

	dispatchTimeout time.Duration
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger used for dispatch outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) { b.logger = logger }
}

// WithDispatchTimeout caps how long a single dispatch, including its prompt
// loop, may run. Defaults to 5 minutes.
func WithDispatchTimeout(d time.Duration) Option {
	return func(b *Bot) { b.dispatchTimeout = d }
}

// New creates a session for token and wires the message handlers. The
// session is not opened; call Start. Attach a dispatcher with SetDispatcher
// before or shortly after starting; events arriving earlier are dropped.
func New(token string, opts ...Option) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, oops.Code("DISCORD_SESSION_FAILED").Wrap(err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		session:         session,
		logger:          slog.Default(),
		dispatchTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(b)
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onMessageUpdate)
	return b, nil
}

// Session exposes the underlying gateway session for building the
// responder, resolver, and permission checker.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// SetDispatcher attaches the command dispatcher that receives message
// events.
func (b *Bot) SetDispatcher(d *command.Dispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatcher = d
}

// Platform returns the responder, resolver, and permission checker backed
// by this session. Valid for use once the session is open.
func (b *Bot) Platform() (command.Responder, command.EntityResolver, command.PermissionChecker) {
	return NewResponder(b.session),
		NewResolver(b.session.State, b.session),
		NewPermissionChecker(b.session, b.ClientID())
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return oops.Code("DISCORD_CONNECT_FAILED").Wrap(err)
	}
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	return b.session.Close()
}

// ClientID returns the bot's own user id. Valid after Start.
func (b *Bot) ClientID() string {
	if b.session.State.User == nil {
		return ""
	}
	return b.session.State.User.ID
}

func (b *Bot) onReady(_ *discordgo.Session, ready *discordgo.Ready) {
	b.logger.Info("gateway ready",
		slog.String("username", ready.User.Username),
		slog.String("user_id", ready.User.ID),
		slog.Int("guilds", len(ready.Guilds)))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, event *discordgo.MessageCreate) {
	msg := convertMessage(s.State, event.Message, false)
	if msg == nil {
		return
	}
	go b.dispatch(msg)
}

func (b *Bot) onMessageUpdate(s *discordgo.Session, event *discordgo.MessageUpdate) {
	msg := convertMessage(s.State, event.Message, true)
	if msg == nil {
		return
	}
	go b.dispatch(msg)
}

func (b *Bot) dispatch(msg *command.Message) {
	b.mu.RLock()
	dispatcher := b.dispatcher
	b.mu.RUnlock()
	if dispatcher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.dispatchTimeout)
	defer cancel()

	result := dispatcher.Dispatch(ctx, msg)
	switch result.Status {
	case command.StatusIgnored, command.StatusNoMatch:
	case command.StatusErrored:
		errutil.LogError(b.logger.With(
			slog.String("message_id", msg.ID),
			slog.String("channel_id", msg.ChannelID)),
			"command errored", result.Err)
	default:
		b.logger.Debug("command dispatched",
			slog.String("message_id", msg.ID),
			slog.String("channel_id", msg.ChannelID),
			slog.String("status", string(result.Status)))
	}
}

// convertMessage maps a gateway message onto the transport-neutral shape.
// Returns nil for events with no usable author (update events for embed
// resolution carry a nil author).
func convertMessage(state *discordgo.State, m *discordgo.Message, isEdit bool) *command.Message {
	if m == nil || m.Author == nil {
		return nil
	}

	msg := &command.Message{
		ID:        m.ID,
		AuthorID:  m.Author.ID,
		AuthorBot: m.Author.Bot,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	if isEdit {
		if m.EditedTimestamp != nil {
			msg.EditedAt = *m.EditedTimestamp
		} else {
			msg.EditedAt = time.Now()
		}
	}
	if state != nil {
		if channel, err := state.Channel(m.ChannelID); err == nil {
			msg.NSFW = channel.NSFW
			if channel.Type == discordgo.ChannelTypeDM {
				msg.GuildID = ""
			}
		}
		if msg.GuildID != "" {
			if guild, err := state.Guild(msg.GuildID); err == nil {
				msg.GuildUnavailable = guild.Unavailable
			}
		}
	}
	return msg
}
