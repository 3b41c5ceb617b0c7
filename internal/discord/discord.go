// Package discord binds the counting engine and the opt-out registry to the
// Discord gateway.
//
// The package is deliberately thin: handlers convert gateway payloads into
// engine inputs and hand off. All counting decisions live in the tally
// package, which keeps the core testable without a live connection.
package discord

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/tallybot/tallybot/internal/optout"
	"github.com/tallybot/tallybot/internal/tally"
)

// CommandIgnore is the slash command name for opting out.
const CommandIgnore = "ignorar"

// Bot wires gateway events to the tracker and registry.
type Bot struct {
	session *discordgo.Session
	tracker *tally.Tracker
	optOuts *optout.Registry
	guildID string
}

// New creates a Bot over a fresh gateway session. The session is not opened
// until Start, and the engine halves are attached with Bind - the resolver
// handed to the tracker needs the session, so the session must exist first.
//
// guildID selects where the opt-out command is registered; when empty the
// command is disabled and ready logs a warning.
func New(token, guildID string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions

	b := &Bot{
		session: session,
		guildID: guildID,
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onReactionAdd)
	session.AddHandler(b.onInteraction)
	return b, nil
}

// Bind attaches the counting engine and the opt-out registry.
// Must be called before Start.
func (b *Bot) Bind(tracker *tally.Tracker, optOuts *optout.Registry) {
	b.tracker = tracker
	b.optOuts = optOuts
}

// Session exposes the underlying session, used by run wiring to build the
// display name resolver.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Start opens the gateway connection. Handlers fire on the session's event
// goroutines from here on.
func (b *Bot) Start() error {
	if b.tracker == nil || b.optOuts == nil {
		return fmt.Errorf("bot not bound: call Bind before Start")
	}
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	return nil
}

// Close shuts down the gateway connection.
func (b *Bot) Close() error {
	return b.session.Close()
}

// onReady registers the opt-out slash command once the session is
// authenticated. Without a configured guild the command is silently
// disabled apart from one warning line.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	slog.Info("gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))

	if b.guildID == "" {
		slog.Warn("no guild configured, opt-out command not registered")
		return
	}

	_, err := s.ApplicationCommandCreate(r.User.ID, b.guildID, &discordgo.ApplicationCommand{
		Name:        CommandIgnore,
		Description: "Para de contar as reações que você envia",
	})
	if err != nil {
		slog.Error("command registration failed", "command", CommandIgnore, "guild_id", b.guildID, "error", err)
		return
	}
	slog.Info("command registered", "command", CommandIgnore, "guild_id", b.guildID)
}

// onReactionAdd converts a gateway reaction event into an engine event.
//
// The gateway payload carries the reactor but not the message author, so the
// author comes from the state cache with a REST fetch fallback. Failures at
// any step are logged and the event dropped - reaction handling never takes
// the process down.
func (b *Bot) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	authorID, err := b.messageAuthor(s, r.ChannelID, r.MessageID)
	if err != nil {
		slog.Error("message author lookup failed",
			"channel_id", r.ChannelID, "message_id", r.MessageID, "error", err)
		return
	}

	messageID, err := ParseSnowflake(r.MessageID)
	if err != nil {
		slog.Error("bad message id", "message_id", r.MessageID, "error", err)
		return
	}
	reactorID, err := ParseSnowflake(r.UserID)
	if err != nil {
		slog.Error("bad reactor id", "user_id", r.UserID, "error", err)
		return
	}

	dec := b.tracker.HandleReaction(tally.ReactionEvent{
		MessageID: messageID,
		AuthorID:  authorID,
		ReactorID: reactorID,
	})
	slog.Debug("reaction handled",
		"outcome", dec.Outcome.String(),
		"message_id", messageID,
		"author_id", authorID,
		"reactor_id", reactorID,
		"total", dec.Total,
	)
}

// onInteraction dispatches slash command invocations.
func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.ApplicationCommandData().Name != CommandIgnore {
		return
	}

	user := interactionUser(i)
	if user == nil {
		slog.Error("interaction without user", "command", CommandIgnore)
		return
	}

	userID, err := ParseSnowflake(user.ID)
	if err != nil {
		slog.Error("bad interaction user id", "user_id", user.ID, "error", err)
		return
	}

	added, err := b.optOuts.Add(userID)
	if err != nil {
		// Membership is already updated in memory; only the save failed.
		slog.Error("opt-out save failed", "user_id", userID, "error", err)
	}
	respond(s, i, IgnoreResponse(user.Username, added))
}

// messageAuthor resolves the author of a message, preferring the state cache
// over a REST round trip.
func (b *Bot) messageAuthor(s *discordgo.Session, channelID, messageID string) (int64, error) {
	msg, err := s.State.Message(channelID, messageID)
	if err != nil {
		msg, err = s.ChannelMessage(channelID, messageID)
		if err != nil {
			return 0, fmt.Errorf("fetch message: %w", err)
		}
	}
	if msg.Author == nil {
		return 0, fmt.Errorf("message has no author")
	}
	return ParseSnowflake(msg.Author.ID)
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		slog.Error("interaction response failed", "error", err)
	}
}

// interactionUser extracts the invoking user. Guild invocations carry it on
// the member, direct ones on the interaction itself.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// ParseSnowflake converts a Discord snowflake string to int64.
func ParseSnowflake(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse snowflake %q: %w", id, err)
	}
	return n, nil
}

// IgnoreResponse builds the opt-out command reply, echoing the username.
// added=false means the user was already on the list.
func IgnoreResponse(username string, added bool) string {
	if added {
		return fmt.Sprintf("Pronto, %s! Suas reações não serão mais contadas.", username)
	}
	return fmt.Sprintf("%s, você já está na lista de ignorados.", username)
}

// Resolver resolves display names through the gateway session.
// Satisfies tally.NameResolver.
type Resolver struct {
	session *discordgo.Session
}

// NewResolver creates a Resolver over an open session.
func NewResolver(session *discordgo.Session) *Resolver {
	return &Resolver{session: session}
}

// DisplayName looks a user up by ID. The tracker substitutes its placeholder
// on error, so failures here only cost the nicer label.
func (r *Resolver) DisplayName(userID int64) (string, error) {
	user, err := r.session.User(strconv.FormatInt(userID, 10))
	if err != nil {
		return "", fmt.Errorf("lookup user %d: %w", userID, err)
	}
	return user.Username, nil
}
