// Package bot is the Discord front-end of the task timer.
package bot

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"tasktimer/internal/attendance"
	"tasktimer/internal/config"
	"tasktimer/internal/store"
	"tasktimer/internal/timer"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const retryDelay = 5 * time.Second

type Bot struct {
	config     config.DiscordConfig
	store      store.Store
	engine     *timer.Engine
	attendance *attendance.Service
	session    *discordgo.Session
	log        zerolog.Logger
	now        func() time.Time
	isShutdown bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

func New(cfg config.DiscordConfig, engine *timer.Engine, att *attendance.Service, s store.Store, log zerolog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	return &Bot{
		config:     cfg,
		store:      s,
		engine:     engine,
		attendance: att,
		session:    session,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Session exposes the Discord session for channel notifications.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// registerGuildCommands registers the slash commands with retries
func (b *Bot) registerGuildCommands(guildID string) error {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := b.registerGuildCommandsOnce(guildID)
		if err == nil {
			return nil
		}
		lastErr = err
		b.log.Warn().Err(err).Str("guild_id", guildID).Int("attempt", i+1).Msg("register commands failed")
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return fmt.Errorf("failed to register commands after %d attempts: %w", maxRetries, lastErr)
}

func (b *Bot) registerGuildCommandsOnce(guildID string) error {
	log := b.log.With().Str("guild_id", guildID).Str("guild", getServerName(b.session, guildID)).Logger()
	log.Info().Msg("registering commands")

	existing, err := b.session.ApplicationCommands(b.config.ClientID, guildID)
	if err != nil {
		return fmt.Errorf("error getting existing commands: %w", err)
	}

	for _, v := range existing {
		if err := b.session.ApplicationCommandDelete(b.config.ClientID, guildID, v.ID); err != nil {
			log.Warn().Err(err).Str("command", v.Name).Msg("failed to delete command")
		}
	}

	for _, v := range commands {
		if _, err := b.session.ApplicationCommandCreate(b.config.ClientID, guildID, v); err != nil {
			return fmt.Errorf("error creating command %s: %w", v.Name, err)
		}
		log.Debug().Str("command", v.Name).Msg("registered command")
	}
	return nil
}

// Start connects to Discord and serves interactions until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	b.log.Info().Msg("starting Discord bot")

	for {
		_, err := b.session.User("@me")
		if err == nil {
			break
		}
		b.log.Warn().Err(err).Dur("retry_in", retryDelay).Msg("failed to connect to Discord API")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	for {
		err := b.session.Open()
		if err == nil {
			break
		}
		b.log.Warn().Err(err).Dur("retry_in", retryDelay).Msg("error opening Discord session")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	b.log.Info().Str("session_id", b.session.State.SessionID).Msg("session opened")

	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.mu.Lock()
		if b.isShutdown {
			b.mu.Unlock()
			return
		}
		b.wg.Add(1)
		b.mu.Unlock()
		defer b.wg.Done()

		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			b.handleCommand(s, i)
		case discordgo.InteractionApplicationCommandAutocomplete:
			b.handleAutocomplete(s, i)
		}
	})

	for _, guild := range b.session.State.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			b.log.Error().Err(err).Str("guild_id", guild.ID).Msg("error registering commands")
		}
	}
	b.session.AddHandler(b.handleGuildCreate)

	b.log.Info().Int("guilds", len(b.session.State.Guilds)).Msg("bot is running")

	<-ctx.Done()
	return b.Shutdown()
}

// Shutdown waits for in-flight interactions, removes the commands and closes
// the session. It is safe to call more than once.
func (b *Bot) Shutdown() error {
	b.mu.Lock()
	if b.isShutdown {
		b.mu.Unlock()
		return nil
	}
	b.isShutdown = true
	b.mu.Unlock()

	b.log.Info().Msg("waiting for active handlers to complete")
	b.wg.Wait()

	for _, guild := range b.session.State.Guilds {
		registered, err := b.session.ApplicationCommands(b.config.ClientID, guild.ID)
		if err != nil {
			b.log.Warn().Err(err).Str("guild_id", guild.ID).Msg("error getting commands")
			continue
		}
		for _, cmd := range registered {
			if err := b.session.ApplicationCommandDelete(b.config.ClientID, guild.ID, cmd.ID); err != nil {
				b.log.Warn().Err(err).Str("guild_id", guild.ID).Str("command", cmd.Name).Msg("failed to remove command")
			}
		}
	}

	if err := b.session.Close(); err != nil {
		return fmt.Errorf("error closing Discord session: %w", err)
	}
	b.log.Info().Msg("Discord bot stopped")
	return nil
}

func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.log.Info().Str("guild_id", g.ID).Str("guild", g.Name).Msg("joined guild")

	if _, err := b.store.GetOrCreateGuildProject(context.Background(), g.ID, g.Name); err != nil {
		b.log.Error().Err(err).Str("guild_id", g.ID).Msg("error creating guild project")
	}
	if err := b.registerGuildCommands(g.ID); err != nil {
		b.log.Error().Err(err).Str("guild_id", g.ID).Msg("error registering commands")
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			b.log.Error().
				Str("guild_id", i.GuildID).
				Interface("panic", r).
				Str("stack", string(buf[:n])).
				Msg("panic in command handler")

			respondWithError(s, i, "An internal error occurred")
		}
	}()

	commandName := i.ApplicationCommandData().Name

	if i.GuildID == "" {
		reply(s, i, fmt.Sprintf("Error: The `/%s` command can only be used in a server", commandName))
		return
	}
	if !hasPermission(i.Member, discordgo.PermissionViewChannel) {
		reply(s, i, "Error: You don't have permission to use this command here")
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", i.GuildID).Msg("error acknowledging interaction")
		return
	}

	switch commandName {
	case "clockin":
		b.handleClockIn(s, i)
	case "clockout":
		b.handleClockOut(s, i)
	case "attendance":
		b.handleAttendance(s, i)
	case "timer":
		b.handleTimer(s, i)
	case "task":
		b.handleTask(s, i)
	case "status":
		b.handleStatus(s, i)
	case "report":
		b.handleReport(s, i)
	default:
		b.log.Warn().Str("guild_id", i.GuildID).Str("command", commandName).Msg("unknown command")
		respondWithError(s, i, "Unknown command")
	}
}
