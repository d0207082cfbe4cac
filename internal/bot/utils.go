package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasktimer/internal/db/models"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func formatSeconds(seconds int64) string {
	return formatDuration(time.Duration(seconds) * time.Second)
}

// formatClock prints a UTC wall clock time.
func formatClock(t time.Time) string {
	return t.UTC().Format("15:04") + " UTC"
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s + strings.Repeat(" ", maxLen-len(s))
	}
	return s[:maxLen-3] + "..."
}

// reply answers an interaction that has not been acknowledged yet.
func reply(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// respondWithError fills the deferred response with an error
func respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, errMsg string) {
	content := "Error: " + errMsg
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content})
}

// respondWithSuccess fills the deferred response
func respondWithSuccess(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &msg})
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// userFromInteraction gets or creates the user behind the interaction
func (b *Bot) userFromInteraction(ctx context.Context, i *discordgo.InteractionCreate) (*models.User, error) {
	du := interactionUser(i)
	if du == nil {
		return nil, errors.New("could not get user information from interaction")
	}

	user, err := b.store.GetOrCreateUser(ctx, du.ID, du.Username)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", du.ID, err)
	}
	return user, nil
}

// actorFromInteraction resolves the caller. Guild administrators act as Admin.
func (b *Bot) actorFromInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) (models.Actor, error) {
	user, err := b.userFromInteraction(ctx, i)
	if err != nil {
		return models.Actor{}, err
	}
	return actorFor(user, isAdmin(s, i.GuildID, i.Member)), nil
}

func actorFor(user *models.User, guildAdmin bool) models.Actor {
	actor := models.Actor{UserID: user.ID, Role: user.Role, Name: user.Username}
	if guildAdmin {
		actor.Role = models.RoleAdmin
	}
	return actor
}

// isAdmin reports whether member owns the guild or holds an administrative
// permission in it.
func isAdmin(s *discordgo.Session, guildID string, member *discordgo.Member) bool {
	if guildID == "" || member == nil {
		return false
	}
	if member.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageServer) != 0 {
		return true
	}
	if s == nil || member.User == nil {
		return false
	}
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return false
	}
	return guild.OwnerID == member.User.ID
}

func hasPermission(member *discordgo.Member, permission int64) bool {
	if member == nil {
		return false
	}
	return member.Permissions&(permission|discordgo.PermissionAdministrator) != 0
}

func getServerName(s *discordgo.Session, guildID string) string {
	if guild, err := s.State.Guild(guildID); err == nil {
		return guild.Name
	}
	if guild, err := s.Guild(guildID); err == nil {
		return guild.Name
	}
	return guildID
}

// logCommand logs command execution with its parameters
func logCommand(log zerolog.Logger, i *discordgo.InteractionCreate, commandName string) {
	username := "unknown"
	if u := interactionUser(i); u != nil {
		username = u.Username
	}

	var params []string
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionSubCommand:
			params = append(params, opt.Name)
			for _, subOpt := range opt.Options {
				params = append(params, fmt.Sprintf("%s:%s", subOpt.Name, subOpt.StringValue()))
			}
		case discordgo.ApplicationCommandOptionString:
			params = append(params, fmt.Sprintf("%s:%s", opt.Name, opt.StringValue()))
		}
	}

	log.Info().
		Str("guild_id", i.GuildID).
		Str("user", username).
		Str("command", commandName).
		Strs("params", params).
		Msg("command executed")
}

func (b *Bot) logError(i *discordgo.InteractionCreate, errContext string, err error) {
	b.log.Error().
		Err(err).
		Str("guild_id", i.GuildID).
		Str("command", i.ApplicationCommandData().Name).
		Msg(errContext)
}

// formatTable creates a Discord-friendly table with fixed-width columns
func formatTable(headers []string, rows [][]string) string {
	// Find the maximum width for each column
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len(header)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var result strings.Builder

	result.WriteString("```\n")
	for i, header := range headers {
		result.WriteString(fmt.Sprintf("%-*s", widths[i]+2, header))
	}
	result.WriteString("\n")

	for _, width := range widths {
		result.WriteString(strings.Repeat("-", width+2))
	}
	result.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			result.WriteString(fmt.Sprintf("%-*s", widths[i]+2, cell))
		}
		result.WriteString("\n")
	}
	result.WriteString("```")

	return result.String()
}
