package notify

import (
	"context"
	"fmt"
	"time"

	"tasktimer/internal/db/models"

	"github.com/bwmarrin/discordgo"
)

// ChannelSender is the part of *discordgo.Session used to post messages.
type ChannelSender interface {
	ChannelMessageSend(channelID string, content string) (*discordgo.Message, error)
}

// DiscordNotifier posts events to a Discord channel.
type DiscordNotifier struct {
	session   ChannelSender
	channelID string
}

func NewDiscordNotifier(session ChannelSender, channelID string) *DiscordNotifier {
	return &DiscordNotifier{session: session, channelID: channelID}
}

func (n *DiscordNotifier) Notify(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.session.ChannelMessageSend(n.channelID, FormatEvent(e)); err != nil {
		return fmt.Errorf("send discord notification: %w", err)
	}
	return nil
}

var verbs = map[models.TimeLogAction]string{
	models.ActionStart:    "started",
	models.ActionPause:    "paused",
	models.ActionResume:   "resumed",
	models.ActionStop:     "stopped",
	models.ActionComplete: "completed",
}

// FormatEvent renders e as a one-line chat message.
func FormatEvent(e Event) string {
	who := e.Actor.Name
	if who == "" {
		who = e.Actor.UserID.String()
	}
	msg := fmt.Sprintf("⏱️ **%s** %s **%s**", who, verbs[e.Action], e.Task.Name)
	if e.DurationSeconds > 0 {
		msg += fmt.Sprintf(" (+%s)", time.Duration(e.DurationSeconds)*time.Second)
	}
	if e.Action == models.ActionComplete || e.DurationSeconds > 0 {
		msg += fmt.Sprintf(", total %s", time.Duration(e.Task.TotalTrackedSeconds)*time.Second)
	}
	if e.Note != nil && *e.Note != "" {
		msg += fmt.Sprintf("\n> %s", *e.Note)
	}
	return msg
}
