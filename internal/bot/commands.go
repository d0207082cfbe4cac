package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tasktimer/internal/attendance"
	"tasktimer/internal/db/models"
	"tasktimer/internal/timer"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

const maxChoices = 25

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "clockin",
		Description: "Start your working day",
	},
	{
		Name:        "clockout",
		Description: "End your working day and pause running timers",
	},
	{
		Name:        "attendance",
		Description: "Show today's clock-in and clock-out",
	},
	{
		Name:        "timer",
		Description: "Operate a task timer",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "action",
				Description: "What to do with the timer",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Start", Value: "start"},
					{Name: "Pause", Value: "pause"},
					{Name: "Resume", Value: "resume"},
					{Name: "Stop", Value: "stop"},
					{Name: "Complete", Value: "complete"},
				},
			},
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "task",
				Description:  "The task to operate on",
				Required:     true,
				Autocomplete: true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "note",
				Description: "Note recorded with this transition",
				Required:    false,
			},
		},
	},
	{
		Name:        "task",
		Description: "Manage tasks",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "new",
				Description: "Create a task assigned to you",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "name",
						Description: "Task name",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "description",
						Description: "Task description",
						Required:    false,
					},
				},
			},
		},
	},
	{
		Name:        "status",
		Description: "Show running timers in this server",
	},
	{
		Name:        "report",
		Description: "Show your tracked time per task",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "period",
				Description: "Time period for the report",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Today", Value: "today"},
					{Name: "This Week", Value: "week"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "format",
				Description: "Output format (CSV for administrators)",
				Required:    false,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Text", Value: "text"},
					{Name: "CSV", Value: "csv"},
				},
			},
		},
	},
}

func (b *Bot) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "timer" {
		return
	}

	var input string
	for _, opt := range data.Options {
		if opt.Name == "task" && opt.Focused {
			input = opt.StringValue()
		}
	}
	b.handleTaskAutocomplete(s, i, input)
}

func (b *Bot) handleTaskAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate, input string) {
	ctx := context.Background()

	user, err := b.userFromInteraction(ctx, i)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", i.GuildID).Msg("autocomplete: resolve user")
		return
	}

	tasks, err := b.store.ListAssignedTasks(ctx, user.ID)
	if err != nil {
		b.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("autocomplete: list tasks")
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: taskChoices(tasks, input),
		},
	})
	if err != nil {
		b.log.Error().Err(err).Msg("autocomplete: respond")
	}
}

// taskChoices lists open tasks whose name contains input, running ones first.
func taskChoices(tasks []*models.Task, input string) []*discordgo.ApplicationCommandOptionChoice {
	input = strings.ToLower(input)

	var running, rest []*discordgo.ApplicationCommandOptionChoice
	for _, t := range tasks {
		if t.Status == models.TaskCompleted || t.Status == models.TaskCancelled {
			continue
		}
		if input != "" && !strings.Contains(strings.ToLower(t.Name), input) {
			continue
		}
		choice := &discordgo.ApplicationCommandOptionChoice{
			Name:  strings.TrimSpace(truncateString(t.Name, 80)) + " (" + string(t.Status) + ")",
			Value: t.ID.String(),
		}
		if t.IsRunning() {
			running = append(running, choice)
		} else {
			rest = append(rest, choice)
		}
	}

	choices := append(running, rest...)
	if len(choices) > maxChoices {
		choices = choices[:maxChoices]
	}
	return choices
}

type timerFunc func(ctx context.Context, taskID uuid.UUID, actor models.Actor, note *string) (*models.Task, error)

func (b *Bot) timerAction(action string) (timerFunc, bool) {
	switch action {
	case "start":
		return b.engine.Start, true
	case "pause":
		return b.engine.Pause, true
	case "resume":
		return b.engine.Resume, true
	case "stop":
		return b.engine.Stop, true
	case "complete":
		return b.engine.Complete, true
	}
	return nil, false
}

func (b *Bot) handleTimer(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(b.log, i, "timer")
	ctx := context.Background()

	var action, taskArg string
	var note *string
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "action":
			action = opt.StringValue()
		case "task":
			taskArg = opt.StringValue()
		case "note":
			if v := strings.TrimSpace(opt.StringValue()); v != "" {
				note = &v
			}
		}
	}

	fn, ok := b.timerAction(action)
	if !ok {
		respondWithError(s, i, "Unknown timer action")
		return
	}
	taskID, err := uuid.Parse(taskArg)
	if err != nil {
		respondWithError(s, i, "Please pick a task from the list")
		return
	}

	actor, err := b.actorFromInteraction(ctx, s, i)
	if err != nil {
		b.logError(i, "resolve actor", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	task, err := fn(ctx, taskID, actor, note)
	if err != nil {
		b.logError(i, "timer "+action, err)
		respondWithError(s, i, userMessage(err))
		return
	}

	respondWithSuccess(s, i, formatTaskState(task))
}

func (b *Bot) handleTask(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(b.log, i, "task")
	ctx := context.Background()

	options := i.ApplicationCommandData().Options
	if len(options) == 0 || options[0].Name != "new" {
		respondWithError(s, i, "Unknown subcommand")
		return
	}

	var name, description string
	for _, opt := range options[0].Options {
		switch opt.Name {
		case "name":
			name = strings.TrimSpace(opt.StringValue())
		case "description":
			description = strings.TrimSpace(opt.StringValue())
		}
	}
	if name == "" {
		respondWithError(s, i, "Task name cannot be empty")
		return
	}

	user, err := b.userFromInteraction(ctx, i)
	if err != nil {
		b.logError(i, "resolve user", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	project, err := b.store.GetOrCreateGuildProject(ctx, i.GuildID, getServerName(s, i.GuildID))
	if err != nil {
		b.logError(i, "guild project", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	task := &models.Task{
		ProjectID:   project.ID,
		AssignedTo:  &user.ID,
		Name:        name,
		Description: description,
	}
	if err := b.store.CreateTask(ctx, task); err != nil {
		b.logError(i, "create task", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	respondWithSuccess(s, i, fmt.Sprintf("Created task **%s** in %s. Use `/timer action:start` to begin.", task.Name, project.Name))
}

func (b *Bot) handleClockIn(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(b.log, i, "clockin")
	ctx := context.Background()

	user, err := b.userFromInteraction(ctx, i)
	if err != nil {
		b.logError(i, "resolve user", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	ts, err := b.attendance.ClockIn(ctx, user.ID)
	if err != nil {
		b.logError(i, "clock in", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	respondWithSuccess(s, i, fmt.Sprintf("Clocked in at %s. You can now start task timers.", formatClock(*ts.ClockIn)))
}

func (b *Bot) handleClockOut(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(b.log, i, "clockout")
	ctx := context.Background()

	actor, err := b.actorFromInteraction(ctx, s, i)
	if err != nil {
		b.logError(i, "resolve actor", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	ts, swept, err := b.attendance.ClockOut(ctx, actor)
	if err != nil {
		b.logError(i, "clock out", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("Clocked out at %s.", formatClock(*ts.ClockOut)))
	for _, id := range swept.Paused {
		msg.WriteString("\n⏸️ Paused " + b.taskName(ctx, id))
	}
	for id, ferr := range swept.Failed {
		b.log.Warn().Err(ferr).Str("task_id", id.String()).Msg("clock-out left timer running")
		msg.WriteString("\n⚠️ Could not pause " + b.taskName(ctx, id))
	}
	respondWithSuccess(s, i, msg.String())
}

func (b *Bot) handleAttendance(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(b.log, i, "attendance")
	ctx := context.Background()

	user, err := b.userFromInteraction(ctx, i)
	if err != nil {
		b.logError(i, "resolve user", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	state, ts, err := b.attendance.Status(ctx, user.ID)
	if err != nil {
		b.logError(i, "attendance status", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	switch state {
	case attendance.StateClockedIn:
		respondWithSuccess(s, i, fmt.Sprintf("Clocked in since %s.", formatClock(*ts.ClockIn)))
	case attendance.StateClockedOut:
		respondWithSuccess(s, i, fmt.Sprintf("Clocked in at %s, clocked out at %s.", formatClock(*ts.ClockIn), formatClock(*ts.ClockOut)))
	default:
		respondWithSuccess(s, i, "You have not clocked in today. Use `/clockin` to start.")
	}
}

func (b *Bot) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(b.log, i, "status")
	ctx := context.Background()

	project, err := b.store.GetOrCreateGuildProject(ctx, i.GuildID, getServerName(s, i.GuildID))
	if err != nil {
		b.logError(i, "guild project", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	running, err := b.store.ListAllRunningTasks(ctx)
	if err != nil {
		b.logError(i, "running tasks", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	now := b.now()
	var rows [][]string
	for _, t := range running {
		if t.ProjectID != project.ID {
			continue
		}
		who := "unassigned"
		if t.AssignedTo != nil {
			if u, err := b.store.GetUser(ctx, *t.AssignedTo); err == nil {
				who = u.Username
			}
		}
		rows = append(rows, []string{
			truncateString(who, 20),
			truncateString(t.Name, 30),
			formatDuration(now.Sub(*t.ActiveTimerStartedAt)),
			formatSeconds(t.TotalTrackedSeconds),
		})
	}

	if len(rows) == 0 {
		respondWithSuccess(s, i, "No timers are running in this server.")
		return
	}
	respondWithSuccess(s, i, "# Running timers\n"+formatTable([]string{"USER", "TASK", "RUNNING", "TOTAL"}, rows))
}

func (b *Bot) taskName(ctx context.Context, id uuid.UUID) string {
	t, err := b.store.GetTask(ctx, id)
	if err != nil {
		return id.String()
	}
	return "**" + t.Name + "**"
}

func formatTaskState(t *models.Task) string {
	switch {
	case t.IsRunning():
		return fmt.Sprintf("▶️ **%s** is running since %s (total %s)", t.Name, formatClock(*t.ActiveTimerStartedAt), formatSeconds(t.TotalTrackedSeconds))
	case t.Status == models.TaskCompleted:
		return fmt.Sprintf("✅ **%s** completed (total %s)", t.Name, formatSeconds(t.TotalTrackedSeconds))
	default:
		return fmt.Sprintf("⏸️ **%s** is %s (total %s)", t.Name, t.Status, formatSeconds(t.TotalTrackedSeconds))
	}
}

// userMessage turns an operation error into text safe to show in Discord.
func userMessage(err error) string {
	switch {
	case errors.Is(err, timer.ErrPreconditionFailed):
		return "You must `/clockin` before starting or resuming a task"
	case errors.Is(err, timer.ErrConflict):
		return "You already have a running timer. Pause it before starting another task"
	case errors.Is(err, timer.ErrForbidden):
		return "You can only operate timers on tasks assigned to you"
	case errors.Is(err, timer.ErrNotFound):
		return "Task not found"
	case errors.Is(err, timer.ErrInvalidState):
		return "That action is not allowed in the task's current status"
	case errors.Is(err, attendance.ErrAlreadyClockedIn):
		return "You have already clocked in today"
	case errors.Is(err, attendance.ErrNotClockedIn):
		return "You have not clocked in today"
	case errors.Is(err, attendance.ErrAlreadyClockedOut):
		return "You have already clocked out today"
	}
	return "An internal error occurred"
}
