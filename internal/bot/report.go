package bot

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"tasktimer/internal/db/models"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

func (b *Bot) handleReport(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(b.log, i, "report")
	ctx := context.Background()

	period := "today"
	format := "text"
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "period":
			period = opt.StringValue()
		case "format":
			format = opt.StringValue()
		}
	}

	if format == "csv" && !isAdmin(s, i.GuildID, i.Member) {
		respondWithError(s, i, "CSV format is only available for administrators")
		return
	}

	now := b.now()
	from, ok := periodStart(period, now)
	if !ok {
		respondWithError(s, i, "Invalid time period")
		return
	}

	user, err := b.userFromInteraction(ctx, i)
	if err != nil {
		b.logError(i, "resolve user", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	logs, err := b.store.ListUserTimeLogs(ctx, user.ID, from, now.Add(time.Second))
	if err != nil {
		b.logError(i, "list time logs", err)
		respondWithError(s, i, userMessage(err))
		return
	}

	totals := sumByTask(logs)
	names := make(map[uuid.UUID]string, len(totals))
	for id := range totals {
		names[id] = id.String()
		if t, err := b.store.GetTask(ctx, id); err == nil {
			names[id] = t.Name
		}
	}
	rows := reportRows(totals, names)

	if format == "csv" {
		var csv strings.Builder
		csv.WriteString("Task,Seconds,Duration\n")
		for _, r := range rows {
			csv.WriteString(fmt.Sprintf("%s,%d,%s\n", strings.ReplaceAll(r.name, ",", " "), r.seconds, formatSeconds(r.seconds)))
		}

		content := fmt.Sprintf("Time report for %s - %s", user.Username, period)
		s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content: &content,
			Files: []*discordgo.File{{
				Name:        fmt.Sprintf("time_report_%s.csv", period),
				ContentType: "text/csv",
				Reader:      bytes.NewReader([]byte(csv.String())),
			}},
		})
		return
	}

	if len(rows) == 0 {
		respondWithSuccess(s, i, fmt.Sprintf("No tracked time for %s.", period))
		return
	}

	var total int64
	table := make([][]string, 0, len(rows)+1)
	for _, r := range rows {
		total += r.seconds
		table = append(table, []string{truncateString(r.name, 30), formatSeconds(r.seconds)})
	}
	table = append(table, []string{"TOTAL", formatSeconds(total)})

	respondWithSuccess(s, i, fmt.Sprintf("# Time report for %s - %s\n", user.Username, period)+formatTable([]string{"TASK", "DURATION"}, table))
}

// periodStart returns the UTC start of a report period ending at now.
func periodStart(period string, now time.Time) (time.Time, bool) {
	today := models.DateOf(now)
	switch period {
	case "today":
		return today, true
	case "week":
		// Weeks start on Monday.
		offset := (int(today.Weekday()) + 6) % 7
		return today.AddDate(0, 0, -offset), true
	}
	return time.Time{}, false
}

// sumByTask adds up the closed-run seconds of each task.
func sumByTask(logs []*models.TimeLogEntry) map[uuid.UUID]int64 {
	totals := make(map[uuid.UUID]int64)
	for _, l := range logs {
		if l.DurationSeconds > 0 {
			totals[l.TaskID] += l.DurationSeconds
		}
	}
	return totals
}

type reportRow struct {
	name    string
	seconds int64
}

// reportRows orders tasks by tracked time, longest first, then by name.
func reportRows(totals map[uuid.UUID]int64, names map[uuid.UUID]string) []reportRow {
	rows := make([]reportRow, 0, len(totals))
	for id, seconds := range totals {
		rows = append(rows, reportRow{name: names[id], seconds: seconds})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].seconds != rows[j].seconds {
			return rows[i].seconds > rows[j].seconds
		}
		return rows[i].name < rows[j].name
	})
	return rows
}
