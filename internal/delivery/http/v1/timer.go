package v1

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"tasktimer/internal/db/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type taskResponse struct {
	ID                   uuid.UUID  `json:"id"`
	ProjectID            uuid.UUID  `json:"project_id"`
	AssignedTo           *uuid.UUID `json:"assigned_to,omitempty"`
	Name                 string     `json:"name"`
	Status               string     `json:"status"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	TotalTrackedSeconds  int64      `json:"total_tracked_seconds"`
	ActiveTimerStartedAt *time.Time `json:"active_timer_started_at,omitempty"`
	LastPausedAt         *time.Time `json:"last_paused_at,omitempty"`
	IsRunning            bool       `json:"is_running"`
}

func newTaskResponse(task *models.Task) taskResponse {
	return taskResponse{
		ID:                   task.ID,
		ProjectID:            task.ProjectID,
		AssignedTo:           task.AssignedTo,
		Name:                 task.Name,
		Status:               string(task.Status),
		StartedAt:            task.StartedAt,
		CompletedAt:          task.CompletedAt,
		TotalTrackedSeconds:  task.TotalTrackedSeconds,
		ActiveTimerStartedAt: task.ActiveTimerStartedAt,
		LastPausedAt:         task.LastPausedAt,
		IsRunning:            task.IsRunning(),
	}
}

type timerRequest struct {
	Note *string `json:"note,omitempty" binding:"omitempty,max=1000"`
}

type timerFunc func(ctx context.Context, taskID uuid.UUID, actor models.Actor, note *string) (*models.Task, error)

func (h *Handler) HandleStart(c *gin.Context)    { h.handleTimer(c, "start", h.engine.Start) }
func (h *Handler) HandlePause(c *gin.Context)    { h.handleTimer(c, "pause", h.engine.Pause) }
func (h *Handler) HandleResume(c *gin.Context)   { h.handleTimer(c, "resume", h.engine.Resume) }
func (h *Handler) HandleStop(c *gin.Context)     { h.handleTimer(c, "stop", h.engine.Stop) }
func (h *Handler) HandleComplete(c *gin.Context) { h.handleTimer(c, "complete", h.engine.Complete) }

func (h *Handler) handleTimer(c *gin.Context, action string, fn timerFunc) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.logger.Warn().Str("id", c.Param("id")).Msg("invalid task id")
		abort(c, newBadRequestError(errInvalidTaskID.Error()))
		return
	}

	var req timerRequest
	// The body is optional.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError("invalid request body"))
		return
	}

	task, err := fn(c.Request.Context(), taskID, actor, req.Note)
	if err != nil {
		apiErr := newDomainError(err)
		ev := h.logger.Warn()
		if apiErr.Code >= http.StatusInternalServerError {
			ev = h.logger.Error()
		}
		ev.Err(err).
			Str("action", action).
			Str("task_id", taskID.String()).
			Str("actor_id", actor.UserID.String()).
			Msg("timer action failed")
		abort(c, apiErr)
		return
	}

	h.logger.Debug().
		Str("action", action).
		Str("task_id", taskID.String()).
		Msg("timer action applied")
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h *Handler) HandleGetTask(c *gin.Context) {
	if _, ok := h.mustActor(c); !ok {
		return
	}
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abort(c, newBadRequestError(errInvalidTaskID.Error()))
		return
	}

	task, err := h.store.GetTask(c.Request.Context(), taskID)
	if err != nil {
		h.logger.Warn().Err(err).Str("task_id", taskID.String()).Msg("failed to get task")
		abort(c, newDomainError(err))
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

type timeLogResponse struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	Action          string     `json:"action"`
	StartAt         *time.Time `json:"start_at,omitempty"`
	EndAt           *time.Time `json:"end_at,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
	Note            *string    `json:"note,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (h *Handler) HandleGetTimeLogs(c *gin.Context) {
	if _, ok := h.mustActor(c); !ok {
		return
	}
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abort(c, newBadRequestError(errInvalidTaskID.Error()))
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetTask(ctx, taskID); err != nil {
		abort(c, newDomainError(err))
		return
	}
	logs, err := h.store.ListTimeLogs(ctx, taskID)
	if err != nil {
		h.logger.Error().Err(err).Str("task_id", taskID.String()).Msg("failed to list time logs")
		abort(c, newDomainError(err))
		return
	}

	response := make([]timeLogResponse, len(logs))
	for i, l := range logs {
		response[i] = timeLogResponse{
			ID:              l.ID,
			UserID:          l.UserID,
			Action:          string(l.Action),
			StartAt:         l.StartAt,
			EndAt:           l.EndAt,
			DurationSeconds: l.DurationSeconds,
			Note:            l.Note,
			CreatedAt:       l.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
