package v1

import (
	"net/http"
	"time"

	"tasktimer/internal/attendance"
	"tasktimer/internal/db/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type attendanceResponse struct {
	State    string     `json:"state"`
	Date     string     `json:"date,omitempty"`
	ClockIn  *time.Time `json:"clock_in,omitempty"`
	ClockOut *time.Time `json:"clock_out,omitempty"`
}

func newAttendanceResponse(state attendance.State, ts *models.Timesheet) attendanceResponse {
	resp := attendanceResponse{State: string(state)}
	if ts != nil {
		resp.Date = ts.Date.Format(time.DateOnly)
		resp.ClockIn = ts.ClockIn
		resp.ClockOut = ts.ClockOut
	}
	return resp
}

type clockOutResponse struct {
	attendanceResponse
	PausedTasks []uuid.UUID `json:"paused_tasks"`
	FailedTasks []uuid.UUID `json:"failed_tasks,omitempty"`
}

func (h *Handler) HandleClockIn(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	ts, err := h.attendance.ClockIn(c.Request.Context(), actor.UserID)
	if err != nil {
		h.logger.Warn().Err(err).Str("actor_id", actor.UserID.String()).Msg("clock in failed")
		abort(c, newDomainError(err))
		return
	}
	c.JSON(http.StatusOK, newAttendanceResponse(attendance.StateClockedIn, ts))
}

func (h *Handler) HandleClockOut(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	ts, swept, err := h.attendance.ClockOut(c.Request.Context(), actor)
	if err != nil {
		h.logger.Warn().Err(err).Str("actor_id", actor.UserID.String()).Msg("clock out failed")
		abort(c, newDomainError(err))
		return
	}

	resp := clockOutResponse{
		attendanceResponse: newAttendanceResponse(attendance.StateClockedOut, ts),
		PausedTasks:        swept.Paused,
	}
	if resp.PausedTasks == nil {
		resp.PausedTasks = []uuid.UUID{}
	}
	for id := range swept.Failed {
		resp.FailedTasks = append(resp.FailedTasks, id)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) HandleAttendanceStatus(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	state, ts, err := h.attendance.Status(c.Request.Context(), actor.UserID)
	if err != nil {
		h.logger.Error().Err(err).Str("actor_id", actor.UserID.String()).Msg("attendance status failed")
		abort(c, newDomainError(err))
		return
	}
	c.JSON(http.StatusOK, newAttendanceResponse(state, ts))
}
