package v1

import (
	"tasktimer/internal/attendance"
	"tasktimer/internal/store"
	"tasktimer/internal/timer"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	logger     zerolog.Logger
	engine     *timer.Engine
	attendance *attendance.Service
	store      store.Store

	jwtIssuer     string
	jwtSigningKey []byte
}

func New(
	logger zerolog.Logger,
	engine *timer.Engine,
	attendanceService *attendance.Service,
	s store.Store,
	jwtIssuer string,
	jwtSigningKey string,
) *Handler {
	return &Handler{
		logger:        logger,
		engine:        engine,
		attendance:    attendanceService,
		store:         s,
		jwtIssuer:     jwtIssuer,
		jwtSigningKey: []byte(jwtSigningKey),
	}
}

// Register mounts the API on router.
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/health", h.HandleHealth)

	api := router.Group("/api/v1", h.HandleAuthMiddleware)

	tasks := api.Group("/tasks")
	tasks.GET("/:id", h.HandleGetTask)
	tasks.GET("/:id/timelogs", h.HandleGetTimeLogs)
	tasks.POST("/:id/start", h.HandleStart)
	tasks.POST("/:id/pause", h.HandlePause)
	tasks.POST("/:id/resume", h.HandleResume)
	tasks.POST("/:id/stop", h.HandleStop)
	tasks.POST("/:id/complete", h.HandleComplete)

	att := api.Group("/attendance")
	att.POST("/clockin", h.HandleClockIn)
	att.POST("/clockout", h.HandleClockOut)
	att.GET("/status", h.HandleAttendanceStatus)
}
