package v1

import (
	"errors"
	"net/http"

	"tasktimer/internal/attendance"
	"tasktimer/internal/store"
	"tasktimer/internal/timer"

	"github.com/gin-gonic/gin"
)

var errInvalidTaskID = errors.New("invalid task id")

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newAPIError(code int, message string) apiError {
	return apiError{
		Code:    code,
		Message: message,
	}
}

func (e apiError) Error() string {
	return e.Message
}

func abort(c *gin.Context, err apiError) {
	c.AbortWithStatusJSON(err.Code, gin.H{"error": err.Message})
}

func newBadRequestError(message string) apiError {
	return newAPIError(http.StatusBadRequest, message)
}

func newUnauthorizedError(message string) apiError {
	return newAPIError(http.StatusUnauthorized, message)
}

// errorStatus maps domain errors to HTTP status codes.
var errorStatus = []struct {
	err    error
	status int
}{
	{timer.ErrNotFound, http.StatusNotFound},
	{store.ErrNotFound, http.StatusNotFound},
	{timer.ErrForbidden, http.StatusForbidden},
	{timer.ErrPreconditionFailed, http.StatusPreconditionFailed},
	{timer.ErrConflict, http.StatusConflict},
	{timer.ErrInvalidState, http.StatusUnprocessableEntity},
	{attendance.ErrAlreadyClockedIn, http.StatusBadRequest},
	{attendance.ErrNotClockedIn, http.StatusBadRequest},
	{attendance.ErrAlreadyClockedOut, http.StatusBadRequest},
}

func newDomainError(err error) apiError {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return newAPIError(m.status, err.Error())
		}
	}
	return newAPIError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
