package httpapi

import (
	"errors"
	"net/http"

	"expertassist/internal/calls"
	"expertassist/internal/experts"
	"expertassist/internal/telephony"
	"expertassist/internal/users"
	"expertassist/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Every response uses the same envelope:
//
//	{"success": true, "data": ...}
//	{"success": true, "count": n, "data": [...]}
//	{"success": false, "message": "..."}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func okList[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(items), "data": items})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}

// writeError maps domain errors onto HTTP statuses. Unknown errors are logged
// and reported as a generic 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, experts.ErrNotFound):
		fail(c, http.StatusNotFound, "Expert not found")
	case errors.Is(err, calls.ErrNotFound):
		fail(c, http.StatusNotFound, "Call not found")
	case errors.Is(err, users.ErrNotFound):
		fail(c, http.StatusNotFound, "User not found.")
	case errors.Is(err, calls.ErrNoTranscript):
		fail(c, http.StatusNotFound, "Transcript not available for this call")
	case errors.Is(err, calls.ErrNoRecording):
		fail(c, http.StatusNotFound, "Recording not available for this call")
	case errors.Is(err, telephony.ErrUnknownCall):
		fail(c, http.StatusNotFound, "Provider call not found")
	case errors.Is(err, users.ErrEmailTaken):
		fail(c, http.StatusConflict, "User already exists")
	case errors.Is(err, users.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, calls.ErrStatusConflict):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, calls.ErrTooManyActiveCalls):
		fail(c, http.StatusTooManyRequests, "Too many active calls. Wait for one to finish.")
	case errors.Is(err, users.ErrInvalidArgument),
		errors.Is(err, experts.ErrInvalidArgument),
		errors.Is(err, calls.ErrInvalidArgument):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		logger.FromGin(c).Error("request failed", "path", c.FullPath(), "err", err)
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "Server error")
	}
}
