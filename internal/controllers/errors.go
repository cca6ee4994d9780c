package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"soldeser/internal/attendance"
)

// respondError maps engine errors onto HTTP responses.
func respondError(c *gin.Context, err error) {
	var already *attendance.AlreadyClockedInError
	switch {
	case errors.As(err, &already):
		c.JSON(http.StatusConflict, gin.H{
			"error":       "You already have an open clock-in",
			"code":        "ALREADY_CLOCKED_IN",
			"open_record": already.Open,
		})
	case errors.Is(err, attendance.ErrNotClockedIn):
		c.JSON(http.StatusBadRequest, gin.H{"error": "You have no open clock-in", "code": "NOT_CLOCKED_IN"})
	case errors.Is(err, attendance.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
	case errors.Is(err, attendance.ErrStoreFailure):
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Store failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage temporarily unavailable, please retry", "code": "STORE_UNAVAILABLE"})
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "INTERNAL"})
	}
}

func currentUser(c *gin.Context) (uint, bool) {
	id, ok := c.Get("user_id")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return 0, false
	}
	uid, ok := id.(uint)
	if !ok || uid == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return 0, false
	}
	return uid, true
}
