package handler

import (
	"errors"
	"strconv"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/jengzang/fishing-sync/internal/cloudsync"
	"github.com/jengzang/fishing-sync/internal/models"
	"github.com/jengzang/fishing-sync/pkg/response"
)

// respondError maps domain errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var (
		validation  *models.ValidationError
		referential *models.ReferentialError
		notFound    *models.NotFoundError
		transport   *cloudsync.TransportError
	)

	switch {
	case errors.As(err, &validation):
		response.BadRequest(c, validation.Error())
	case errors.As(err, &referential):
		response.Conflict(c, referential.Error())
	case errors.As(err, &notFound):
		response.NotFound(c, notFound.Error())
	case errors.Is(err, models.ErrTrackingPermission):
		response.Forbidden(c, err.Error())
	case errors.Is(err, models.ErrNotTracking), errors.Is(err, cloudsync.ErrSchedulerStopped):
		response.Conflict(c, err.Error())
	case errors.Is(err, cloudsync.ErrThrottled):
		response.TooManyRequests(c, err.Error())
	case errors.As(err, &transport):
		response.BadGateway(c, transport.Error())
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		_ = c.Error(err)
		response.InternalError(c, "internal error")
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid ID")
		return 0, false
	}
	return id, true
}
