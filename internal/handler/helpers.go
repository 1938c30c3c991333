package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/phillipshepard1/phillipsnotes/internal/ai"
	"github.com/phillipshepard1/phillipsnotes/internal/pkg/errcode"
	appErr "github.com/phillipshepard1/phillipsnotes/internal/pkg/errors"
	"github.com/phillipshepard1/phillipsnotes/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get("user_id")
	userID, _ := value.(string)
	return userID
}

func handleError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, ai.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai not configured")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
