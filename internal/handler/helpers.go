package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/wellmeet-pipeline/internal/pkg/errcode"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
	"github.com/xxxsen/wellmeet-pipeline/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("function", c.Param("name")),
		zap.Error(err),
	)
	response.Error(c, codeOf(err), err.Error())
}

func codeOf(err error) int {
	switch {
	case errors.Is(err, appErr.ErrUnknownFunction):
		return errcode.ErrUnknownFunction
	case errors.Is(err, appErr.ErrNotFound):
		return errcode.ErrNotFound
	case errors.Is(err, appErr.ErrInvalid):
		return errcode.ErrInvalid
	case errors.Is(err, appErr.ErrBatchFailed):
		return errcode.ErrBatchFailed
	case errors.Is(err, appErr.ErrEmptyBatch):
		return errcode.ErrEmptyBatch
	case errors.Is(err, appErr.ErrUnavailable):
		return errcode.ErrUnavailable
	default:
		return errcode.ErrInternal
	}
}
