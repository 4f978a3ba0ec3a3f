package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/wellmeet-pipeline/internal/pkg/errcode"
	"github.com/xxxsen/wellmeet-pipeline/internal/pkg/response"
)

type FunctionHandler struct {
	registry *Registry
}

func NewFunctionHandler(registry *Registry) *FunctionHandler {
	return &FunctionHandler{registry: registry}
}

func (h *FunctionHandler) List(c *gin.Context) {
	response.Success(c, gin.H{"functions": h.registry.Names()})
}

func (h *FunctionHandler) Invoke(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "read request body failed")
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		response.Error(c, errcode.ErrInvalid, "event must be json")
		return
	}
	result, err := h.registry.Invoke(c.Request.Context(), c.Param("name"), body)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func RegisterRoutes(api *gin.RouterGroup, functions *FunctionHandler) {
	api.GET("/functions", functions.List)
	api.POST("/functions/:name", functions.Invoke)
	api.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
}
