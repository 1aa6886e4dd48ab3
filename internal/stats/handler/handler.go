package handler

import (
	"net/http"

	"leadstats_backend/internal/stats/service"
	"leadstats_backend/internal/stats/transport"
	"leadstats_backend/platform/httpkit"
	"leadstats_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.GetStats)
	rg.GET("/previous-month", h.GetPreviousMonthStats)
	rg.GET("/connection", h.TestConnection)
	rg.GET("/deals/:dealId/partners", h.GetProductPartners)
}

func (h *Handler) GetStats(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	result, err := h.svc.GetStats(c.Request.Context(), service.FilterFromRequest(req), preferLocal(req), req.Debug)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) GetPreviousMonthStats(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	result, err := h.svc.GetStatsForPreviousMonth(c.Request.Context(), service.FilterFromRequest(req), preferLocal(req), req.Debug)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) GetProductPartners(c *gin.Context) {
	dealID := c.Param("dealId")
	if dealID == "" {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "dealId is required")
		return
	}

	partners, err := h.svc.GetProductPartners(c.Request.Context(), dealID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, partners)
}

func (h *Handler) TestConnection(c *gin.Context) {
	httpkit.OK(c, h.svc.TestConnection(c.Request.Context()))
}

func (h *Handler) bindRequest(c *gin.Context) (transport.StatsRequest, bool) {
	var req transport.StatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return req, false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return req, false
	}
	return req, true
}

// preferLocal defaults to true: the mirror is always tried first unless the
// caller explicitly opts out.
func preferLocal(req transport.StatsRequest) bool {
	if req.PreferLocal == nil {
		return true
	}
	return *req.PreferLocal
}
