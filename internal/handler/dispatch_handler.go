package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/backoffice-api/internal/dto"
	"github.com/noah-isme/backoffice-api/internal/middleware"
	"github.com/noah-isme/backoffice-api/internal/service"
	appErrors "github.com/noah-isme/backoffice-api/pkg/errors"
	"github.com/noah-isme/backoffice-api/pkg/response"
)

// DispatchHandler exposes dispatch endpoints.
type DispatchHandler struct {
	dispatches *service.DispatchService
}

// NewDispatchHandler constructs DispatchHandler.
func NewDispatchHandler(dispatches *service.DispatchService) *DispatchHandler {
	return &DispatchHandler{dispatches: dispatches}
}

// List godoc
// @Summary List dispatches
// @Tags Dispatches
// @Produce json
// @Param type query string false "Filter by dispatch type"
// @Param from_store_id query string false "Filter by source store"
// @Param to_store_id query string false "Filter by destination store"
// @Param search query string false "Search by dispatch number or notes"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /dispatches [get]
func (h *DispatchHandler) List(c *gin.Context) {
	var query dto.DispatchQuery
	query.Type = c.Query("type")
	query.FromStore = c.Query("from_store_id")
	query.ToStore = c.Query("to_store_id")
	query.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		query.PageSize = size
	}
	query.SortBy = c.Query("sort")
	query.SortOrder = c.Query("order")

	start := time.Now()
	dispatches, pagination, cacheHit, err := h.dispatches.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, dispatches, &pagination, meta)
}

// Get godoc
// @Summary Get dispatch detail
// @Tags Dispatches
// @Produce json
// @Param id path string true "Dispatch ID"
// @Success 200 {object} response.Envelope
// @Router /dispatches/{id} [get]
func (h *DispatchHandler) Get(c *gin.Context) {
	dispatch, err := h.dispatches.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dispatch, nil)
}

// Create godoc
// @Summary Create dispatch
// @Tags Dispatches
// @Accept json
// @Produce json
// @Param payload body dto.CreateDispatchRequest true "Dispatch payload"
// @Success 201 {object} response.Envelope
// @Router /dispatches [post]
func (h *DispatchHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	dispatch, err := h.dispatches.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dispatch)
}

// Update godoc
// @Summary Update dispatch
// @Description Replace header fields and items. Allowed only while no quantity has been received.
// @Tags Dispatches
// @Accept json
// @Produce json
// @Param id path string true "Dispatch ID"
// @Param payload body dto.UpdateDispatchRequest true "Dispatch payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /dispatches/{id} [put]
func (h *DispatchHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	dispatch, err := h.dispatches.Update(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dispatch, nil)
}

// Delete godoc
// @Summary Delete dispatch
// @Description Allowed only while no quantity has been received.
// @Tags Dispatches
// @Produce json
// @Param id path string true "Dispatch ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /dispatches/{id} [delete]
func (h *DispatchHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.dispatches.Delete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AcknowledgeReceipt godoc
// @Summary Acknowledge receipt of dispatched items
// @Description Records arrived quantities per item. Quantities accumulate across calls.
// @Tags Dispatches
// @Accept json
// @Produce json
// @Param id path string true "Dispatch ID"
// @Param payload body dto.AcknowledgeReceiptRequest true "Acknowledge payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /dispatches/{id}/acknowledge [post]
func (h *DispatchHandler) AcknowledgeReceipt(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.AcknowledgeReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	dispatch, err := h.dispatches.AcknowledgeReceipt(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dispatch, nil)
}

// ReturnItems godoc
// @Summary Return received items to the source store
// @Tags Dispatches
// @Accept json
// @Produce json
// @Param id path string true "Dispatch ID"
// @Param payload body dto.ReturnItemsRequest true "Return payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /dispatches/{id}/returns [post]
func (h *DispatchHandler) ReturnItems(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReturnItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	dispatch, err := h.dispatches.ReturnItems(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dispatch, nil)
}
