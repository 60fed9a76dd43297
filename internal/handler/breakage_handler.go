package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/backoffice-api/internal/dto"
	"github.com/noah-isme/backoffice-api/internal/service"
	appErrors "github.com/noah-isme/backoffice-api/pkg/errors"
	"github.com/noah-isme/backoffice-api/pkg/response"
)

// BreakageHandler exposes breakage report endpoints.
type BreakageHandler struct {
	breakages *service.BreakageService
}

// NewBreakageHandler constructs BreakageHandler.
func NewBreakageHandler(breakages *service.BreakageService) *BreakageHandler {
	return &BreakageHandler{breakages: breakages}
}

// List godoc
// @Summary List breakage reports
// @Description Clerks only see their own reports; managers and admins see everything.
// @Tags Breakages
// @Produce json
// @Param status query string false "Comma-separated fulfillment statuses"
// @Param approval_status query string false "Comma-separated approval statuses"
// @Param store_id query string false "Filter by store"
// @Param search query string false "Search by breakage number or notes"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /breakages [get]
func (h *BreakageHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var query dto.BreakageQuery
	query.Status = c.Query("status")
	query.ApprovalStatus = c.Query("approval_status")
	query.StoreID = c.Query("store_id")
	query.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		query.PageSize = size
	}
	query.SortBy = c.Query("sort")
	query.SortOrder = c.Query("order")

	breakages, pagination, err := h.breakages.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, breakages, &pagination)
}

// Get godoc
// @Summary Get breakage detail
// @Tags Breakages
// @Produce json
// @Param id path string true "Breakage ID"
// @Success 200 {object} response.Envelope
// @Router /breakages/{id} [get]
func (h *BreakageHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	breakage, err := h.breakages.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, breakage, nil)
}

// Create godoc
// @Summary File a breakage report
// @Tags Breakages
// @Accept json
// @Produce json
// @Param payload body dto.CreateBreakageRequest true "Breakage payload"
// @Success 201 {object} response.Envelope
// @Router /breakages [post]
func (h *BreakageHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateBreakageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	breakage, err := h.breakages.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, breakage)
}

// Update godoc
// @Summary Update breakage report
// @Description Allowed only while both the fulfillment and approval axes are pending.
// @Tags Breakages
// @Accept json
// @Produce json
// @Param id path string true "Breakage ID"
// @Param payload body dto.UpdateBreakageRequest true "Breakage payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /breakages/{id} [put]
func (h *BreakageHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateBreakageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	breakage, err := h.breakages.Update(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, breakage, nil)
}

// Delete godoc
// @Summary Delete breakage report
// @Tags Breakages
// @Produce json
// @Param id path string true "Breakage ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /breakages/{id} [delete]
func (h *BreakageHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.breakages.Delete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Review godoc
// @Summary Approve or reject a breakage report
// @Description One-shot decision on the approval axis. Rejection requires a reason.
// @Tags Breakages
// @Accept json
// @Produce json
// @Param id path string true "Breakage ID"
// @Param payload body dto.ReviewBreakageRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /breakages/{id}/review [post]
func (h *BreakageHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReviewBreakageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	breakage, err := h.breakages.Review(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, breakage, nil)
}

// CreateReplacementDispatch godoc
// @Summary Create a replacement dispatch for an approved breakage
// @Description Ships replacements for items flagged replacement_requested. Closes the breakage to further dispatches.
// @Tags Breakages
// @Accept json
// @Produce json
// @Param id path string true "Breakage ID"
// @Param payload body object true "Source store"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /breakages/{id}/replacement-dispatch [post]
func (h *BreakageHandler) CreateReplacementDispatch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		FromStoreID string `json:"from_store_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "from_store_id is required"))
		return
	}
	dispatch, err := h.breakages.CreateReplacementDispatch(c.Request.Context(), c.Param("id"), payload.FromStoreID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dispatch)
}

// AssignableItems godoc
// @Summary List dispatch items assignable to a breakage report
// @Description Only open items with available quantity on hand are returned.
// @Tags Breakages
// @Produce json
// @Param store_id query string false "Filter by receiving store"
// @Param search query string false "Search by product name or dispatch number"
// @Success 200 {object} response.Envelope
// @Router /breakages/assignable-items [get]
func (h *BreakageHandler) AssignableItems(c *gin.Context) {
	var query dto.AssignableItemQuery
	query.StoreID = c.Query("store_id")
	query.Search = strings.TrimSpace(c.Query("search"))

	items, err := h.breakages.AssignableItems(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
