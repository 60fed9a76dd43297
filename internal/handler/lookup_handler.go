package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/backoffice-api/internal/dto"
	"github.com/noah-isme/backoffice-api/internal/middleware"
	"github.com/noah-isme/backoffice-api/internal/models"
	appErrors "github.com/noah-isme/backoffice-api/pkg/errors"
	"github.com/noah-isme/backoffice-api/pkg/response"
)

type lookupService interface {
	Stores(ctx context.Context) ([]models.Store, error)
	Categories(ctx context.Context) ([]models.Category, error)
	Suppliers(ctx context.Context) ([]models.Supplier, error)
	Users(ctx context.Context) ([]dto.UserSummary, error)
	FormData(ctx context.Context) (*dto.FormData, bool, error)
}

// LookupHandler exposes the dropdown-source endpoints.
type LookupHandler struct {
	service lookupService
}

// NewLookupHandler constructs LookupHandler.
func NewLookupHandler(service lookupService) *LookupHandler {
	return &LookupHandler{service: service}
}

// Stores godoc
// @Summary List active stores
// @Tags Lookups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lookups/stores [get]
func (h *LookupHandler) Stores(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	stores, err := h.service.Stores(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stores, nil)
}

// Categories godoc
// @Summary List product categories
// @Tags Lookups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lookups/categories [get]
func (h *LookupHandler) Categories(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	categories, err := h.service.Categories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// Suppliers godoc
// @Summary List suppliers
// @Tags Lookups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lookups/suppliers [get]
func (h *LookupHandler) Suppliers(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	suppliers, err := h.service.Suppliers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suppliers, nil)
}

// Users godoc
// @Summary List active users for assignment dropdowns
// @Tags Lookups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lookups/users [get]
func (h *LookupHandler) Users(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	users, err := h.service.Users(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// FormData godoc
// @Summary Aggregate every form dropdown source in one call
// @Description Sources that stay unavailable after retries are reported in warnings instead of failing the request.
// @Tags Lookups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lookups/form-data [get]
func (h *LookupHandler) FormData(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	data, cacheHit, err := h.service.FormData(c.Request.Context())
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
	response.JSON(c, http.StatusOK, data, nil, meta)
}
