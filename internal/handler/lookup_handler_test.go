package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/backoffice-api/internal/dto"
	"github.com/noah-isme/backoffice-api/internal/models"
)

type fakeLookupSrv struct {
	stores     []models.Store
	storesErr  error
	categories []models.Category
	suppliers  []models.Supplier
	users      []dto.UserSummary
	formData   *dto.FormData
	formHit    bool
	formErr    error
}

func (f *fakeLookupSrv) Stores(context.Context) ([]models.Store, error) {
	return f.stores, f.storesErr
}

func (f *fakeLookupSrv) Categories(context.Context) ([]models.Category, error) {
	return f.categories, nil
}

func (f *fakeLookupSrv) Suppliers(context.Context) ([]models.Supplier, error) {
	return f.suppliers, nil
}

func (f *fakeLookupSrv) Users(context.Context) ([]dto.UserSummary, error) {
	return f.users, nil
}

func (f *fakeLookupSrv) FormData(context.Context) (*dto.FormData, bool, error) {
	return f.formData, f.formHit, f.formErr
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}

func TestLookupHandlerStores(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewLookupHandler(&fakeLookupSrv{
		stores: []models.Store{{ID: "s1", Name: "Central Warehouse"}},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/lookups/stores", nil)

	handler.Stores(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Central Warehouse")
}

func TestLookupHandlerStoresUpstreamFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewLookupHandler(&fakeLookupSrv{storesErr: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/lookups/stores", nil)

	handler.Stores(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLookupHandlerFormDataReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewLookupHandler(&fakeLookupSrv{
		formData: &dto.FormData{Stores: []models.Store{{ID: "s1"}}},
		formHit:  true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/lookups/form-data", nil)

	handler.FormData(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestLookupHandlerFormDataCarriesWarnings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewLookupHandler(&fakeLookupSrv{
		formData: &dto.FormData{
			Categories: []models.Category{{ID: "c1", Name: "Beverages"}},
			Warnings:   []string{"stores unavailable"},
		},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/lookups/form-data", nil)

	handler.FormData(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stores unavailable")
}

func TestLookupHandlerNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewLookupHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/lookups/users", nil)

	handler.Users(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
