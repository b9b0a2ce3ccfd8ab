package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"procurement/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockVendorService struct {
	mock.Mock
}

func (m *MockVendorService) ActiveVendor(ctx context.Context, id string) (*service.VendorResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VendorResponse), args.Error(1)
}

func (m *MockVendorService) CreateVendor(ctx context.Context, req service.CreateVendorRequest) (*service.VendorResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VendorResponse), args.Error(1)
}

func (m *MockVendorService) UpdateVendor(ctx context.Context, id string, req service.UpdateVendorRequest) (*service.VendorResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VendorResponse), args.Error(1)
}

func (m *MockVendorService) DeleteVendor(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockVendorService) GetVendor(ctx context.Context, id string) (*service.VendorResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VendorResponse), args.Error(1)
}

func (m *MockVendorService) ListVendors(ctx context.Context, filter service.VendorListFilter) ([]service.VendorResponse, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]service.VendorResponse), args.Get(1).(int64), args.Error(2)
}

func newVendorRouter(svc service.VendorService) *gin.Engine {
	auth := newAuth()
	r := gin.New()
	NewVendorHandler(svc, auth).RegisterRoutes(r.Group("", auth.Authenticate()))
	return r
}

func TestVendorRoutesRequirePermissions(t *testing.T) {
	svc := new(MockVendorService)
	r := newVendorRouter(svc)

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/api/vendors", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, r, http.MethodGet, "/api/vendors", "viewer", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, r, http.MethodPost, "/api/vendors", "requester", map[string]string{"name": "Acme"}).Code)
	svc.AssertNotCalled(t, "ListVendors", mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "CreateVendor", mock.Anything, mock.Anything)
}

func TestListVendors(t *testing.T) {
	svc := new(MockVendorService)
	r := newVendorRouter(svc)

	svc.On("ListVendors", mock.Anything, service.VendorListFilter{Search: "acme", ActiveOnly: true, Offset: 10, Limit: 10}).
		Return([]service.VendorResponse{{ID: uuid.New(), Name: "Acme"}}, int64(11), nil)

	w := do(t, r, http.MethodGet, "/api/vendors?search=acme&active=true&page=2&limit=10", "buyer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Contains(t, string(env.Data), `"total":11`)
	svc.AssertExpectations(t)
}

func TestVendorErrorMapping(t *testing.T) {
	svc := new(MockVendorService)
	r := newVendorRouter(svc)
	id := uuid.NewString()

	svc.On("GetVendor", mock.Anything, id).Return(nil, fmt.Errorf("%w: %s", service.ErrVendorNotFound, id))
	svc.On("CreateVendor", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: pan is not valid", service.ErrInvalidVendor))
	svc.On("DeleteVendor", mock.Anything, id).Return(nil)

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/vendors/"+id, "buyer", nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, r, http.MethodPost, "/api/vendors", "buyer", map[string]string{"name": "Acme", "pan": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/vendors", "buyer", map[string]string{"pan": "x"}).Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodDelete, "/api/vendors/"+id, "buyer", nil).Code)
}
