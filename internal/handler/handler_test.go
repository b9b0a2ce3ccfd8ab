package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("handler-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) List(ctx context.Context, kind workflow.Kind, filter service.DocumentListFilter) ([]service.DocumentResponse, int64, error) {
	args := m.Called(ctx, kind, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]service.DocumentResponse), args.Get(1).(int64), args.Error(2)
}

func (m *MockDocumentService) Get(ctx context.Context, kind workflow.Kind, id string) (*service.DocumentResponse, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) Create(ctx context.Context, kind workflow.Kind, actor service.Actor, req service.CreateDocumentRequest) (*service.DocumentResponse, error) {
	args := m.Called(ctx, kind, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) Update(ctx context.Context, kind workflow.Kind, id string, actor service.Actor, req service.UpdateDocumentRequest) (*service.DocumentResponse, error) {
	args := m.Called(ctx, kind, id, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) UpdateStatus(ctx context.Context, kind workflow.Kind, id string, actor service.Actor, target workflow.Status) (*service.DocumentResponse, error) {
	args := m.Called(ctx, kind, id, actor, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) Decide(ctx context.Context, kind workflow.Kind, id string, actor service.Actor, decision workflow.Decision, reason string) (*service.DocumentResponse, error) {
	args := m.Called(ctx, kind, id, actor, decision, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, kind workflow.Kind, id string, actor service.Actor) error {
	return m.Called(ctx, kind, id, actor).Error(0)
}

func (m *MockDocumentService) AvailableActions(ctx context.Context, kind workflow.Kind, id string, perms workflow.PermissionSet) ([]workflow.StatusAction, error) {
	args := m.Called(ctx, kind, id, perms)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]workflow.StatusAction), args.Error(1)
}

func (m *MockDocumentService) Summary(ctx context.Context, kind workflow.Kind) ([]service.StatusCount, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.StatusCount), args.Error(1)
}

var poView = workflow.Permission(workflow.KindPurchaseOrder, workflow.VerbView)
var poCreate = workflow.Permission(workflow.KindPurchaseOrder, workflow.VerbCreate)

func newAuth() *middleware.Authenticator {
	grants := map[string][]string{
		"viewer":      {poView},
		"requester":   {poView, poCreate},
		"buyer":       {service.PermViewVendors, service.PermManageVendors},
		"storekeeper": {service.PermViewStock},
	}
	return middleware.NewAuthenticator(testSecret, func(ctx context.Context, role string) ([]string, error) {
		return grants[role], nil
	}, 8, time.Minute, false)
}

func newDocumentRouter(svc service.DocumentService) *gin.Engine {
	auth := newAuth()
	r := gin.New()
	NewDocumentHandler(workflow.KindPurchaseOrder, svc, auth).RegisterRoutes(r.Group("", auth.Authenticate()))
	return r
}

func do(t *testing.T, r http.Handler, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		tok, err := service.IssueToken(testSecret, "user-"+role, role, time.Hour, time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", service.ErrDocumentNotFound), http.StatusNotFound},
		{service.ErrUnknownKind, http.StatusNotFound},
		{service.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("wrap: %w", service.ErrInvalidTransition), http.StatusUnprocessableEntity},
		{service.ErrPayloadInvalid, http.StatusUnprocessableEntity},
		{service.ErrInvalidDecision, http.StatusUnprocessableEntity},
		{service.ErrNoActiveTDSRule, http.StatusUnprocessableEntity},
		{service.ErrTDSOverlap, http.StatusConflict},
		{service.ErrUserExists, http.StatusConflict},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestDocumentListPassesFilter(t *testing.T) {
	svc := new(MockDocumentService)
	r := newDocumentRouter(svc)

	docs := []service.DocumentResponse{{Entity: workflow.Entity{ID: "a", Kind: workflow.KindPurchaseOrder, Status: workflow.StatusDraft}}}
	svc.On("List", mock.Anything, workflow.KindPurchaseOrder, service.DocumentListFilter{
		Status: workflow.StatusDraft, Query: "laptop", Offset: 10, Limit: 10,
	}).Return(docs, int64(11), nil)

	w := do(t, r, http.MethodGet, "/api/purchase-orders?status=draft&q=laptop&page=2&limit=10", "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Items []workflow.Entity `json:"items"`
		Total int64             `json:"total"`
		Page  int               `json:"page"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &page))
	assert.Equal(t, int64(11), page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a", page.Items[0].ID)
}

func TestDocumentListRejectsUnknownStatus(t *testing.T) {
	r := newDocumentRouter(new(MockDocumentService))
	w := do(t, r, http.MethodGet, "/api/purchase-orders?status=shipped", "viewer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentRoutesRequirePermissions(t *testing.T) {
	r := newDocumentRouter(new(MockDocumentService))

	w := do(t, r, http.MethodGet, "/api/purchase-orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodGet, "/api/purchase-orders", "stranger", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, "/api/purchase-orders", "viewer", map[string]any{"title": "x", "payload": map[string]any{}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDocumentCreate(t *testing.T) {
	svc := new(MockDocumentService)
	r := newDocumentRouter(svc)

	created := &service.DocumentResponse{Entity: workflow.Entity{ID: "po-1", Number: "PO-20261019-X", Status: workflow.StatusDraft}}
	svc.On("Create", mock.Anything, workflow.KindPurchaseOrder,
		mock.MatchedBy(func(a service.Actor) bool { return a.UserID == "user-requester" && a.Permissions.Has(poCreate) }),
		mock.MatchedBy(func(req service.CreateDocumentRequest) bool { return req.Title == "Laptops" })).
		Return(created, nil)

	w := do(t, r, http.MethodPost, "/api/purchase-orders", "requester", map[string]any{
		"title":   "Laptops",
		"payload": map[string]any{"vendor_id": "v-1"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var got workflow.Entity
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, "PO-20261019-X", got.Number)

	w = do(t, r, http.MethodPost, "/api/purchase-orders", "requester", map[string]any{"title": "no payload"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentUpdate(t *testing.T) {
	svc := new(MockDocumentService)
	r := newDocumentRouter(svc)

	edited := &service.DocumentResponse{Entity: workflow.Entity{ID: "po-1", Title: "Laptops x3", Status: workflow.StatusDraft}}
	svc.On("Update", mock.Anything, workflow.KindPurchaseOrder, "po-1", mock.Anything,
		mock.MatchedBy(func(req service.UpdateDocumentRequest) bool { return req.Title == "Laptops x3" })).
		Return(edited, nil)
	svc.On("Update", mock.Anything, workflow.KindPurchaseOrder, "po-2", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: edit is not offered in pending_approval", service.ErrInvalidTransition))

	body := map[string]any{"title": "Laptops x3", "payload": map[string]any{"vendor_id": "v-1"}}
	w := do(t, r, http.MethodPut, "/api/purchase-orders/po-1", "viewer", body)
	require.Equal(t, http.StatusOK, w.Code)
	var got workflow.Entity
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, "Laptops x3", got.Title)

	w = do(t, r, http.MethodPut, "/api/purchase-orders/po-2", "viewer", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPut, "/api/purchase-orders/po-1", "viewer", map[string]any{"title": "no payload"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentUpdateStatusMapsErrors(t *testing.T) {
	svc := new(MockDocumentService)
	r := newDocumentRouter(svc)

	svc.On("UpdateStatus", mock.Anything, workflow.KindPurchaseOrder, "po-1", mock.Anything, workflow.StatusApproved).
		Return(nil, fmt.Errorf("%w: draft to approved", service.ErrInvalidTransition))
	svc.On("UpdateStatus", mock.Anything, workflow.KindPurchaseOrder, "po-1", mock.Anything, workflow.StatusPendingApproval).
		Return(nil, service.ErrForbidden)
	svc.On("UpdateStatus", mock.Anything, workflow.KindPurchaseOrder, "po-1", mock.Anything, workflow.StatusCancelled).
		Return(nil, fmt.Errorf("failed to update: connection reset"))

	w := do(t, r, http.MethodPatch, "/api/purchase-orders/po-1/status", "viewer", map[string]any{"status": "approved"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w).Error, "draft to approved")

	w = do(t, r, http.MethodPatch, "/api/purchase-orders/po-1/status", "viewer", map[string]any{"status": "pending_approval"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPatch, "/api/purchase-orders/po-1/status", "viewer", map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w).Error)
}

func TestDocumentDecideAndDelete(t *testing.T) {
	svc := new(MockDocumentService)
	r := newDocumentRouter(svc)

	approved := &service.DocumentResponse{Entity: workflow.Entity{ID: "po-1", Status: workflow.StatusRejected}}
	svc.On("Decide", mock.Anything, workflow.KindPurchaseOrder, "po-1", mock.Anything, workflow.DecisionReject, "over budget").
		Return(approved, nil)
	svc.On("Delete", mock.Anything, workflow.KindPurchaseOrder, "po-2", mock.Anything).
		Return(fmt.Errorf("%w: po-2", service.ErrDocumentNotFound))

	w := do(t, r, http.MethodPost, "/api/purchase-orders/po-1/approval", "viewer", map[string]any{"decision": "reject", "reason": "over budget"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodDelete, "/api/purchase-orders/po-2", "viewer", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}

func TestDocumentActionsUseCallerPermissions(t *testing.T) {
	svc := new(MockDocumentService)
	r := newDocumentRouter(svc)

	actions := []workflow.StatusAction{{Kind: workflow.ActionViewDetails, Label: "View details"}}
	svc.On("AvailableActions", mock.Anything, workflow.KindPurchaseOrder, "po-1",
		mock.MatchedBy(func(p workflow.PermissionSet) bool { return p.Has(poView) && !p.Has(poCreate) })).
		Return(actions, nil)

	w := do(t, r, http.MethodGet, "/api/purchase-orders/po-1/actions", "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got []workflow.StatusAction
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, workflow.ActionViewDetails, got[0].Kind)
}
