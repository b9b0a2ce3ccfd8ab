package service

import (
	"context"
	"sync"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, kind string, id uuid.UUID) (*model.Document, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByIDForUpdate(ctx context.Context, kind string, id uuid.UUID) (*model.Document, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) List(ctx context.Context, kind string, filter repository.DocumentFilter) ([]model.Document, int64, error) {
	args := m.Called(ctx, kind, filter)
	return args.Get(0).([]model.Document), args.Get(1).(int64), args.Error(2)
}

func (m *MockDocumentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, change repository.StatusChange) error {
	args := m.Called(ctx, id, change)
	return args.Error(0)
}

func (m *MockDocumentRepository) UpdateContent(ctx context.Context, doc *model.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, kind string, id uuid.UUID) error {
	args := m.Called(ctx, kind, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) CountByStatus(ctx context.Context, kind string) (map[string]int64, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) List(ctx context.Context, filter repository.AuditFilter) ([]model.AuditLog, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.AuditLog), args.Get(1).(int64), args.Error(2)
}

type MockTDSSectionRepository struct {
	mock.Mock
}

func (m *MockTDSSectionRepository) Create(ctx context.Context, rule *model.TDSSection) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockTDSSectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTDSSectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TDSSection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TDSSection), args.Error(1)
}

func (m *MockTDSSectionRepository) List(ctx context.Context, section string, offset, limit int) ([]model.TDSSection, int64, error) {
	args := m.Called(ctx, section, offset, limit)
	return args.Get(0).([]model.TDSSection), args.Get(1).(int64), args.Error(2)
}

func (m *MockTDSSectionRepository) FindActive(ctx context.Context, section string, on time.Time) (*model.TDSSection, error) {
	args := m.Called(ctx, section, on)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TDSSection), args.Error(1)
}

func (m *MockTDSSectionRepository) CountOverlapping(ctx context.Context, section string, from time.Time, to *time.Time, excludeID *uuid.UUID) (int64, error) {
	args := m.Called(ctx, section, from, to, excludeID)
	return args.Get(0).(int64), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]model.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockRoleRepository struct {
	mock.Mock
}

func (m *MockRoleRepository) FindOrCreate(ctx context.Context, role *model.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockRoleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Role), args.Error(1)
}

func (m *MockRoleRepository) ListAll(ctx context.Context) ([]model.Role, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Role), args.Error(1)
}

func (m *MockRoleRepository) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Permission), args.Error(1)
}

func (m *MockRoleRepository) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	args := m.Called(ctx, roleName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRoleRepository) FindOrCreatePermission(ctx context.Context, perm *model.Permission) error {
	args := m.Called(ctx, perm)
	return args.Error(0)
}

func (m *MockRoleRepository) ReplacePermissions(ctx context.Context, roleID uuid.UUID, codes []string) error {
	args := m.Called(ctx, roleID, codes)
	return args.Error(0)
}

// inlineTx runs fn directly; commit and rollback are the caller's error.
type inlineTx struct{}

func (inlineTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []workflow.Event
}

func (p *recordingPublisher) Publish(ev workflow.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Events() []workflow.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]workflow.Event(nil), p.events...)
}

type staticRates struct {
	rule *model.TDSSection
	err  error
}

func (s staticRates) ActiveRule(ctx context.Context, section string, on time.Time) (*model.TDSSection, error) {
	return s.rule, s.err
}

type MockVendorRepository struct {
	mock.Mock
}

func (m *MockVendorRepository) Create(ctx context.Context, vendor *model.Vendor) error {
	args := m.Called(ctx, vendor)
	return args.Error(0)
}

func (m *MockVendorRepository) Update(ctx context.Context, vendor *model.Vendor) error {
	args := m.Called(ctx, vendor)
	return args.Error(0)
}

func (m *MockVendorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockVendorRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Vendor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Vendor), args.Error(1)
}

func (m *MockVendorRepository) List(ctx context.Context, filter repository.VendorFilter) ([]model.Vendor, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.Vendor), args.Get(1).(int64), args.Error(2)
}

func (m *MockVendorRepository) DeleteAddressesByVendorID(ctx context.Context, vendorID uuid.UUID) error {
	args := m.Called(ctx, vendorID)
	return args.Error(0)
}

func (m *MockVendorRepository) CreateAddresses(ctx context.Context, addresses []model.VendorAddress) error {
	args := m.Called(ctx, addresses)
	return args.Error(0)
}

type staticVendors struct {
	vendor *VendorResponse
	err    error
}

func (s staticVendors) ActiveVendor(ctx context.Context, id string) (*VendorResponse, error) {
	return s.vendor, s.err
}

type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) LockItem(ctx context.Context, key, description string) (*model.StockItem, error) {
	args := m.Called(ctx, key, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StockItem), args.Error(1)
}

func (m *MockStockRepository) UpdateOnHand(ctx context.Context, id uuid.UUID, onHand decimal.Decimal) error {
	args := m.Called(ctx, id, onHand)
	return args.Error(0)
}

func (m *MockStockRepository) CreateMovement(ctx context.Context, mv *model.StockMovement) error {
	args := m.Called(ctx, mv)
	return args.Error(0)
}

func (m *MockStockRepository) List(ctx context.Context, filter repository.StockFilter) ([]model.StockItem, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.StockItem), args.Get(1).(int64), args.Error(2)
}

func (m *MockStockRepository) MovementsByDocument(ctx context.Context, documentID uuid.UUID) ([]model.StockMovement, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).([]model.StockMovement), args.Error(1)
}

// recordingStock stands in for the stock card inside document transitions.
type recordingStock struct {
	posted []uuid.UUID
	err    error
}

func (s *recordingStock) PostReceipt(ctx context.Context, doc *model.Document) ([]model.StockMovement, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.posted = append(s.posted, doc.ID)
	return []model.StockMovement{{Direction: model.MovementIn}}, nil
}
