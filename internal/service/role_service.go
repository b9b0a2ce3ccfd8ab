package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/workflow"

	"gorm.io/gorm"
)

// Permission codes outside the document workflow.
const (
	PermViewUsers         = "view_users"
	PermManageUsers       = "manage_users"
	PermManageRoles       = "manage_roles"
	PermViewAuditLogs     = "view_audit_logs"
	PermViewTDSSections   = "view_tds_sections"
	PermManageTDSSections = "manage_tds_sections"
	PermViewVendors       = "view_vendors"
	PermManageVendors     = "manage_vendors"
	PermViewStock         = "view_stock"
)

var adminPermissions = []model.Permission{
	{Code: PermViewUsers, Name: "View users", Group: "users"},
	{Code: PermManageUsers, Name: "Manage users", Group: "users"},
	{Code: PermManageRoles, Name: "Manage roles and permissions", Group: "roles"},
	{Code: PermViewAuditLogs, Name: "View audit logs", Group: "audit_logs"},
	{Code: PermViewTDSSections, Name: "View TDS sections", Group: "tds_sections"},
	{Code: PermManageTDSSections, Name: "Manage TDS sections", Group: "tds_sections"},
	{Code: PermViewVendors, Name: "View vendors", Group: "vendors"},
	{Code: PermManageVendors, Name: "Manage vendors", Group: "vendors"},
	{Code: PermViewStock, Name: "View stock on hand", Group: "stock"},
}

// --- DTOs ---

type UpdateRolePermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required"` // permission codes
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	UpdateRolePermissions(ctx context.Context, roleName string, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	repo repository.RoleRepository
	tx   repository.TransactionManager
}

func NewRoleService(repo repository.RoleRepository, tx repository.TransactionManager) RoleService {
	return &roleService{repo: repo, tx: tx}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

func (s *roleService) UpdateRolePermissions(ctx context.Context, roleName string, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	known := make(map[string]bool)
	for _, p := range DefaultPermissions() {
		known[p.Code] = true
	}
	for _, code := range req.Permissions {
		if !known[code] {
			return nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidRole, code)
		}
	}

	var updated *model.Role
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.repo.FindByName(txCtx, roleName)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrInvalidRole, roleName)
			}
			return fmt.Errorf("failed to fetch role: %w", err)
		}
		if err := s.repo.ReplacePermissions(txCtx, role.ID, req.Permissions); err != nil {
			return fmt.Errorf("failed to update permissions: %w", err)
		}
		updated, err = s.repo.FindByName(txCtx, roleName)
		return err
	})
	if err != nil {
		return nil, err
	}

	resp := toRoleResponse(*updated)
	return &resp, nil
}

func (s *roleService) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	codes, err := s.repo.GetPermissionsByRoleName(ctx, roleName)
	if err != nil {
		return nil, fmt.Errorf("role '%s' not found: %w", roleName, err)
	}
	sort.Strings(codes)
	return codes, nil
}

// SeedDefaultRolesAndPermissions upserts every permission code and the system
// roles. Permissions of existing system roles are reset to the defaults.
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		for _, p := range DefaultPermissions() {
			perm := p
			if err := s.repo.FindOrCreatePermission(txCtx, &perm); err != nil {
				return fmt.Errorf("failed to seed permission '%s': %w", p.Code, err)
			}
		}

		for _, def := range DefaultRoles() {
			role := model.Role{Name: def.Name, Description: def.Description, IsSystem: true}
			if err := s.repo.FindOrCreate(txCtx, &role); err != nil {
				return fmt.Errorf("failed to seed role '%s': %w", def.Name, err)
			}
			if err := s.repo.ReplacePermissions(txCtx, role.ID, def.Permissions); err != nil {
				return fmt.Errorf("failed to assign permissions to role '%s': %w", def.Name, err)
			}
		}
		return nil
	})
}

// --- Defaults ---

// RoleDefinition is a system role and the permission codes it is seeded with.
type RoleDefinition struct {
	Name        string
	Description string
	Permissions []string
}

// DefaultPermissions lists every permission the server knows about.
func DefaultPermissions() []model.Permission {
	var out []model.Permission
	for _, k := range workflow.AllKinds() {
		for _, code := range workflow.KindPermissions(k) {
			verb, _, _ := strings.Cut(code, "_")
			out = append(out, model.Permission{
				Code:  code,
				Name:  strings.ToUpper(verb[:1]) + verb[1:] + " " + strings.ReplaceAll(k.Plural(), "_", " "),
				Group: k.Resource(),
			})
		}
	}
	return append(out, adminPermissions...)
}

func DefaultRoles() []RoleDefinition {
	var all []string
	for _, p := range DefaultPermissions() {
		all = append(all, p.Code)
	}

	valid := workflow.NewPermissionSet(workflow.AllPermissions()...)
	verbs := func(kinds []workflow.Kind, vs ...workflow.Verb) []string {
		var out []string
		for _, k := range kinds {
			for _, v := range vs {
				if code := workflow.Permission(k, v); valid.Has(code) {
					out = append(out, code)
				}
			}
		}
		return out
	}

	approver := verbs(workflow.AllKinds(), workflow.VerbView, workflow.VerbApprove, workflow.VerbCancel)
	approver = append(approver, PermViewAuditLogs, PermViewTDSSections, PermViewVendors, PermViewStock)

	ledger := []workflow.Kind{workflow.KindPurchaseBill, workflow.KindExpense, workflow.KindTDSDeduction}
	accountant := verbs(workflow.AllKinds(), workflow.VerbView)
	accountant = append(accountant, verbs(ledger, workflow.VerbCreate, workflow.VerbEdit, workflow.VerbDelete, workflow.VerbPay, workflow.VerbFile)...)
	accountant = append(accountant, PermViewTDSSections, PermManageTDSSections, PermViewVendors, PermManageVendors, PermViewStock)

	buying := []workflow.Kind{workflow.KindPurchaseOrder, workflow.KindGoodsReceipt, workflow.KindExpense}
	requester := verbs(buying, workflow.VerbView, workflow.VerbCreate, workflow.VerbEdit, workflow.VerbDelete, workflow.VerbReceive)
	requester = append(requester, PermViewVendors, PermViewStock)

	return []RoleDefinition{
		{Name: "admin", Description: "Full access", Permissions: all},
		{Name: "approver", Description: "Approves or rejects documents awaiting approval", Permissions: approver},
		{Name: "accountant", Description: "Books bills, expenses and TDS, records payments", Permissions: accountant},
		{Name: "requester", Description: "Raises purchase orders, goods receipts and expense claims", Permissions: requester},
	}
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID.String(),
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}
