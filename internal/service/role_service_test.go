package service

import (
	"context"
	"testing"

	"procurement/internal/model"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDefaultRolesUseKnownPermissions(t *testing.T) {
	known := make(map[string]bool)
	for _, p := range DefaultPermissions() {
		assert.False(t, known[p.Code], "duplicate permission %s", p.Code)
		known[p.Code] = true
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Group)
	}

	for _, role := range DefaultRoles() {
		for _, code := range role.Permissions {
			assert.True(t, known[code], "role %s has unknown permission %s", role.Name, code)
		}
	}
}

func TestDefaultRoleSeparation(t *testing.T) {
	roles := make(map[string]workflow.PermissionSet)
	for _, r := range DefaultRoles() {
		roles[r.Name] = workflow.NewPermissionSet(r.Permissions...)
	}

	approvePO := workflow.Permission(workflow.KindPurchaseOrder, workflow.VerbApprove)
	createPO := workflow.Permission(workflow.KindPurchaseOrder, workflow.VerbCreate)
	payBill := workflow.Permission(workflow.KindPurchaseBill, workflow.VerbPay)

	assert.Len(t, roles["admin"], len(DefaultPermissions()))
	assert.True(t, roles["approver"].Has(approvePO))
	assert.False(t, roles["approver"].Has(createPO))
	assert.True(t, roles["requester"].Has(createPO))
	assert.False(t, roles["requester"].Has(approvePO))
	assert.True(t, roles["accountant"].Has(payBill))
	assert.False(t, roles["accountant"].Has(approvePO))
	assert.True(t, roles["accountant"].Has(workflow.Permission(workflow.KindTDSDeduction, workflow.VerbFile)))
}

func TestSeedDefaultRolesAndPermissions(t *testing.T) {
	repo := new(MockRoleRepository)
	svc := NewRoleService(repo, inlineTx{})
	ctx := context.Background()

	repo.On("FindOrCreatePermission", ctx, mock.AnythingOfType("*model.Permission")).Return(nil)
	repo.On("FindOrCreate", ctx, mock.AnythingOfType("*model.Role")).Return(nil).Run(func(args mock.Arguments) {
		role := args.Get(1).(*model.Role)
		assert.True(t, role.IsSystem)
		role.ID = uuid.New()
	})
	repo.On("ReplacePermissions", ctx, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, svc.SeedDefaultRolesAndPermissions(ctx))

	repo.AssertNumberOfCalls(t, "FindOrCreatePermission", len(DefaultPermissions()))
	repo.AssertNumberOfCalls(t, "FindOrCreate", len(DefaultRoles()))
	repo.AssertNumberOfCalls(t, "ReplacePermissions", len(DefaultRoles()))
}

func TestUpdateRolePermissions(t *testing.T) {
	repo := new(MockRoleRepository)
	svc := NewRoleService(repo, inlineTx{})
	ctx := context.Background()

	_, err := svc.UpdateRolePermissions(ctx, "approver", UpdateRolePermissionsRequest{Permissions: []string{"launch_rockets"}})
	assert.ErrorIs(t, err, ErrInvalidRole)

	repo.On("FindByName", ctx, "ghost").Return(nil, gorm.ErrRecordNotFound)
	_, err = svc.UpdateRolePermissions(ctx, "ghost", UpdateRolePermissionsRequest{Permissions: []string{PermViewAuditLogs}})
	assert.ErrorIs(t, err, ErrInvalidRole)

	role := &model.Role{ID: uuid.New(), Name: "approver", Permissions: []model.Permission{{Code: PermViewAuditLogs}}}
	repo.On("FindByName", ctx, "approver").Return(role, nil)
	repo.On("ReplacePermissions", ctx, role.ID, []string{PermViewAuditLogs}).Return(nil)

	resp, err := svc.UpdateRolePermissions(ctx, "approver", UpdateRolePermissionsRequest{Permissions: []string{PermViewAuditLogs}})
	require.NoError(t, err)
	require.Len(t, resp.Permissions, 1)
	assert.Equal(t, PermViewAuditLogs, resp.Permissions[0].Code)
}
