package service

import (
	"context"
	"errors"
	"testing"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateVendorValidation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateVendorRequest
	}{
		{"blank name", CreateVendorRequest{Name: "  "}},
		{"bad pan", CreateVendorRequest{Name: "Acme", PAN: "ABC123"}},
		{"bad gstin", CreateVendorRequest{Name: "Acme", GSTIN: "27AAAPL1234C"}},
		{"gstin for another pan", CreateVendorRequest{Name: "Acme", PAN: "AAAPL1234C", GSTIN: "27BBBPL1234C1Z5"}},
		{"bad email", CreateVendorRequest{Name: "Acme", Email: "not-an-email"}},
		{"bad address type", CreateVendorRequest{Name: "Acme", Addresses: []VendorAddressPayload{{AddressType: "HOME", FullAddress: "x"}}}},
		{"empty address", CreateVendorRequest{Name: "Acme", Addresses: []VendorAddressPayload{{AddressType: model.AddressTypeBilling}}}},
		{"two defaults", CreateVendorRequest{Name: "Acme", Addresses: []VendorAddressPayload{
			{AddressType: model.AddressTypeBilling, FullAddress: "a", IsDefault: true},
			{AddressType: model.AddressTypeRemitTo, FullAddress: "b", IsDefault: true},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockVendorRepository)
			svc := NewVendorService(repo, inlineTx{})

			_, err := svc.CreateVendor(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidVendor)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateVendorNormalizesTaxIDs(t *testing.T) {
	repo := new(MockVendorRepository)
	svc := NewVendorService(repo, inlineTx{})
	ctx := context.Background()

	repo.On("Create", ctx, mock.MatchedBy(func(v *model.Vendor) bool {
		return v.PAN == "AAAPL1234C" && v.GSTIN == "27AAAPL1234C1Z5" && v.IsActive && len(v.Addresses) == 1
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*model.Vendor).ID = uuid.New()
	})

	resp, err := svc.CreateVendor(ctx, CreateVendorRequest{
		Name:  " Acme Supplies ",
		PAN:   "aaapl1234c",
		GSTIN: "27aaapl1234c1z5",
		Addresses: []VendorAddressPayload{
			{AddressType: model.AddressTypeRemitTo, FullAddress: " 12 Dock Road, Mumbai ", IsDefault: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Supplies", resp.Name)
	assert.Equal(t, "12 Dock Road, Mumbai", resp.Addresses[0].FullAddress)
	repo.AssertExpectations(t)
}

func TestUpdateVendorReplacesAddresses(t *testing.T) {
	repo := new(MockVendorRepository)
	svc := NewVendorService(repo, inlineTx{})
	ctx := context.Background()

	id := uuid.New()
	existing := &model.Vendor{ID: id, Name: "Acme", IsActive: true, Addresses: []model.VendorAddress{{AddressType: model.AddressTypeBilling, FullAddress: "old"}}}
	repo.On("FindByID", ctx, id).Return(existing, nil)
	repo.On("Update", ctx, existing).Return(nil)
	repo.On("DeleteAddressesByVendorID", ctx, id).Return(nil)
	repo.On("CreateAddresses", ctx, mock.MatchedBy(func(a []model.VendorAddress) bool {
		return len(a) == 1 && a[0].VendorID == id && a[0].FullAddress == "new"
	})).Return(nil)

	inactive := false
	addrs := []VendorAddressPayload{{AddressType: model.AddressTypeShipFrom, FullAddress: "new"}}
	resp, err := svc.UpdateVendor(ctx, id.String(), UpdateVendorRequest{IsActive: &inactive, Addresses: &addrs})
	require.NoError(t, err)
	assert.False(t, resp.IsActive)
	require.Len(t, resp.Addresses, 1)
	assert.Equal(t, model.AddressTypeShipFrom, resp.Addresses[0].AddressType)
	repo.AssertExpectations(t)
}

func TestUpdateVendorKeepsAddressesWhenOmitted(t *testing.T) {
	repo := new(MockVendorRepository)
	svc := NewVendorService(repo, inlineTx{})
	ctx := context.Background()

	id := uuid.New()
	repo.On("FindByID", ctx, id).Return(&model.Vendor{ID: id, Name: "Acme", IsActive: true}, nil)
	repo.On("Update", ctx, mock.Anything).Return(nil)

	name := "Acme Industrial"
	resp, err := svc.UpdateVendor(ctx, id.String(), UpdateVendorRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, resp.Name)
	repo.AssertNotCalled(t, "DeleteAddressesByVendorID", mock.Anything, mock.Anything)
}

func TestVendorNotFound(t *testing.T) {
	repo := new(MockVendorRepository)
	svc := NewVendorService(repo, inlineTx{})
	ctx := context.Background()

	id := uuid.New()
	repo.On("FindByID", ctx, id).Return(nil, gorm.ErrRecordNotFound)
	repo.On("Delete", ctx, id).Return(gorm.ErrRecordNotFound)

	_, err := svc.GetVendor(ctx, id.String())
	assert.ErrorIs(t, err, ErrVendorNotFound)

	_, err = svc.GetVendor(ctx, "nope")
	assert.ErrorIs(t, err, ErrVendorNotFound)

	assert.ErrorIs(t, svc.DeleteVendor(ctx, id.String()), ErrVendorNotFound)

	_, err = svc.ActiveVendor(ctx, id.String())
	assert.ErrorIs(t, err, ErrPayloadInvalid)
}

func TestActiveVendor(t *testing.T) {
	repo := new(MockVendorRepository)
	svc := NewVendorService(repo, inlineTx{})
	ctx := context.Background()

	active, retired := uuid.New(), uuid.New()
	repo.On("FindByID", ctx, active).Return(&model.Vendor{ID: active, Name: "Acme", IsActive: true}, nil)
	repo.On("FindByID", ctx, retired).Return(&model.Vendor{ID: retired, Name: "Old Co"}, nil)

	v, err := svc.ActiveVendor(ctx, active.String())
	require.NoError(t, err)
	assert.Equal(t, "Acme", v.Name)

	_, err = svc.ActiveVendor(ctx, retired.String())
	assert.ErrorIs(t, err, ErrPayloadInvalid)
}

func TestListVendors(t *testing.T) {
	repo := new(MockVendorRepository)
	svc := NewVendorService(repo, inlineTx{})
	ctx := context.Background()

	repo.On("List", ctx, repository.VendorFilter{Search: "acme", ActiveOnly: true, Offset: 20, Limit: 10}).
		Return([]model.Vendor{{ID: uuid.New(), Name: "Acme"}}, int64(21), nil)

	res, total, err := svc.ListVendors(ctx, VendorListFilter{Search: " acme ", ActiveOnly: true, Offset: 20, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(21), total)
	assert.Len(t, res, 1)

	repo2 := new(MockVendorRepository)
	repo2.On("List", ctx, mock.Anything).Return([]model.Vendor(nil), int64(0), errors.New("boom"))
	_, _, err = NewVendorService(repo2, inlineTx{}).ListVendors(ctx, VendorListFilter{})
	assert.Error(t, err)
}
