package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	panPattern   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
)

// --- DTOs ---

type VendorAddressPayload struct {
	AddressType string `json:"address_type"`
	FullAddress string `json:"full_address"`
	IsDefault   bool   `json:"is_default"`
}

type VendorAddressResponse struct {
	ID          uuid.UUID `json:"id"`
	AddressType string    `json:"address_type"`
	FullAddress string    `json:"full_address"`
	IsDefault   bool      `json:"is_default"`
}

type CreateVendorRequest struct {
	Name          string                 `json:"name" binding:"required"`
	PAN           string                 `json:"pan"`
	GSTIN         string                 `json:"gstin"`
	BankAccount   string                 `json:"bank_account"`
	ContactPerson string                 `json:"contact_person"`
	Phone         string                 `json:"phone"`
	Email         string                 `json:"email"`
	Addresses     []VendorAddressPayload `json:"addresses"`
}

type UpdateVendorRequest struct {
	Name          *string                 `json:"name"`
	PAN           *string                 `json:"pan"`
	GSTIN         *string                 `json:"gstin"`
	BankAccount   *string                 `json:"bank_account"`
	ContactPerson *string                 `json:"contact_person"`
	Phone         *string                 `json:"phone"`
	Email         *string                 `json:"email"`
	IsActive      *bool                   `json:"is_active"`
	Addresses     *[]VendorAddressPayload `json:"addresses"` // nil = keep, [] = clear
}

type VendorResponse struct {
	ID            uuid.UUID               `json:"id"`
	Name          string                  `json:"name"`
	PAN           string                  `json:"pan"`
	GSTIN         string                  `json:"gstin"`
	BankAccount   string                  `json:"bank_account"`
	ContactPerson string                  `json:"contact_person"`
	Phone         string                  `json:"phone"`
	Email         string                  `json:"email"`
	IsActive      bool                    `json:"is_active"`
	Addresses     []VendorAddressResponse `json:"addresses"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

type VendorListFilter struct {
	Search     string
	ActiveOnly bool
	Offset     int
	Limit      int
}

// --- Interface ---

// VendorLookup resolves the vendor a purchase order is raised against.
type VendorLookup interface {
	ActiveVendor(ctx context.Context, id string) (*VendorResponse, error)
}

type VendorService interface {
	VendorLookup
	CreateVendor(ctx context.Context, req CreateVendorRequest) (*VendorResponse, error)
	UpdateVendor(ctx context.Context, id string, req UpdateVendorRequest) (*VendorResponse, error)
	DeleteVendor(ctx context.Context, id string) error
	GetVendor(ctx context.Context, id string) (*VendorResponse, error)
	ListVendors(ctx context.Context, filter VendorListFilter) ([]VendorResponse, int64, error)
}

type vendorService struct {
	repo repository.VendorRepository
	tx   repository.TransactionManager
}

func NewVendorService(repo repository.VendorRepository, tx repository.TransactionManager) VendorService {
	return &vendorService{repo: repo, tx: tx}
}

// --- Validation ---

var validAddressTypes = map[string]bool{
	model.AddressTypeBilling:  true,
	model.AddressTypeRemitTo:  true,
	model.AddressTypeShipFrom: true,
}

func validateAddresses(addresses []VendorAddressPayload) error {
	defaults := 0
	for i, addr := range addresses {
		if !validAddressTypes[addr.AddressType] {
			return fmt.Errorf("%w: addresses[%d].address_type must be one of BILLING, REMIT_TO, SHIP_FROM", ErrInvalidVendor, i)
		}
		if strings.TrimSpace(addr.FullAddress) == "" {
			return fmt.Errorf("%w: addresses[%d].full_address is required", ErrInvalidVendor, i)
		}
		if addr.IsDefault {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("%w: only one address can be the default", ErrInvalidVendor)
	}
	return nil
}

func validateTaxIDs(pan, gstin string) error {
	if pan != "" && !panPattern.MatchString(pan) {
		return fmt.Errorf("%w: pan %q is not a valid PAN", ErrInvalidVendor, pan)
	}
	if gstin != "" {
		if !gstinPattern.MatchString(gstin) {
			return fmt.Errorf("%w: gstin %q is not a valid GSTIN", ErrInvalidVendor, gstin)
		}
		// characters 3-12 of a GSTIN are the holder's PAN
		if pan != "" && gstin[2:12] != pan {
			return fmt.Errorf("%w: gstin does not embed pan %s", ErrInvalidVendor, pan)
		}
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email format", ErrInvalidVendor)
	}
	return nil
}

func toAddressModels(vendorID uuid.UUID, payloads []VendorAddressPayload) []model.VendorAddress {
	addresses := make([]model.VendorAddress, 0, len(payloads))
	for _, p := range payloads {
		addresses = append(addresses, model.VendorAddress{
			VendorID:    vendorID,
			AddressType: p.AddressType,
			FullAddress: strings.TrimSpace(p.FullAddress),
			IsDefault:   p.IsDefault,
		})
	}
	return addresses
}

// --- CRUD ---

func (s *vendorService) CreateVendor(ctx context.Context, req CreateVendorRequest) (*VendorResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidVendor)
	}
	pan, gstin := strings.ToUpper(req.PAN), strings.ToUpper(req.GSTIN)
	if err := validateTaxIDs(pan, gstin); err != nil {
		return nil, err
	}
	if err := validateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := validateAddresses(req.Addresses); err != nil {
		return nil, err
	}

	vendor := &model.Vendor{
		Name:          name,
		PAN:           pan,
		GSTIN:         gstin,
		BankAccount:   req.BankAccount,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		IsActive:      true,
		Addresses:     toAddressModels(uuid.Nil, req.Addresses), // filled in by the association create
	}
	if err := s.repo.Create(ctx, vendor); err != nil {
		return nil, fmt.Errorf("failed to create vendor: %w", err)
	}

	resp := toVendorResponse(*vendor)
	return &resp, nil
}

func (s *vendorService) UpdateVendor(ctx context.Context, id string, req UpdateVendorRequest) (*VendorResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVendorNotFound, id)
	}

	var vendor *model.Vendor
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.find(txCtx, uid)
		if err != nil {
			return err
		}
		vendor = found

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return fmt.Errorf("%w: name cannot be empty", ErrInvalidVendor)
			}
			vendor.Name = name
		}
		if req.PAN != nil {
			vendor.PAN = strings.ToUpper(*req.PAN)
		}
		if req.GSTIN != nil {
			vendor.GSTIN = strings.ToUpper(*req.GSTIN)
		}
		if err := validateTaxIDs(vendor.PAN, vendor.GSTIN); err != nil {
			return err
		}
		if req.Email != nil {
			if err := validateEmail(*req.Email); err != nil {
				return err
			}
			vendor.Email = *req.Email
		}
		if req.BankAccount != nil {
			vendor.BankAccount = *req.BankAccount
		}
		if req.ContactPerson != nil {
			vendor.ContactPerson = *req.ContactPerson
		}
		if req.Phone != nil {
			vendor.Phone = *req.Phone
		}
		if req.IsActive != nil {
			vendor.IsActive = *req.IsActive
		}
		if req.Addresses != nil {
			if err := validateAddresses(*req.Addresses); err != nil {
				return err
			}
		}

		if err := s.repo.Update(txCtx, vendor); err != nil {
			return fmt.Errorf("failed to update vendor: %w", err)
		}

		// addresses are replaced wholesale
		if req.Addresses != nil {
			if err := s.repo.DeleteAddressesByVendorID(txCtx, uid); err != nil {
				return fmt.Errorf("failed to delete old addresses: %w", err)
			}
			addrs := toAddressModels(uid, *req.Addresses)
			if err := s.repo.CreateAddresses(txCtx, addrs); err != nil {
				return fmt.Errorf("failed to create addresses: %w", err)
			}
			vendor.Addresses = addrs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toVendorResponse(*vendor)
	return &resp, nil
}

func (s *vendorService) DeleteVendor(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrVendorNotFound, id)
	}
	if err := s.repo.Delete(ctx, uid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrVendorNotFound, id)
		}
		return fmt.Errorf("failed to delete vendor: %w", err)
	}
	return nil
}

func (s *vendorService) GetVendor(ctx context.Context, id string) (*VendorResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVendorNotFound, id)
	}
	vendor, err := s.find(ctx, uid)
	if err != nil {
		return nil, err
	}
	resp := toVendorResponse(*vendor)
	return &resp, nil
}

// ActiveVendor is GetVendor restricted to vendors that can still be ordered from.
// Unknown and deactivated vendors are both reported as invalid payload input.
func (s *vendorService) ActiveVendor(ctx context.Context, id string) (*VendorResponse, error) {
	resp, err := s.GetVendor(ctx, id)
	if err != nil {
		if errors.Is(err, ErrVendorNotFound) {
			return nil, fmt.Errorf("%w: vendor %s does not exist", ErrPayloadInvalid, id)
		}
		return nil, err
	}
	if !resp.IsActive {
		return nil, fmt.Errorf("%w: vendor %s is inactive", ErrPayloadInvalid, resp.Name)
	}
	return resp, nil
}

func (s *vendorService) ListVendors(ctx context.Context, filter VendorListFilter) ([]VendorResponse, int64, error) {
	vendors, total, err := s.repo.List(ctx, repository.VendorFilter{
		Search:     strings.TrimSpace(filter.Search),
		ActiveOnly: filter.ActiveOnly,
		Offset:     filter.Offset,
		Limit:      filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch vendors: %w", err)
	}

	res := make([]VendorResponse, 0, len(vendors))
	for _, v := range vendors {
		res = append(res, toVendorResponse(v))
	}
	return res, total, nil
}

func (s *vendorService) find(ctx context.Context, id uuid.UUID) (*model.Vendor, error) {
	vendor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVendorNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch vendor: %w", err)
	}
	return vendor, nil
}

// --- Mappers ---

func toVendorResponse(v model.Vendor) VendorResponse {
	addresses := make([]VendorAddressResponse, 0, len(v.Addresses))
	for _, a := range v.Addresses {
		addresses = append(addresses, VendorAddressResponse{
			ID:          a.ID,
			AddressType: a.AddressType,
			FullAddress: a.FullAddress,
			IsDefault:   a.IsDefault,
		})
	}

	return VendorResponse{
		ID:            v.ID,
		Name:          v.Name,
		PAN:           v.PAN,
		GSTIN:         v.GSTIN,
		BankAccount:   v.BankAccount,
		ContactPerson: v.ContactPerson,
		Phone:         v.Phone,
		Email:         v.Email,
		IsActive:      v.IsActive,
		Addresses:     addresses,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}
