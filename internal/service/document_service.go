package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"procurement/internal/metrics"
	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateDocumentRequest struct {
	Title     string          `json:"title" binding:"required"`
	PartyName string          `json:"party_name"`
	Currency  string          `json:"currency" binding:"omitempty,len=3"`
	Payload   json.RawMessage `json:"payload" binding:"required"`
}

// UpdateDocumentRequest replaces the editable content of a document. It is
// only accepted while the current status offers the edit action.
type UpdateDocumentRequest struct {
	Title     string          `json:"title" binding:"required"`
	PartyName string          `json:"party_name"`
	Currency  string          `json:"currency" binding:"omitempty,len=3"`
	Payload   json.RawMessage `json:"payload" binding:"required"`
}

type UpdateStatusRequest struct {
	Status workflow.Status `json:"status" binding:"required"`
}

type DecisionRequest struct {
	Decision workflow.Decision `json:"decision" binding:"required"`
	Reason   string            `json:"reason"`
}

type DocumentListFilter struct {
	Status workflow.Status
	Query  string
	Offset int
	Limit  int
}

// DocumentResponse is the lifecycle entity plus the details only the API carries.
type DocumentResponse struct {
	workflow.Entity
	StatusLabel     string          `json:"status_label"`
	StatusColor     string          `json:"status_color"`
	Payload         json.RawMessage `json:"payload"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatorName     string          `json:"creator_name,omitempty"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	ApproverName    string          `json:"approver_name,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type StatusCount struct {
	Status workflow.Status `json:"status"`
	Label  string          `json:"label"`
	Color  string          `json:"color"`
	Count  int64           `json:"count"`
}

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	UserID      string
	Permissions workflow.PermissionSet
}

// EventPublisher fans committed document changes out to subscribers.
type EventPublisher interface {
	Publish(ev workflow.Event)
}

// --- Interface ---

type DocumentService interface {
	List(ctx context.Context, kind workflow.Kind, filter DocumentListFilter) ([]DocumentResponse, int64, error)
	Get(ctx context.Context, kind workflow.Kind, id string) (*DocumentResponse, error)
	Create(ctx context.Context, kind workflow.Kind, actor Actor, req CreateDocumentRequest) (*DocumentResponse, error)
	Update(ctx context.Context, kind workflow.Kind, id string, actor Actor, req UpdateDocumentRequest) (*DocumentResponse, error)
	UpdateStatus(ctx context.Context, kind workflow.Kind, id string, actor Actor, target workflow.Status) (*DocumentResponse, error)
	Decide(ctx context.Context, kind workflow.Kind, id string, actor Actor, decision workflow.Decision, reason string) (*DocumentResponse, error)
	Delete(ctx context.Context, kind workflow.Kind, id string, actor Actor) error
	AvailableActions(ctx context.Context, kind workflow.Kind, id string, perms workflow.PermissionSet) ([]workflow.StatusAction, error)
	Summary(ctx context.Context, kind workflow.Kind) ([]StatusCount, error)
}

type DocumentServiceConfig struct {
	Registry     *workflow.Registry
	Documents    repository.DocumentRepository
	Audit        repository.AuditRepository
	Tx           repository.TransactionManager
	Validator    PayloadValidator
	Rates        RateLookup
	Vendors      VendorLookup
	Stock        StockPoster
	Events       EventPublisher
	BaseCurrency string
	Logger       *zap.Logger
}

type documentService struct {
	registry     *workflow.Registry
	repo         repository.DocumentRepository
	audit        repository.AuditRepository
	tx           repository.TransactionManager
	validator    PayloadValidator
	rates        RateLookup
	vendors      VendorLookup
	stock        StockPoster
	events       EventPublisher
	baseCurrency string
	log          *zap.Logger
	now          func() time.Time
}

func NewDocumentService(cfg DocumentServiceConfig) DocumentService {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &documentService{
		registry:     cfg.Registry,
		repo:         cfg.Documents,
		audit:        cfg.Audit,
		tx:           cfg.Tx,
		validator:    cfg.Validator,
		rates:        cfg.Rates,
		vendors:      cfg.Vendors,
		stock:        cfg.Stock,
		events:       cfg.Events,
		baseCurrency: cfg.BaseCurrency,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// --- Implementation ---

func (s *documentService) catalog(kind workflow.Kind) (*workflow.Catalog, error) {
	c, ok := s.registry.Catalog(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return c, nil
}

func (s *documentService) List(ctx context.Context, kind workflow.Kind, filter DocumentListFilter) ([]DocumentResponse, int64, error) {
	cat, err := s.catalog(kind)
	if err != nil {
		return nil, 0, err
	}

	docs, total, err := s.repo.List(ctx, string(kind), repository.DocumentFilter{
		Status: string(filter.Status),
		Query:  filter.Query,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", kind.Plural(), err)
	}

	res := make([]DocumentResponse, 0, len(docs))
	for i := range docs {
		res = append(res, toDocumentResponse(cat, &docs[i]))
	}
	return res, total, nil
}

func (s *documentService) Get(ctx context.Context, kind workflow.Kind, id string) (*DocumentResponse, error) {
	cat, err := s.catalog(kind)
	if err != nil {
		return nil, err
	}
	doc, err := s.find(ctx, kind, id, false)
	if err != nil {
		return nil, err
	}
	resp := toDocumentResponse(cat, doc)
	return &resp, nil
}

func (s *documentService) Create(ctx context.Context, kind workflow.Kind, actor Actor, req CreateDocumentRequest) (*DocumentResponse, error) {
	cat, err := s.catalog(kind)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(kind, req.Payload); err != nil {
		return nil, err
	}

	party, err := s.partyName(ctx, kind, req)
	if err != nil {
		return nil, err
	}

	priced, err := s.price(ctx, kind, req.Payload, req.Currency)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := model.Document{
		Kind:         string(kind),
		Number:       documentNumber(kind, now),
		Status:       string(cat.Initial()),
		Title:        req.Title,
		PartyName:    party,
		Amount:       priced.Amount,
		Currency:     priced.Currency,
		Payload:      datatypes.JSON(priced.Payload),
		CreatedBy:    parseUserID(actor.UserID),
		LastModified: now,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, &doc); err != nil {
			return fmt.Errorf("failed to create %s: %w", kind.Label(), err)
		}
		return s.writeAudit(txCtx, actor, model.ActionCreateDocument, &doc, map[string]interface{}{
			"amount":   doc.Amount.String(),
			"currency": doc.Currency,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toDocumentResponse(cat, &doc)
	s.publish(workflow.EventCreated, resp.Entity)
	return &resp, nil
}

func (s *documentService) Update(ctx context.Context, kind workflow.Kind, id string, actor Actor, req UpdateDocumentRequest) (*DocumentResponse, error) {
	cat, err := s.catalog(kind)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(kind, req.Payload); err != nil {
		return nil, err
	}
	party, err := s.partyName(ctx, kind, CreateDocumentRequest(req))
	if err != nil {
		return nil, err
	}
	priced, err := s.price(ctx, kind, req.Payload, req.Currency)
	if err != nil {
		return nil, err
	}

	var doc *model.Document
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.find(txCtx, kind, id, true)
		if err != nil {
			return err
		}
		doc = found
		if _, err := resolveAction(cat, workflow.Status(doc.Status), workflow.ActionEdit, actor.Permissions); err != nil {
			return err
		}

		previous := doc.Amount
		doc.Title = req.Title
		doc.PartyName = party
		doc.Amount = priced.Amount
		doc.Currency = priced.Currency
		doc.Payload = datatypes.JSON(priced.Payload)
		doc.LastModified = s.now()

		if err := s.repo.UpdateContent(txCtx, doc); err != nil {
			return fmt.Errorf("failed to update %s: %w", kind.Label(), err)
		}
		return s.writeAudit(txCtx, actor, model.ActionUpdateDocument, doc, map[string]interface{}{
			"previous_amount": previous.String(),
			"amount":          doc.Amount.String(),
			"currency":        doc.Currency,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toDocumentResponse(cat, doc)
	s.publish(workflow.EventUpdated, resp.Entity)
	return &resp, nil
}

func (s *documentService) UpdateStatus(ctx context.Context, kind workflow.Kind, id string, actor Actor, target workflow.Status) (*DocumentResponse, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	return s.transition(ctx, kind, id, actor, "", func(cat *workflow.Catalog, from workflow.Status) (workflow.StatusAction, error) {
		return resolveTarget(cat, from, target, actor.Permissions)
	})
}

func (s *documentService) Decide(ctx context.Context, kind workflow.Kind, id string, actor Actor, decision workflow.Decision, reason string) (*DocumentResponse, error) {
	if !decision.IsValid() {
		return nil, ErrInvalidDecision
	}
	want := workflow.ActionApprove
	if decision == workflow.DecisionReject {
		want = workflow.ActionReject
	}
	return s.transition(ctx, kind, id, actor, reason, func(cat *workflow.Catalog, from workflow.Status) (workflow.StatusAction, error) {
		return resolveAction(cat, from, want, actor.Permissions)
	})
}

type resolver func(cat *workflow.Catalog, from workflow.Status) (workflow.StatusAction, error)

// transition locks the row, re-checks the status guard inside the transaction
// and writes the change with its audit entry.
func (s *documentService) transition(ctx context.Context, kind workflow.Kind, id string, actor Actor, reason string, resolve resolver) (*DocumentResponse, error) {
	cat, err := s.catalog(kind)
	if err != nil {
		return nil, err
	}

	var doc *model.Document
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.find(txCtx, kind, id, true)
		if err != nil {
			return err
		}
		doc = found

		from := workflow.Status(doc.Status)
		action, err := resolve(cat, from)
		if err != nil {
			return err
		}

		now := s.now()
		change := repository.StatusChange{Status: string(action.Next), LastModified: now}
		auditAction := model.ActionChangeStatus
		switch action.Kind {
		case workflow.ActionApprove:
			change.ApprovedBy = parseUserID(actor.UserID)
			change.ApprovedAt = &now
			auditAction = model.ActionApproveDocument
		case workflow.ActionReject:
			change.RejectionReason = &reason
			auditAction = model.ActionRejectDocument
		}

		var posted []model.StockMovement
		if s.postsStock(kind, action) {
			posted, err = s.stock.PostReceipt(txCtx, doc)
			if err != nil {
				return err
			}
			auditAction = model.ActionPostReceipt
		}

		if err := s.repo.UpdateStatus(txCtx, doc.ID, change); err != nil {
			return fmt.Errorf("failed to update %s status: %w", kind.Label(), err)
		}

		doc.Status = change.Status
		doc.LastModified = now
		if change.ApprovedBy != nil {
			doc.ApprovedBy = change.ApprovedBy
			doc.ApprovedAt = change.ApprovedAt
		}
		if change.RejectionReason != nil {
			doc.RejectionReason = reason
		}

		details := map[string]interface{}{
			"from":   from,
			"to":     action.Next,
			"action": action.Kind.String(),
		}
		if reason != "" {
			details["reason"] = reason
		}
		if posted != nil {
			details["stock_movements"] = len(posted)
		}
		return s.writeAudit(txCtx, actor, auditAction, doc, details)
	})
	if err != nil {
		return nil, err
	}

	resp := toDocumentResponse(cat, doc)
	s.publish(workflow.EventStatusChanged, resp.Entity)
	return &resp, nil
}

func (s *documentService) Delete(ctx context.Context, kind workflow.Kind, id string, actor Actor) error {
	cat, err := s.catalog(kind)
	if err != nil {
		return err
	}

	var doc *model.Document
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.find(txCtx, kind, id, true)
		if err != nil {
			return err
		}
		doc = found
		if _, err := resolveAction(cat, workflow.Status(doc.Status), workflow.ActionDelete, actor.Permissions); err != nil {
			return err
		}
		if err := s.repo.Delete(txCtx, string(kind), doc.ID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", kind.Label(), err)
		}
		return s.writeAudit(txCtx, actor, model.ActionDeleteDocument, doc, map[string]interface{}{"status": doc.Status})
	})
	if err != nil {
		return err
	}

	doc.LastModified = s.now()
	s.publish(workflow.EventDeleted, toEntity(doc))
	return nil
}

func (s *documentService) AvailableActions(ctx context.Context, kind workflow.Kind, id string, perms workflow.PermissionSet) ([]workflow.StatusAction, error) {
	cat, err := s.catalog(kind)
	if err != nil {
		return nil, err
	}
	doc, err := s.find(ctx, kind, id, false)
	if err != nil {
		return nil, err
	}
	return cat.AvailableActions(workflow.Status(doc.Status), perms), nil
}

func (s *documentService) Summary(ctx context.Context, kind workflow.Kind) ([]StatusCount, error) {
	cat, err := s.catalog(kind)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.CountByStatus(ctx, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", kind.Plural(), err)
	}

	out := make([]StatusCount, 0, len(cat.Statuses))
	for _, st := range cat.Statuses {
		d := cat.DisplayFor(st)
		out = append(out, StatusCount{Status: st, Label: d.Label, Color: d.Color, Count: counts[string(st)]})
	}
	return out, nil
}

// --- Helpers ---

// postsStock reports whether action completes a goods receipt, which books
// the accepted quantities in the same transaction.
func (s *documentService) postsStock(kind workflow.Kind, action workflow.StatusAction) bool {
	return s.stock != nil && kind == workflow.KindGoodsReceipt && action.Next == workflow.StatusCompleted
}

// partyName checks that a purchase order names an active vendor and defaults
// the party to the vendor's name.
func (s *documentService) partyName(ctx context.Context, kind workflow.Kind, req CreateDocumentRequest) (string, error) {
	if kind != workflow.KindPurchaseOrder || s.vendors == nil {
		return req.PartyName, nil
	}
	var p model.PurchaseOrderPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}
	vendor, err := s.vendors.ActiveVendor(ctx, p.VendorID)
	if err != nil {
		return "", err
	}
	if req.PartyName != "" {
		return req.PartyName, nil
	}
	return vendor.Name, nil
}

func (s *documentService) find(ctx context.Context, kind workflow.Kind, id string, lock bool) (*model.Document, error) {
	docID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}

	var doc *model.Document
	if lock {
		doc, err = s.repo.FindByIDForUpdate(ctx, string(kind), docID)
	} else {
		doc, err = s.repo.FindByID(ctx, string(kind), docID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", kind.Label(), err)
	}
	return doc, nil
}

func (s *documentService) writeAudit(ctx context.Context, actor Actor, action string, doc *model.Document, details map[string]interface{}) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	entry := model.AuditLog{
		UserID:     parseUserID(actor.UserID),
		Action:     action,
		EntityKind: doc.Kind,
		EntityID:   doc.ID.String(),
		EntityName: doc.Number,
		Details:    datatypes.JSON(raw),
	}
	if err := s.audit.Log(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *documentService) publish(t workflow.EventType, e workflow.Entity) {
	switch t {
	case workflow.EventCreated:
		metrics.DocumentsCreated.WithLabelValues(string(e.Kind)).Inc()
	case workflow.EventStatusChanged:
		metrics.DocumentTransitions.WithLabelValues(string(e.Kind), string(e.Status)).Inc()
	}

	if s.events == nil {
		return
	}
	s.events.Publish(workflow.Event{Type: t, Entity: e})
	s.log.Debug("document event published", zap.String("type", string(t)), zap.String("id", e.ID))
}

// resolveTarget finds an action leading from -> target that perms allow.
// A transition that exists but is not permitted is reported as forbidden.
func resolveTarget(cat *workflow.Catalog, from, target workflow.Status, perms workflow.PermissionSet) (workflow.StatusAction, error) {
	for _, a := range cat.AvailableActions(from, perms) {
		if a.Transitions() && a.Next == target {
			return a, nil
		}
	}
	if _, ok := cat.Transition(from, target); ok {
		return workflow.StatusAction{}, fmt.Errorf("%w: %s -> %s", ErrForbidden, from, target)
	}
	return workflow.StatusAction{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
}

func resolveAction(cat *workflow.Catalog, from workflow.Status, kind workflow.ActionKind, perms workflow.PermissionSet) (workflow.StatusAction, error) {
	a, ok := cat.Find(from, kind)
	if !ok {
		return workflow.StatusAction{}, fmt.Errorf("%w: %s is not offered in %s", ErrInvalidTransition, kind, from)
	}
	if !a.Permitted(perms) {
		return workflow.StatusAction{}, fmt.Errorf("%w: %s", ErrForbidden, kind)
	}
	return a, nil
}

// documentNumber is PREFIX-YYYYMMDD-ULID, sortable by creation time.
func documentNumber(kind workflow.Kind, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", kind.NumberPrefix(), now.Format("20060102"), ulid.Make().String())
}

func parseUserID(id string) *uuid.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	return &parsed
}

func toEntity(d *model.Document) workflow.Entity {
	return workflow.Entity{
		ID:           d.ID.String(),
		Kind:         workflow.Kind(d.Kind),
		Number:       d.Number,
		Title:        d.Title,
		PartyName:    d.PartyName,
		Status:       workflow.Status(d.Status),
		Amount:       d.Amount,
		Currency:     d.Currency,
		LastModified: d.LastModified,
	}
}

func toDocumentResponse(cat *workflow.Catalog, d *model.Document) DocumentResponse {
	display := cat.DisplayFor(workflow.Status(d.Status))
	resp := DocumentResponse{
		Entity:          toEntity(d),
		StatusLabel:     display.Label,
		StatusColor:     display.Color,
		Payload:         json.RawMessage(d.Payload),
		ApprovedAt:      d.ApprovedAt,
		RejectionReason: d.RejectionReason,
		CreatedAt:       d.CreatedAt,
	}
	if d.CreatedBy != nil {
		resp.CreatedBy = d.CreatedBy.String()
	}
	if d.Creator != nil {
		resp.CreatorName = d.Creator.Username
	}
	if d.ApprovedBy != nil {
		resp.ApprovedBy = d.ApprovedBy.String()
	}
	if d.Approver != nil {
		resp.ApproverName = d.Approver.Username
	}
	return resp
}
