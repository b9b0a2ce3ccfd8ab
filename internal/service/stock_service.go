package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type StockItemResponse struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	OnHand      decimal.Decimal `json:"on_hand"`
	UpdatedAt   string          `json:"updated_at"`
}

type StockMovementResponse struct {
	ID          string          `json:"id"`
	StockItemID string          `json:"stock_item_id"`
	Description string          `json:"description"`
	Direction   string          `json:"direction"`
	Quantity    decimal.Decimal `json:"quantity"`
	OnHandAfter decimal.Decimal `json:"on_hand_after"`
	CreatedAt   string          `json:"created_at"`
}

type StockListFilter struct {
	Search string
	Offset int
	Limit  int
}

// StockPoster books a completed goods receipt into the stock card. It runs
// inside the caller's transaction.
type StockPoster interface {
	PostReceipt(ctx context.Context, doc *model.Document) ([]model.StockMovement, error)
}

// --- Interface ---

type StockService interface {
	StockPoster
	ListStock(ctx context.Context, filter StockListFilter) ([]StockItemResponse, int64, error)
	ReceiptMovements(ctx context.Context, documentID string) ([]StockMovementResponse, error)
}

type stockService struct {
	repo repository.StockRepository
}

func NewStockService(repo repository.StockRepository) StockService {
	return &stockService{repo: repo}
}

// --- Implementation ---

func (s *stockService) PostReceipt(ctx context.Context, doc *model.Document) ([]model.StockMovement, error) {
	var p model.GoodsReceiptPayload
	if err := json.Unmarshal(doc.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}

	accepted, names, err := acceptedQuantities(p.Lines)
	if err != nil {
		return nil, err
	}

	// Stable lock order across concurrent receipts.
	keys := make([]string, 0, len(accepted))
	for k := range accepted {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	movements := make([]model.StockMovement, 0, len(keys))
	for _, key := range keys {
		item, err := s.repo.LockItem(ctx, key, names[key])
		if err != nil {
			return nil, fmt.Errorf("failed to lock stock item %q: %w", names[key], err)
		}

		qty := accepted[key]
		after := item.OnHand.Add(qty)
		if err := s.repo.UpdateOnHand(ctx, item.ID, after); err != nil {
			return nil, fmt.Errorf("failed to update stock of %q: %w", names[key], err)
		}

		docID := doc.ID
		m := model.StockMovement{
			StockItemID: item.ID,
			DocumentID:  &docID,
			Direction:   model.MovementIn,
			Quantity:    qty,
			OnHandAfter: after,
		}
		if err := s.repo.CreateMovement(ctx, &m); err != nil {
			return nil, fmt.Errorf("failed to record stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, nil
}

func (s *stockService) ListStock(ctx context.Context, filter StockListFilter) ([]StockItemResponse, int64, error) {
	items, total, err := s.repo.List(ctx, repository.StockFilter{
		Search: filter.Search,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch stock: %w", err)
	}

	res := make([]StockItemResponse, 0, len(items))
	for _, it := range items {
		res = append(res, StockItemResponse{
			ID:          it.ID.String(),
			Description: it.Description,
			OnHand:      it.OnHand,
			UpdatedAt:   it.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return res, total, nil
}

func (s *stockService) ReceiptMovements(ctx context.Context, documentID string) ([]StockMovementResponse, error) {
	id, err := uuid.Parse(documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}

	movements, err := s.repo.MovementsByDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stock movements: %w", err)
	}

	res := make([]StockMovementResponse, 0, len(movements))
	for _, m := range movements {
		r := StockMovementResponse{
			ID:          m.ID.String(),
			StockItemID: m.StockItemID.String(),
			Direction:   m.Direction,
			Quantity:    m.Quantity,
			OnHandAfter: m.OnHandAfter,
			CreatedAt:   m.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if m.StockItem != nil {
			r.Description = m.StockItem.Description
		}
		res = append(res, r)
	}
	return res, nil
}

// --- Helpers ---

// acceptedQuantities sums received minus rejected per item. Lines that
// accept nothing are skipped.
func acceptedQuantities(lines []model.GoodsReceiptLine) (map[string]decimal.Decimal, map[string]string, error) {
	qty := make(map[string]decimal.Decimal)
	names := make(map[string]string)
	for i, l := range lines {
		accepted := l.Received.Sub(l.Rejected)
		if accepted.IsNegative() {
			return nil, nil, fmt.Errorf("%w: line %d rejects more than was received", ErrPayloadInvalid, i+1)
		}
		if accepted.IsZero() {
			continue
		}
		key := stockKey(l.Description)
		if key == "" {
			return nil, nil, fmt.Errorf("%w: line %d has no description", ErrPayloadInvalid, i+1)
		}
		qty[key] = qty[key].Add(accepted)
		if _, ok := names[key]; !ok {
			names[key] = strings.TrimSpace(l.Description)
		}
	}
	return qty, names, nil
}

func stockKey(description string) string {
	return strings.ToLower(strings.Join(strings.Fields(description), " "))
}
