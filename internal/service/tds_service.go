package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateTDSSectionRequest struct {
	Section       string `json:"section" binding:"required"`
	Rate          string `json:"rate" binding:"required"`           // decimal string, "0.02"
	Threshold     string `json:"threshold"`                         // decimal string, optional
	EffectiveFrom string `json:"effective_from" binding:"required"` // YYYY-MM-DD
	EffectiveTo   string `json:"effective_to"`                      // YYYY-MM-DD, empty = open ended
	Description   string `json:"description"`
}

type TDSSectionResponse struct {
	ID            string  `json:"id"`
	Section       string  `json:"section"`
	Rate          string  `json:"rate"`
	Threshold     string  `json:"threshold"`
	EffectiveFrom string  `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to"`
	Description   string  `json:"description"`
	CreatedAt     string  `json:"created_at"`
}

// --- Interface ---

type TDSService interface {
	RateLookup
	ListSections(ctx context.Context, section string, offset, limit int) ([]TDSSectionResponse, int64, error)
	CreateSection(ctx context.Context, req CreateTDSSectionRequest, userID string) (*TDSSectionResponse, error)
	DeleteSection(ctx context.Context, id string, userID string) error
}

type tdsService struct {
	repo  repository.TDSSectionRepository
	audit repository.AuditRepository
	tx    repository.TransactionManager
}

func NewTDSService(repo repository.TDSSectionRepository, audit repository.AuditRepository, tx repository.TransactionManager) TDSService {
	return &tdsService{repo: repo, audit: audit, tx: tx}
}

// --- Implementation ---

func (s *tdsService) ListSections(ctx context.Context, section string, offset, limit int) ([]TDSSectionResponse, int64, error) {
	rules, total, err := s.repo.List(ctx, strings.ToUpper(section), offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch tds sections: %w", err)
	}

	res := make([]TDSSectionResponse, 0, len(rules))
	for _, r := range rules {
		res = append(res, toTDSSectionResponse(r))
	}
	return res, total, nil
}

func (s *tdsService) CreateSection(ctx context.Context, req CreateTDSSectionRequest, userID string) (*TDSSectionResponse, error) {
	rule, err := parseTDSSection(req)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		overlapping, err := s.repo.CountOverlapping(txCtx, rule.Section, rule.EffectiveFrom, rule.EffectiveTo, nil)
		if err != nil {
			return fmt.Errorf("failed to check overlap: %w", err)
		}
		if overlapping > 0 {
			return fmt.Errorf("%w: %s", ErrTDSOverlap, rule.Section)
		}

		if err := s.repo.Create(txCtx, &rule); err != nil {
			return fmt.Errorf("failed to create tds section: %w", err)
		}
		return s.writeAuditLog(txCtx, userID, model.ActionCreateTDSSection, &rule, req)
	})
	if err != nil {
		return nil, err
	}

	resp := toTDSSectionResponse(rule)
	return &resp, nil
}

func (s *tdsService) DeleteSection(ctx context.Context, id string, userID string) error {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTDSSectionNotFound, id)
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		rule, err := s.repo.FindByID(txCtx, ruleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrTDSSectionNotFound, id)
			}
			return fmt.Errorf("failed to fetch tds section: %w", err)
		}

		if err := s.repo.Delete(txCtx, ruleID); err != nil {
			return fmt.Errorf("failed to delete tds section: %w", err)
		}
		return s.writeAuditLog(txCtx, userID, model.ActionDeleteTDSSection, rule, map[string]string{"deleted_id": id})
	})
}

// ActiveRule returns the rule in force for section on the given date.
func (s *tdsService) ActiveRule(ctx context.Context, section string, on time.Time) (*model.TDSSection, error) {
	rule, err := s.repo.FindActive(ctx, strings.ToUpper(section), on)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w %s on %s", ErrNoActiveTDSRule, section, on.Format(dateLayout))
		}
		return nil, fmt.Errorf("failed to query tds rule: %w", err)
	}
	return rule, nil
}

// --- Helpers ---

func parseTDSSection(req CreateTDSSectionRequest) (model.TDSSection, error) {
	rule := model.TDSSection{
		Section:     strings.ToUpper(strings.TrimSpace(req.Section)),
		Description: req.Description,
		Threshold:   decimal.Zero,
	}
	if rule.Section == "" {
		return rule, fmt.Errorf("%w: section is required", ErrInvalidTDSRule)
	}

	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		return rule, fmt.Errorf("%w: invalid rate value: %v", ErrInvalidTDSRule, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return rule, fmt.Errorf("%w: rate must be between 0 and 1", ErrInvalidTDSRule)
	}
	rule.Rate = rate

	if req.Threshold != "" {
		threshold, err := decimal.NewFromString(req.Threshold)
		if err != nil || threshold.IsNegative() {
			return rule, fmt.Errorf("%w: invalid threshold %q", ErrInvalidTDSRule, req.Threshold)
		}
		rule.Threshold = threshold
	}

	rule.EffectiveFrom, err = time.Parse(dateLayout, req.EffectiveFrom)
	if err != nil {
		return rule, fmt.Errorf("%w: invalid effective_from date format (expected YYYY-MM-DD)", ErrInvalidTDSRule)
	}

	if req.EffectiveTo != "" {
		to, err := time.Parse(dateLayout, req.EffectiveTo)
		if err != nil {
			return rule, fmt.Errorf("%w: invalid effective_to date format (expected YYYY-MM-DD)", ErrInvalidTDSRule)
		}
		if to.Before(rule.EffectiveFrom) {
			return rule, fmt.Errorf("%w: effective_to is before effective_from", ErrInvalidTDSRule)
		}
		rule.EffectiveTo = &to
	}

	return rule, nil
}

func toTDSSectionResponse(r model.TDSSection) TDSSectionResponse {
	resp := TDSSectionResponse{
		ID:            r.ID.String(),
		Section:       r.Section,
		Rate:          r.Rate.StringFixed(4),
		Threshold:     r.Threshold.StringFixed(2),
		EffectiveFrom: r.EffectiveFrom.Format(dateLayout),
		Description:   r.Description,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
	if r.EffectiveTo != nil {
		s := r.EffectiveTo.Format(dateLayout)
		resp.EffectiveTo = &s
	}
	return resp
}

func (s *tdsService) writeAuditLog(ctx context.Context, userID, action string, rule *model.TDSSection, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	entry := model.AuditLog{
		UserID:     parseUserID(userID),
		Action:     action,
		EntityKind: "tds_section",
		EntityID:   rule.ID.String(),
		EntityName: rule.Section + " " + rule.Rate.StringFixed(4),
		Details:    datatypes.JSON(detailsJSON),
	}
	if err := s.audit.Log(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
