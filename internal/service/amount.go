package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"procurement/internal/model"
	"procurement/internal/workflow"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// RateLookup resolves the TDS rule in force for a section on a date.
type RateLookup interface {
	ActiveRule(ctx context.Context, section string, on time.Time) (*model.TDSSection, error)
}

// pricedPayload is a validated payload together with its derived amount.
// Payload may differ from the input when derivation fills fields in.
type pricedPayload struct {
	Amount   decimal.Decimal
	Currency string
	Payload  []byte
}

func purchaseOrderTotal(p model.PurchaseOrderPayload) decimal.Decimal {
	total := decimal.Zero
	one := decimal.NewFromInt(1)
	for _, l := range p.Lines {
		total = total.Add(l.Quantity.Mul(l.UnitPrice).Mul(one.Add(l.TaxRate)))
	}
	return total.Round(2)
}

func purchaseBillTotal(p model.PurchaseBillPayload) decimal.Decimal {
	return p.Subtotal.Add(p.Tax).Round(2)
}

func checkGoodsReceipt(p model.GoodsReceiptPayload) error {
	for i, l := range p.Lines {
		if l.Received.IsNegative() || l.Rejected.IsNegative() {
			return fmt.Errorf("%w: line %d has negative quantities", ErrPayloadInvalid, i+1)
		}
		if l.Received.Add(l.Rejected).GreaterThan(l.Ordered) {
			return fmt.Errorf("%w: line %d receives more than was ordered", ErrPayloadInvalid, i+1)
		}
	}
	return nil
}

// expenseTotal converts the claim into base currency. A claim already in base
// currency needs no exchange rate.
func expenseTotal(p model.ExpensePayload, base string) (decimal.Decimal, error) {
	rate := p.ExchangeRate
	if strings.EqualFold(p.OriginalCurrency, base) && rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: exchange_rate is required for %s claims", ErrPayloadInvalid, p.OriginalCurrency)
	}
	return p.OriginalAmount.Mul(rate).Round(2), nil
}

// tdsAmount applies rule to base. Payments under the rule's threshold carry no deduction.
func tdsAmount(base decimal.Decimal, rule *model.TDSSection) decimal.Decimal {
	if base.LessThan(rule.Threshold) {
		return decimal.Zero
	}
	return base.Mul(rule.Rate).Round(2)
}

func (s *documentService) price(ctx context.Context, kind workflow.Kind, raw []byte, currency string) (pricedPayload, error) {
	out := pricedPayload{Currency: currency, Payload: raw}
	if out.Currency == "" {
		out.Currency = s.baseCurrency
	}

	switch kind {
	case workflow.KindPurchaseOrder:
		var p model.PurchaseOrderPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return out, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
		}
		out.Amount = purchaseOrderTotal(p)

	case workflow.KindPurchaseBill:
		var p model.PurchaseBillPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return out, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
		}
		out.Amount = purchaseBillTotal(p)

	case workflow.KindGoodsReceipt:
		var p model.GoodsReceiptPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return out, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
		}
		if err := checkGoodsReceipt(p); err != nil {
			return out, err
		}
		out.Amount = decimal.Zero

	case workflow.KindExpense:
		var p model.ExpensePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return out, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
		}
		amount, err := expenseTotal(p, s.baseCurrency)
		if err != nil {
			return out, err
		}
		out.Amount = amount
		out.Currency = s.baseCurrency

	case workflow.KindTDSDeduction:
		var p model.TDSPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return out, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
		}
		paidOn, err := time.Parse(dateLayout, p.PaymentDate)
		if err != nil {
			return out, fmt.Errorf("%w: payment_date: %v", ErrPayloadInvalid, err)
		}
		rule, err := s.rates.ActiveRule(ctx, p.Section, paidOn)
		if err != nil {
			return out, err
		}
		p.Rate = rule.Rate
		p.RuleID = rule.ID.String()
		if out.Payload, err = json.Marshal(p); err != nil {
			return out, fmt.Errorf("failed to encode tds payload: %w", err)
		}
		out.Amount = tdsAmount(p.BaseAmount, rule)
		out.Currency = s.baseCurrency

	default:
		return out, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	return out, nil
}
