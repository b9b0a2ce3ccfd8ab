package service

import "procurement/internal/workflow"

// Amounts arrive either as JSON numbers or as decimal strings.
const decimalSchema = `{"type": ["number", "string"], "pattern": "^-?[0-9]+(\\.[0-9]+)?$"}`

const dateSchema = `{"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"}`

var payloadSchemas = map[workflow.Kind]string{
	workflow.KindPurchaseOrder: `{
		"type": "object",
		"required": ["vendor_id", "lines"],
		"properties": {
			"vendor_id": {"type": "string", "minLength": 1},
			"expected_date": ` + dateSchema + `,
			"notes": {"type": "string"},
			"lines": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["description", "quantity", "unit_price"],
					"properties": {
						"description": {"type": "string", "minLength": 1},
						"quantity": ` + decimalSchema + `,
						"unit_price": ` + decimalSchema + `,
						"tax_rate": ` + decimalSchema + `
					}
				}
			}
		}
	}`,
	workflow.KindPurchaseBill: `{
		"type": "object",
		"required": ["bill_number", "bill_date", "subtotal"],
		"properties": {
			"bill_number": {"type": "string", "minLength": 1},
			"purchase_order_id": {"type": "string"},
			"bill_date": ` + dateSchema + `,
			"due_date": ` + dateSchema + `,
			"subtotal": ` + decimalSchema + `,
			"tax": ` + decimalSchema + `
		}
	}`,
	workflow.KindGoodsReceipt: `{
		"type": "object",
		"required": ["purchase_order_id", "received_at", "lines"],
		"properties": {
			"purchase_order_id": {"type": "string", "minLength": 1},
			"received_at": ` + dateSchema + `,
			"lines": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["description", "ordered", "received"],
					"properties": {
						"description": {"type": "string", "minLength": 1},
						"ordered": ` + decimalSchema + `,
						"received": ` + decimalSchema + `,
						"rejected": ` + decimalSchema + `
					}
				}
			}
		}
	}`,
	workflow.KindExpense: `{
		"type": "object",
		"required": ["category", "original_amount", "original_currency", "spent_at"],
		"properties": {
			"category": {"type": "string", "minLength": 1},
			"original_amount": ` + decimalSchema + `,
			"original_currency": {"type": "string", "pattern": "^[A-Z]{3}$"},
			"exchange_rate": ` + decimalSchema + `,
			"spent_at": ` + dateSchema + `,
			"description": {"type": "string"}
		}
	}`,
	workflow.KindTDSDeduction: `{
		"type": "object",
		"required": ["section", "pan", "base_amount", "payment_date"],
		"properties": {
			"section": {"type": "string", "minLength": 1},
			"pan": {"type": "string", "pattern": "^[A-Z]{5}[0-9]{4}[A-Z]$"},
			"base_amount": ` + decimalSchema + `,
			"payment_date": ` + dateSchema + `
		}
	}`,
}
