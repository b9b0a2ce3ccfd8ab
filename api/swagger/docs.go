// Package swagger registers the OpenAPI document served at /swagger.
// Regenerate with: swag init -g cmd/api/main.go -o api/swagger
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Login user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.LoginUserRequest"}}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["auth"],
                "summary": "Get current user",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/api/{resource}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["documents"],
                "summary": "List documents",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "resource", "in": "path", "required": true},
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "q", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["documents"],
                "summary": "Create a document",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "resource", "in": "path", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.CreateDocumentRequest"}}
                ],
                "responses": {"201": {"description": "Created"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/api/{resource}/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["documents"],
                "summary": "Get a document",
                "parameters": [
                    {"type": "string", "name": "resource", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["documents"],
                "summary": "Edit a document",
                "consumes": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "resource", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.CreateDocumentRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "422": {"description": "Unprocessable Entity"}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["documents"],
                "summary": "Delete a document",
                "parameters": [
                    {"type": "string", "name": "resource", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        },
        "/api/{resource}/{id}/actions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["documents"],
                "summary": "Available actions",
                "parameters": [
                    {"type": "string", "name": "resource", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/{resource}/{id}/status": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["documents"],
                "summary": "Change status",
                "consumes": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "resource", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.UpdateStatusRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/api/{resource}/{id}/approval": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["documents"],
                "summary": "Approve or reject",
                "consumes": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "resource", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.DecisionRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/api/tds-sections": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["tds"],
                "summary": "List TDS section rules",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tds"],
                "summary": "Create TDS section rule",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.CreateTDSSectionRequest"}}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/vendors": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["vendors"],
                "summary": "List vendors",
                "parameters": [
                    {"type": "string", "name": "search", "in": "query"},
                    {"type": "boolean", "name": "active", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["vendors"],
                "summary": "Create vendor",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.CreateVendorRequest"}}],
                "responses": {"201": {"description": "Created"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/api/vendors/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["vendors"],
                "summary": "Get vendor",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["vendors"],
                "summary": "Update vendor",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "422": {"description": "Unprocessable Entity"}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["vendors"],
                "summary": "Delete vendor",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/stock": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["stock"],
                "summary": "List stock on hand",
                "parameters": [{"type": "string", "name": "search", "in": "query"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/stock/receipts/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["stock"],
                "summary": "Stock movements of a goods receipt",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/audit-logs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["audit"],
                "summary": "Get audit logs",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/dashboard/summary": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["dashboard"],
                "summary": "Document status summary",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "service.CreateVendorRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "pan": {"type": "string"},
                "gstin": {"type": "string"},
                "bank_account": {"type": "string"},
                "contact_person": {"type": "string"},
                "phone": {"type": "string"},
                "email": {"type": "string"}
            }
        },
        "service.LoginUserRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "service.CreateDocumentRequest": {
            "type": "object",
            "required": ["title", "payload"],
            "properties": {
                "title": {"type": "string"},
                "party_name": {"type": "string"},
                "currency": {"type": "string"},
                "payload": {"type": "object"}
            }
        },
        "service.UpdateStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string"}}
        },
        "service.DecisionRequest": {
            "type": "object",
            "required": ["decision"],
            "properties": {"decision": {"type": "string", "enum": ["approve", "reject"]}, "reason": {"type": "string"}}
        },
        "service.CreateTDSSectionRequest": {
            "type": "object",
            "required": ["section", "rate", "effective_from"],
            "properties": {
                "section": {"type": "string"},
                "rate": {"type": "string"},
                "threshold": {"type": "string"},
                "effective_from": {"type": "string"},
                "effective_to": {"type": "string"},
                "description": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Procurement Approval API",
	Description:      "Purchase orders, bills, goods receipts, expenses and TDS deductions with permission-gated approval workflows.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
