package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Report Vault API",
        "description": "Health report upload, catalog and two-phase deletion service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Reports", "description": "Report upload, catalog and lifecycle"},
        {"name": "Orphans", "description": "Two-phase partial failure audit trail"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Record store unreachable"}
                }
            }
        },
        "/reports": {
            "get": {
                "tags": ["Reports"],
                "summary": "List the derived report catalog",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string", "description": "Matches name, description, title, doctor or tags"},
                    {"name": "type", "in": "query", "type": "string", "description": "Report type filter"},
                    {"name": "sort", "in": "query", "type": "string", "enum": ["newest", "oldest"], "default": "newest"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Catalog load failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Reports"],
                "summary": "Upload a health report",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "patientId", "in": "formData", "required": true, "type": "string"},
                    {"name": "title", "in": "formData", "type": "string"},
                    {"name": "reportType", "in": "formData", "type": "string", "enum": ["Lab Report", "Prescription", "Scan", "Invoice", "Other"]},
                    {"name": "doctor", "in": "formData", "type": "string"},
                    {"name": "reportDate", "in": "formData", "type": "string"},
                    {"name": "tags", "in": "formData", "type": "string"},
                    {"name": "description", "in": "formData", "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Object or record write failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/export": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export the derived catalog as CSV or PDF",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "sort", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Rendered export"}
                }
            }
        },
        "/reports/{patientId}/{reportId}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Get one report with its object URLs",
                "parameters": [
                    {"name": "patientId", "in": "path", "required": true, "type": "string"},
                    {"name": "reportId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Reports"],
                "summary": "Save the mutable fields of a report",
                "parameters": [
                    {"name": "patientId", "in": "path", "required": true, "type": "string"},
                    {"name": "reportId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveReportRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Reports"],
                "summary": "Delete a report (object store first, then record store)",
                "parameters": [
                    {"name": "patientId", "in": "path", "required": true, "type": "string"},
                    {"name": "reportId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Object delete failed or record left dangling", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{patientId}/{reportId}/edit": {
            "post": {
                "tags": ["Reports"],
                "summary": "Mark a catalog entry as under edit",
                "parameters": [
                    {"name": "patientId", "in": "path", "required": true, "type": "string"},
                    {"name": "reportId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Editing"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{patientId}/{reportId}/edit/cancel": {
            "post": {
                "tags": ["Reports"],
                "summary": "Discard the in-memory edit of a catalog entry",
                "parameters": [
                    {"name": "patientId", "in": "path", "required": true, "type": "string"},
                    {"name": "reportId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Edit discarded"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{patientId}/{reportId}/download": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a report file via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "patientId", "in": "path", "required": true, "type": "string"},
                    {"name": "reportId", "in": "path", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "400": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/orphans": {
            "get": {
                "tags": ["Orphans"],
                "summary": "List recorded two-phase partial failures",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer", "default": 100}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SaveReportRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "reportType": {"type": "string", "enum": ["Lab Report", "Prescription", "Scan", "Invoice", "Other"]},
                "doctor": {"type": "string"},
                "reportDate": {"type": "string"},
                "tags": {"type": "string"},
                "description": {"type": "string"},
                "status": {"type": "string", "enum": ["Pending", "Reviewed"]}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
