// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with swag init -g cmd/server/main.go after changing handler
// annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/analyze": {
            "post": {
                "description": "Accepts a multipart \"image\" field or a raw JPEG/PNG body and returns the screening report.",
                "consumes": ["multipart/form-data", "image/jpeg", "image/png"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Analyze a skin photo",
                "parameters": [
                    {"type": "file", "description": "JPEG or PNG photo, 5 MB max", "name": "image", "in": "formData"},
                    {"type": "boolean", "description": "Return the report as a file attachment", "name": "download", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analysis.Report"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/api/v1/conditions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "List screened conditions",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/api/v1/privacy": {
            "get": {
                "produces": ["application/json"],
                "tags": ["privacy"],
                "summary": "Privacy notice and retention policy",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Liveness and dependency status",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/metrics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Service metrics",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        }
    },
    "definitions": {
        "analysis.ConditionResult": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "confidence": {"type": "number"},
                "risk_level": {"type": "string", "enum": ["Low", "Medium", "High"]},
                "description": {"type": "string"},
                "detected_features": {"type": "object", "additionalProperties": {"type": "number"}}
            }
        },
        "analysis.Report": {
            "type": "object",
            "properties": {
                "report_id": {"type": "string"},
                "created_at": {"type": "string"},
                "upload": {
                    "type": "object",
                    "properties": {
                        "size_bytes": {"type": "integer"},
                        "size_mb": {"type": "number"},
                        "format": {"type": "string"},
                        "fingerprint": {"type": "string"}
                    }
                },
                "preprocessing_info": {"type": "object"},
                "color_statistics": {"type": "object"},
                "analysis_results": {
                    "type": "object",
                    "additionalProperties": {"$ref": "#/definitions/analysis.ConditionResult"}
                },
                "recommendations": {
                    "type": "object",
                    "properties": {
                        "lifestyle": {"type": "array", "items": {"type": "string"}},
                        "diet": {"type": "array", "items": {"type": "string"}},
                        "medical": {"type": "array", "items": {"type": "string"}},
                        "action_items": {"type": "array", "items": {"type": "string"}}
                    }
                }
            }
        },
        "errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "category": {"type": "string"},
                "code": {"type": "string"},
                "request_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Skintel API",
	Description:      "Skin photo screening: feature extraction, condition scoring and recommendations.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
