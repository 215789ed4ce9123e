// Package docs registers the Swagger document for the run-history API.
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
        "/runs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "List runs",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/model.RunInfo"}}
                    },
                    "500": {"description": "Internal server error", "schema": {"type": "object"}}
                }
            },
            "post": {
                "description": "Fetch every CBP year from the configured start year and build the wide artifact",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Start a run",
                "responses": {
                    "202": {"description": "Run started", "schema": {"type": "object"}}
                }
            }
        },
        "/runs/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run details", "schema": {"type": "object"}},
                    "404": {"description": "Run not found", "schema": {"type": "object"}}
                }
            }
        },
        "/runs/{id}/years": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run years",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Year outcomes", "schema": {"type": "object"}},
                    "404": {"description": "Run not found", "schema": {"type": "object"}}
                }
            }
        },
        "/runs/{id}/errors": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run errors",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run errors", "schema": {"type": "object"}},
                    "404": {"description": "Run not found", "schema": {"type": "object"}}
                }
            }
        },
        "/runs/{id}/records": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run records",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Only this year", "name": "year", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Records", "schema": {"type": "object"}},
                    "400": {"description": "Invalid year", "schema": {"type": "object"}},
                    "404": {"description": "Run not found", "schema": {"type": "object"}}
                }
            }
        },
        "/runs/{id}/artifact": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Download run artifact",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Wide JSON artifact", "schema": {"type": "file"}},
                    "404": {"description": "Run or artifact not found", "schema": {"type": "object"}}
                }
            }
        }
    },
    "definitions": {
        "model.RunInfo": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "start_year": {"type": "integer"},
                "status": {"type": "string"},
                "artifact_path": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "CBP Establishments API",
	Description:      "Run history for the Puerto Rico County Business Patterns collector.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
