// Package docs holds the OpenAPI description served at /swagger.
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
        "/health": {
            "get": {
                "description": "Checks that the point store is reachable.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/points": {
            "post": {
                "description": "Stores a batch of points atomically. Ids are returned in input order.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["points"],
                "summary": "Write points",
                "parameters": [
                    {"description": "points", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.putRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.putResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/v1/query": {
            "post": {
                "description": "Returns metadata of points with start <= timestamp < end, ordered by row key.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["points"],
                "summary": "Query point metadata",
                "parameters": [
                    {"description": "range", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.RangeQuery"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.metaResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/v1/fetch": {
            "post": {
                "description": "Returns full records in request order. Unknown ids are omitted.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["points"],
                "summary": "Fetch points by id",
                "parameters": [
                    {"description": "base64 row keys", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.fetchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.recordResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/v1/archives": {
            "post": {
                "description": "Exports matching records as NDJSON to object storage and returns a presigned URL.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["archives"],
                "summary": "Archive a range",
                "parameters": [
                    {"description": "range", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.RangeQuery"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/service.ArchiveResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        }
    },
    "definitions": {
        "handler.errorEnvelope": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "handler.errorPayload": {
            "type": "object",
            "properties": {"error": {"$ref": "#/definitions/handler.errorEnvelope"}, "request_id": {"type": "string"}}
        },
        "handler.fetchRequest": {
            "type": "object",
            "properties": {"ids": {"type": "array", "items": {"type": "string", "format": "byte"}}}
        },
        "handler.metaResponse": {
            "type": "object",
            "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/model.Meta"}}}
        },
        "handler.putRequest": {
            "type": "object",
            "properties": {"points": {"type": "array", "items": {"$ref": "#/definitions/model.Point"}}}
        },
        "handler.putResponse": {
            "type": "object",
            "properties": {"count": {"type": "integer"}, "ids": {"type": "array", "items": {"type": "string", "format": "byte"}}}
        },
        "handler.recordResponse": {
            "type": "object",
            "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/model.Record"}}}
        },
        "model.Meta": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "format": "byte"},
                "owner_id": {"type": "string"},
                "qualifier": {"type": "string"},
                "timestamp": {"type": "integer"}
            }
        },
        "model.Point": {
            "type": "object",
            "properties": {
                "data": {"type": "string", "format": "byte"},
                "owner_id": {"type": "string"},
                "qualifier": {"type": "string"},
                "timestamp": {"type": "integer"}
            }
        },
        "model.RangeQuery": {
            "type": "object",
            "properties": {
                "end": {"type": "integer"},
                "owner_id": {"type": "string"},
                "qualifier": {"type": "string"},
                "start": {"type": "integer"}
            }
        },
        "model.Record": {
            "type": "object",
            "properties": {
                "data": {"type": "string", "format": "byte"},
                "id": {"type": "string", "format": "byte"},
                "owner_id": {"type": "string"},
                "qualifier": {"type": "string"},
                "timestamp": {"type": "integer"}
            }
        },
        "service.ArchiveResult": {
            "type": "object",
            "properties": {"count": {"type": "integer"}, "key": {"type": "string"}, "url": {"type": "string"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.0.1",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "PaustDB API",
	Description:      "Decentralized TSDB specialized for real-time streaming",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
