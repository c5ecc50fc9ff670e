// Package docs registers the OpenAPI document served at /swagger.
// Regenerate with: swag init -g cmd/api/main.go -o docs
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
        "/meetings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Meetings"],
                "summary": "List meetings",
                "parameters": [
                    {"type": "integer", "description": "Page number (default: 1)", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Items per page (default: 20)", "name": "page_size", "in": "query"},
                    {"type": "string", "description": "Status filter (open/ended)", "name": "status", "in": "query"},
                    {"type": "string", "description": "Search by title", "name": "search", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "List of meetings", "schema": {"$ref": "#/definitions/meeting.MeetingListResponse"}},
                    "400": {"description": "Invalid request", "schema": {"type": "object"}}
                }
            }
        },
        "/meetings/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Meetings"],
                "summary": "Get meeting",
                "parameters": [{"type": "string", "description": "Meeting ID (UUID)", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Meeting", "schema": {"$ref": "#/definitions/meeting.MeetingResponse"}},
                    "404": {"description": "Meeting not found", "schema": {"type": "object"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["Meetings"],
                "summary": "Delete meeting",
                "parameters": [{"type": "string", "description": "Meeting ID (UUID)", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Meeting deleted", "schema": {"type": "object"}},
                    "404": {"description": "Meeting not found", "schema": {"type": "object"}}
                }
            }
        },
        "/meetings/{id}/utterances": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Meetings"],
                "summary": "Get meeting transcript",
                "parameters": [
                    {"type": "string", "description": "Meeting ID (UUID)", "name": "id", "in": "path", "required": true},
                    {"type": "boolean", "description": "Only final (true) or only interim (false) utterances", "name": "final", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Transcript", "schema": {"$ref": "#/definitions/meeting.TranscriptResponse"}},
                    "404": {"description": "Meeting not found", "schema": {"type": "object"}}
                }
            }
        },
        "/meetings/{id}/sessions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Meetings"],
                "summary": "List ingest sessions",
                "parameters": [{"type": "string", "description": "Meeting ID (UUID)", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Sessions", "schema": {"type": "array", "items": {"$ref": "#/definitions/meeting.IngestSessionResponse"}}},
                    "404": {"description": "Meeting not found", "schema": {"type": "object"}}
                }
            }
        }
    },
    "definitions": {
        "common.PaginationResponse": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_items": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "meeting.MeetingResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "meet_url": {"type": "string"},
                "status": {"type": "string"},
                "start_ts": {"type": "string"},
                "end_ts": {"type": "string"}
            }
        },
        "meeting.MeetingListResponse": {
            "type": "object",
            "properties": {
                "meetings": {"type": "array", "items": {"$ref": "#/definitions/meeting.MeetingResponse"}},
                "pagination": {"$ref": "#/definitions/common.PaginationResponse"}
            }
        },
        "meeting.UtteranceResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "speaker_label": {"type": "string"},
                "start_time_ms": {"type": "integer"},
                "end_time_ms": {"type": "integer"},
                "text": {"type": "string"},
                "lang": {"type": "string"},
                "is_final": {"type": "boolean"}
            }
        },
        "meeting.TranscriptResponse": {
            "type": "object",
            "properties": {
                "meeting_id": {"type": "string"},
                "utterances": {"type": "array", "items": {"$ref": "#/definitions/meeting.UtteranceResponse"}}
            }
        },
        "meeting.IngestSessionResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "remote": {"type": "string"},
                "init": {"type": "object"},
                "total_bytes": {"type": "integer"},
                "frames_received": {"type": "integer"},
                "started_at": {"type": "string"},
                "last_message_at": {"type": "string"},
                "closed_at": {"type": "string"},
                "close_reason": {"type": "string"},
                "audio_url": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Meetscribe Ingestion API",
	Description:      "Audio ingestion socket and meeting transcript API",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
