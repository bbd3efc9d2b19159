// Package docs holds the OpenAPI description served under /swagger.
// Regenerate with: swag init -g cmd/app/main.go
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
        "/users/me/memberships": {
            "get": {
                "security": [{"TelegramInitData": []}],
                "description": "Sponsor channel memberships recorded for the caller, with the current point balance",
                "produces": ["application/json"],
                "tags": ["memberships"],
                "summary": "List my sponsor memberships",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.MyMembershipsResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}}
                }
            }
        },
        "/admin/membership/status": {
            "get": {
                "security": [{"TelegramInitData": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Membership scheduler status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/scheduler.Status"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "503": {"description": "Scheduler disabled", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}}
                }
            }
        },
        "/admin/membership/check": {
            "post": {
                "security": [{"TelegramInitData": []}],
                "description": "Runs one reconciliation tick synchronously and returns its report",
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Run a membership check now",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/scheduler.TickReport"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "409": {"description": "A tick is already running", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "503": {"description": "Scheduler disabled", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}}
                }
            }
        },
        "/admin/sponsors": {
            "get": {
                "security": [{"TelegramInitData": []}],
                "produces": ["application/json"],
                "tags": ["sponsors"],
                "summary": "List sponsor channels",
                "parameters": [
                    {"type": "integer", "default": 100, "description": "Page size", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "Offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/sponsor.Channel"}}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"TelegramInitData": []}],
                "description": "Title and username are taken from Telegram when the bot can read the channel",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sponsors"],
                "summary": "Register a sponsor channel",
                "parameters": [
                    {"description": "Channel", "name": "channel", "in": "body", "required": true, "schema": {"$ref": "#/definitions/sponsors.CreateInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/sponsor.Channel"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "409": {"description": "Already registered", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}}
                }
            }
        },
        "/admin/sponsors/{id}": {
            "delete": {
                "security": [{"TelegramInitData": []}],
                "description": "Soft delete: the channel stops being checked, recorded memberships are kept",
                "tags": ["sponsors"],
                "summary": "Deactivate a sponsor channel",
                "parameters": [
                    {"type": "integer", "description": "Sponsor channel ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}}
                }
            }
        },
        "/admin/sponsors/{id}/audit": {
            "post": {
                "security": [{"TelegramInitData": []}],
                "produces": ["application/json"],
                "tags": ["sponsors"],
                "summary": "Audit bot access to a sponsor channel",
                "parameters": [
                    {"type": "integer", "description": "Sponsor channel ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/sponsor.Channel"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "errors.AppError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object", "additionalProperties": true}
            }
        },
        "middleware.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"$ref": "#/definitions/errors.AppError"},
                "timestamp": {"type": "string"},
                "request_id": {"type": "string"},
                "path": {"type": "string"},
                "method": {"type": "string"}
            }
        },
        "sponsor.Channel": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "channel_id": {"type": "string"},
                "title": {"type": "string"},
                "username": {"type": "string"},
                "description": {"type": "string"},
                "points_reward": {"type": "integer"},
                "is_active": {"type": "boolean"},
                "bot_has_access": {"type": "boolean"},
                "last_access_check": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "sponsors.CreateInput": {
            "type": "object",
            "required": ["channel_id"],
            "properties": {
                "channel_id": {"type": "string", "example": "@my_channel"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "points_reward": {"type": "integer", "example": 150}
            }
        },
        "sponsors.MembershipView": {
            "type": "object",
            "properties": {
                "user_id": {"type": "integer"},
                "channel_id": {"type": "integer"},
                "is_member": {"type": "boolean"},
                "points_earned": {"type": "integer"},
                "joined_at": {"type": "string"},
                "left_at": {"type": "string"},
                "last_checked": {"type": "string"},
                "check_count": {"type": "integer"},
                "channel_title": {"type": "string"},
                "channel_username": {"type": "string"},
                "channel_active": {"type": "boolean"}
            }
        },
        "http.MyMembershipsResponse": {
            "type": "object",
            "properties": {
                "user_id": {"type": "integer"},
                "points": {"type": "integer"},
                "level": {"type": "integer"},
                "memberships": {"type": "array", "items": {"$ref": "#/definitions/sponsors.MembershipView"}}
            }
        },
        "membership.BatchResult": {
            "type": "object",
            "properties": {
                "total_checks": {"type": "integer"},
                "successful_checks": {"type": "integer"},
                "failed_checks": {"type": "integer"},
                "points_awarded": {"type": "integer"},
                "channels_skipped": {"type": "integer"},
                "duration": {"type": "integer"}
            }
        },
        "scheduler.TickReport": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "trigger": {"type": "string", "enum": ["cron", "warmup", "manual"]},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"},
                "active_channels": {"type": "integer"},
                "accessible_channels": {"type": "integer"},
                "skip_reason": {"type": "string"},
                "batch": {"$ref": "#/definitions/membership.BatchResult"},
                "error": {"type": "string"}
            }
        },
        "scheduler.Status": {
            "type": "object",
            "properties": {
                "is_running": {"type": "boolean"},
                "next_run_description": {"type": "string"},
                "next_run": {"type": "string"},
                "last_tick": {"$ref": "#/definitions/scheduler.TickReport"}
            }
        }
    },
    "securityDefinitions": {
        "TelegramInitData": {
            "description": "Telegram Mini App init data string",
            "type": "apiKey",
            "name": "X-Telegram-Init-Data",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Sponsor Points API",
	Description:      "Awards points to Telegram users for joining sponsor channels.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
