// Package docs registers the OpenAPI document served under /swagger/.
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
        "/v1/contests/{contest_id}/categories/{category_id}/votes": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["votes"],
                "summary": "Cast a ballot in a category",
                "parameters": [
                    {"type": "string", "name": "contest_id", "in": "path", "required": true},
                    {"type": "string", "name": "category_id", "in": "path", "required": true},
                    {"type": "string", "name": "X-Account-Id", "in": "header"},
                    {"type": "string", "name": "X-Voter-Email", "in": "header"},
                    {"type": "string", "name": "X-Device-Id", "in": "header"},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitVoteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/SubmitVoteResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/categories/{category_id}/results": {
            "get": {
                "produces": ["application/json"],
                "tags": ["results"],
                "summary": "Category result",
                "parameters": [
                    {"type": "string", "name": "category_id", "in": "path", "required": true},
                    {"type": "string", "name": "X-Account-Id", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CategoryResultResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/contests/{contest_id}/results": {
            "get": {
                "produces": ["application/json"],
                "tags": ["results"],
                "summary": "Contest result",
                "parameters": [
                    {"type": "string", "name": "contest_id", "in": "path", "required": true},
                    {"type": "string", "name": "X-Account-Id", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ContestResultResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "rule": {"type": "string"}
            }
        },
        "SubmitVoteRequest": {
            "type": "object",
            "properties": {
                "method": {"type": "string", "enum": ["rank", "pick-one", "multiple-choice", "rating", "head-to-head"]},
                "ranking": {"type": "array", "items": {"type": "string"}},
                "contestant_id": {"type": "string"},
                "selections": {"type": "array", "items": {"type": "string"}},
                "ratings": {"type": "object", "additionalProperties": {"type": "integer"}},
                "matchups": {"type": "array", "items": {"type": "object", "properties": {"winner_id": {"type": "string"}, "loser_id": {"type": "string"}}}},
                "write_ins": {"type": "array", "items": {"type": "object", "properties": {"ref": {"type": "string"}, "name": {"type": "string"}}}},
                "passcode": {"type": "string"}
            }
        },
        "SubmitVoteResponse": {
            "type": "object",
            "properties": {
                "ballot_id": {"type": "string"},
                "contest_id": {"type": "string"},
                "category_id": {"type": "string"},
                "method": {"type": "string"},
                "cast_at": {"type": "string"},
                "replayed": {"type": "boolean"}
            }
        },
        "ContestantResultResponse": {
            "type": "object",
            "properties": {
                "contestant_id": {"type": "string"},
                "name": {"type": "string"},
                "write_in": {"type": "boolean"},
                "rank": {"type": "integer"},
                "score": {"type": "number"},
                "percentage": {"type": "number"},
                "votes": {"type": "integer"},
                "wins": {"type": "integer"},
                "losses": {"type": "integer"},
                "is_winner": {"type": "boolean"},
                "shared_top": {"type": "boolean"}
            }
        },
        "CategoryResultResponse": {
            "type": "object",
            "properties": {
                "category_id": {"type": "string"},
                "contest_id": {"type": "string"},
                "name": {"type": "string"},
                "voting_method": {"type": "string"},
                "rating_scale": {"type": "integer"},
                "total_ballots": {"type": "integer"},
                "entries": {"type": "array", "items": {"$ref": "#/definitions/ContestantResultResponse"}},
                "winners": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ContestResultResponse": {
            "type": "object",
            "properties": {
                "contest_id": {"type": "string"},
                "name": {"type": "string"},
                "ends_at": {"type": "string"},
                "ended": {"type": "boolean"},
                "total_ballots": {"type": "integer"},
                "total_voters": {"type": "integer"},
                "categories": {"type": "array", "items": {"$ref": "#/definitions/CategoryResultResponse"}},
                "computed_at": {"type": "string"}
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
	Title:            "contestvote ballot engine API",
	Description:      "Vote submission and results for contest categories.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
