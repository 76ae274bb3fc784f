// Package docs holds the swagger document served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "description": "Returns service status",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "System"
                ],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.RespOK"
                        }
                    }
                }
            }
        },
        "/api/v1/webhook/paddle": {
            "post": {
                "description": "Receives billing notifications signed with the Paddle-Signature header. Duplicate and unknown events answer 200.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Webhook"
                ],
                "summary": "Paddle Webhook",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "ts=<unix>;h1=<hex hmac>",
                        "name": "Paddle-Signature",
                        "in": "header",
                        "required": true
                    },
                    {
                        "description": "Raw notification envelope",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.webhookResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.RespOK"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.RespOK"
                        }
                    },
                    "413": {
                        "description": "Request Entity Too Large",
                        "schema": {
                            "$ref": "#/definitions/handlers.RespOK"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/handlers.RespOK"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/handlers.RespOK"
                        }
                    }
                }
            }
        },
        "/api/v1/subscription/sync": {
            "post": {
                "description": "Pulls the caller's subscription from the provider, at most once per window.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Subscription"
                ],
                "summary": "Sync Subscription",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/reconcile.SyncResult"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.RespOK"
                        }
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {
                            "$ref": "#/definitions/handlers.alreadyInProgressResponse"
                        }
                    }
                }
            }
        },
        "/api/v1/subscription/cancel": {
            "post": {
                "description": "Schedules cancellation at period end and applies the provider's answer.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Subscription"
                ],
                "summary": "Cancel Subscription",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/reconcile.SyncResult"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.RespOK"
                        }
                    }
                }
            }
        },
        "/api/v1/admin/sync": {
            "post": {
                "description": "Reconciles another user's subscription on behalf of an operator.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Admin"
                ],
                "summary": "Sync User Subscription (Admin)",
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "description": "Target user",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handlers.adminSyncRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/reconcile.SyncResult"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/handlers.RespOK"
                        }
                    }
                }
            }
        },
        "/api/v1/admin/retry_items": {
            "post": {
                "description": "Retrieves a paginated and filterable list of failed deliveries awaiting replay.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Admin"
                ],
                "summary": "List Retry Items (Admin)",
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "description": "Filters, pagination, and sorting",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/retry.ScanRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.RespRetryItems"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "handlers.RespOK": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "code": {
                    "type": "integer"
                },
                "message": {
                    "type": "string"
                },
                "data": {}
            }
        },
        "handlers.RespRetryItems": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "code": {
                    "type": "integer"
                },
                "message": {
                    "type": "string"
                },
                "data": {
                    "$ref": "#/definitions/retry.ScanResponse"
                }
            }
        },
        "handlers.webhookResponse": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "eventId": {
                    "type": "string"
                },
                "eventType": {
                    "type": "string"
                }
            }
        },
        "handlers.alreadyInProgressResponse": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "alreadyInProgress": {
                    "type": "boolean"
                }
            }
        },
        "handlers.adminSyncRequest": {
            "type": "object",
            "required": [
                "user_id"
            ],
            "properties": {
                "user_id": {
                    "type": "string"
                }
            }
        },
        "reconcile.SyncResult": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "subscriptionId": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "isPremium": {
                    "type": "boolean"
                },
                "daysUntilRenewal": {
                    "type": "integer"
                },
                "nextBillingDate": {
                    "type": "string",
                    "format": "date-time"
                },
                "syncedAt": {
                    "type": "string",
                    "format": "date-time"
                },
                "cached": {
                    "type": "boolean"
                }
            }
        },
        "retry.ScanRequest": {
            "type": "object",
            "properties": {
                "filters": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/types.CommonFilter"
                    }
                },
                "from": {
                    "type": "integer"
                },
                "size": {
                    "type": "integer"
                },
                "sort_by": {
                    "type": "string"
                },
                "sort_order": {
                    "type": "string"
                }
            }
        },
        "retry.ScanResponse": {
            "type": "object",
            "properties": {
                "items": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/models.RetryQueueItem"
                    }
                },
                "total": {
                    "type": "integer"
                }
            }
        },
        "types.CommonFilter": {
            "type": "object",
            "properties": {
                "field": {
                    "type": "string"
                },
                "operator": {
                    "type": "string",
                    "enum": [
                        "eq",
                        "not_eq",
                        "lt",
                        "lte",
                        "gt",
                        "gte",
                        "range",
                        "in"
                    ]
                },
                "values": {
                    "type": "array",
                    "items": {}
                }
            }
        },
        "models.RetryQueueItem": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "event_id": {
                    "type": "string"
                },
                "event_kind": {
                    "type": "string"
                },
                "user_id": {
                    "type": "string"
                },
                "provider_subscription_id": {
                    "type": "string"
                },
                "payload": {
                    "type": "object"
                },
                "error": {
                    "type": "string"
                },
                "retry_count": {
                    "type": "integer"
                },
                "max_retries": {
                    "type": "integer"
                },
                "next_retry_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "pending",
                        "resolved",
                        "expired"
                    ]
                },
                "unresolved": {
                    "type": "boolean"
                },
                "expires_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "last_attempt_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "resolved_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "created_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "updated_at": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8888",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Billing Sync API",
	Description:      "Paddle webhook intake and subscription reconciliation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
