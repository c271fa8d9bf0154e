// Package docs holds the Swagger document served at /api/swagger. Regenerate it
// with swag init -g cmd/server/main.go after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {
			"name": "API Support",
			"email": "support@homehive.dev"
		},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/auth/signup": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "User signup",
				"produces": [
					"application/json"
				],
				"description": "Register a tenant or landlord account",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Signup request",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object",
							"properties": {
								"name": {
									"type": "string"
								},
								"email": {
									"type": "string"
								},
								"phone_number": {
									"type": "string"
								},
								"password": {
									"type": "string"
								},
								"confirm_password": {
									"type": "string"
								}
							}
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"type": "object",
							"properties": {
								"token": {
									"type": "string"
								},
								"user": {
									"$ref": "#/definitions/models.User"
								}
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/login": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "User login",
				"produces": [
					"application/json"
				],
				"description": "Authenticate with email and password and return a JWT",
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Login credentials",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object",
							"properties": {
								"email": {
									"type": "string"
								},
								"password": {
									"type": "string"
								}
							}
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"properties": {
								"token": {
									"type": "string"
								},
								"user": {
									"$ref": "#/definitions/models.User"
								}
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/logout": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Log out",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"properties": {
								"message": {
									"type": "string"
								}
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/password/forgot": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Request a password reset",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Account email",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object",
							"properties": {
								"email": {
									"type": "string"
								}
							}
						}
					}
				],
				"responses": {
					"202": {
						"description": "Accepted",
						"schema": {
							"type": "object",
							"properties": {
								"message": {
									"type": "string"
								}
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/password/reset": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Reset a password",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Reset request",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object",
							"properties": {
								"token": {
									"type": "string"
								},
								"password": {
									"type": "string"
								},
								"confirm_password": {
									"type": "string"
								}
							}
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"properties": {
								"message": {
									"type": "string"
								}
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/ws/ticket": {
			"post": {
				"tags": [
					"realtime"
				],
				"summary": "Issue a WebSocket ticket",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"properties": {
								"ticket": {
									"type": "string"
								},
								"expires_in": {
									"type": "integer"
								}
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/listings": {
			"get": {
				"tags": [
					"listings"
				],
				"summary": "List listings",
				"produces": [
					"application/json"
				],
				"description": "Newest first; a bearer token adds the viewer's liked and saved flags",
				"parameters": [
					{
						"type": "string",
						"description": "Substring of description or location",
						"name": "search",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Property type",
						"name": "type",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Minimum monthly rent",
						"name": "min_price",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Maximum monthly rent",
						"name": "max_price",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.Listing"
							}
						}
					}
				}
			},
			"post": {
				"tags": [
					"listings"
				],
				"summary": "Create a listing",
				"produces": [
					"application/json"
				],
				"description": "Photos upload first, then at most one video",
				"consumes": [
					"multipart/form-data"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "string",
						"description": "Description",
						"name": "description",
						"in": "formData",
						"required": true
					},
					{
						"type": "string",
						"description": "Location",
						"name": "location",
						"in": "formData",
						"required": true
					},
					{
						"type": "string",
						"description": "Property type",
						"name": "type",
						"in": "formData",
						"required": true
					},
					{
						"type": "integer",
						"description": "Monthly rent",
						"name": "rent",
						"in": "formData",
						"required": true
					},
					{
						"type": "file",
						"description": "Photos and an optional video",
						"name": "media",
						"in": "formData"
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/models.Listing"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/listings/{id}": {
			"get": {
				"tags": [
					"listings"
				],
				"summary": "Get a listing",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "Listing ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.Listing"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/listings/{id}/likes": {
			"get": {
				"tags": [
					"engagement"
				],
				"summary": "Get like state",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "Listing ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.LikeState"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/listings/{id}/like": {
			"post": {
				"tags": [
					"engagement"
				],
				"summary": "Toggle like",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"description": "Listing ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.ToggleResult"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/listings/{id}/favorite": {
			"post": {
				"tags": [
					"engagement"
				],
				"summary": "Toggle favorite",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"description": "Listing ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.ToggleResult"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/listings/{id}/comments": {
			"get": {
				"tags": [
					"engagement"
				],
				"summary": "List comments",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "Listing ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.Comment"
							}
						}
					}
				}
			},
			"post": {
				"tags": [
					"engagement"
				],
				"summary": "Add a comment",
				"produces": [
					"application/json"
				],
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
						"type": "integer",
						"description": "Listing ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Comment",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object",
							"properties": {
								"text": {
									"type": "string"
								}
							}
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/models.Comment"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/listings/{id}/comments/count": {
			"get": {
				"tags": [
					"engagement"
				],
				"summary": "Count comments",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "Listing ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"properties": {
								"listing_id": {
									"type": "integer"
								},
								"count": {
									"type": "integer"
								}
							}
						}
					}
				}
			}
		},
		"/listings/{id}/share": {
			"get": {
				"tags": [
					"listings"
				],
				"summary": "Share links",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "Listing ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/service.ShareLinks"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/favorites": {
			"get": {
				"tags": [
					"listings"
				],
				"summary": "Saved listings",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.Listing"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/messages": {
			"get": {
				"tags": [
					"messages"
				],
				"summary": "Inbox",
				"produces": [
					"application/json"
				],
				"description": "One entry per peer with the latest message, newest first",
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.ConversationSummary"
							}
						}
					}
				}
			}
		},
		"/messages/{peerId}": {
			"get": {
				"tags": [
					"messages"
				],
				"summary": "Load a conversation",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"description": "Peer user ID",
						"name": "peerId",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.Message"
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			},
			"post": {
				"tags": [
					"messages"
				],
				"summary": "Send a message",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"description": "Peer user ID",
						"name": "peerId",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"description": "Message text",
						"name": "text",
						"in": "formData"
					},
					{
						"type": "file",
						"description": "Photo or video",
						"name": "media",
						"in": "formData"
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/models.Message"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/users/me": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "Current user",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.User"
						}
					}
				}
			},
			"put": {
				"tags": [
					"users"
				],
				"summary": "Update profile",
				"produces": [
					"application/json"
				],
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
						"description": "Profile fields",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object",
							"properties": {
								"name": {
									"type": "string"
								},
								"bio": {
									"type": "string"
								},
								"phone_number": {
									"type": "string"
								},
								"location": {
									"type": "string"
								}
							}
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.User"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/users/me/avatar": {
			"post": {
				"tags": [
					"users"
				],
				"summary": "Upload avatar",
				"produces": [
					"application/json"
				],
				"consumes": [
					"multipart/form-data"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "file",
						"description": "Image",
						"name": "file",
						"in": "formData",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.User"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/users/me/cover": {
			"post": {
				"tags": [
					"users"
				],
				"summary": "Upload cover photo",
				"produces": [
					"application/json"
				],
				"consumes": [
					"multipart/form-data"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "file",
						"description": "Image",
						"name": "file",
						"in": "formData",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.User"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/users/search": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "Search users",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Name substring",
						"name": "q",
						"in": "query",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.User"
							}
						}
					}
				}
			}
		},
		"/users/{id}": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "Get a user",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "User ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.User"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/users/{id}/listings": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "A user's listings",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "User ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.Listing"
							}
						}
					}
				}
			}
		}
	},
	"definitions": {
		"models.User": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"name": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"phone_number": {
					"type": "string"
				},
				"avatar_url": {
					"type": "string"
				},
				"cover_photo_url": {
					"type": "string"
				},
				"bio": {
					"type": "string"
				},
				"location": {
					"type": "string"
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
		},
		"models.Listing": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"user_id": {
					"type": "integer"
				},
				"user": {
					"$ref": "#/definitions/models.User"
				},
				"description": {
					"type": "string"
				},
				"location": {
					"type": "string"
				},
				"type": {
					"type": "string"
				},
				"rent": {
					"type": "integer"
				},
				"media": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"likes_count": {
					"type": "integer"
				},
				"comments_count": {
					"type": "integer"
				},
				"liked": {
					"type": "boolean"
				},
				"saved": {
					"type": "boolean"
				},
				"created_at": {
					"type": "string",
					"format": "date-time"
				}
			}
		},
		"models.Comment": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"listing_id": {
					"type": "integer"
				},
				"user_id": {
					"type": "integer"
				},
				"user": {
					"$ref": "#/definitions/models.User"
				},
				"text": {
					"type": "string"
				},
				"created_at": {
					"type": "string",
					"format": "date-time"
				}
			}
		},
		"models.Message": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"sender_id": {
					"type": "integer"
				},
				"receiver_id": {
					"type": "integer"
				},
				"sender": {
					"$ref": "#/definitions/models.User"
				},
				"receiver": {
					"$ref": "#/definitions/models.User"
				},
				"text": {
					"type": "string"
				},
				"media_url": {
					"type": "string"
				},
				"created_at": {
					"type": "string",
					"format": "date-time"
				}
			}
		},
		"models.ConversationSummary": {
			"type": "object",
			"properties": {
				"peer": {
					"$ref": "#/definitions/models.User"
				},
				"last_message": {
					"$ref": "#/definitions/models.Message"
				}
			}
		},
		"models.LikeState": {
			"type": "object",
			"properties": {
				"listing_id": {
					"type": "integer"
				},
				"count": {
					"type": "integer"
				},
				"liked": {
					"type": "boolean"
				},
				"can_like": {
					"type": "boolean"
				}
			}
		},
		"models.ToggleResult": {
			"type": "object",
			"properties": {
				"listing_id": {
					"type": "integer"
				},
				"active": {
					"type": "boolean"
				},
				"count": {
					"type": "integer"
				}
			}
		},
		"models.ErrorResponse": {
			"type": "object",
			"properties": {
				"error": {
					"type": "string"
				},
				"code": {
					"type": "string"
				},
				"details": {
					"type": "string"
				}
			}
		},
		"service.ShareLinks": {
			"type": "object",
			"properties": {
				"url": {
					"type": "string"
				},
				"whatsapp": {
					"type": "string"
				},
				"twitter": {
					"type": "string"
				},
				"facebook": {
					"type": "string"
				},
				"telegram": {
					"type": "string"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"description": "Type \"Bearer\" followed by a space and JWT token.",
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8375",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "Home Hive API",
	Description:      "Rental listings with likes, favorites, comments and direct messages",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
