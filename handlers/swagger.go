package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the auth service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(r gin.IRouter) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})

	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>targup-auth Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "targup-auth", "version": "v0.1.0" },
  "components": {
    "securitySchemes": {
      "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" },
      "cookie": { "type": "apiKey", "in": "cookie", "name": "accessToken" }
    },
    "schemas": {
      "Error": { "type": "object", "properties": { "success": {"type":"boolean"}, "message": {"type":"string"}, "code": {"type":"string"} } },
      "TokenResponse": { "type": "object", "properties": { "success": {"type":"boolean"}, "token": {"type":"string"}, "data": { "type": "object", "properties": { "id": {"type":"string"}, "email": {"type":"string"}, "name": {"type":"string"} } } } }
    }
  },
  "paths": {
    "/auth/{provider}": {
      "get": {
        "summary": "Redirect to the provider consent page",
        "parameters": [ { "name": "provider", "in": "path", "required": true, "schema": { "type": "string", "enum": ["google", "instagram"] } } ],
        "responses": { "302": { "description": "redirect" }, "404": { "description": "unknown provider" } }
      }
    },
    "/auth/{provider}/callback": {
      "get": {
        "summary": "Complete provider sign-in",
        "parameters": [
          { "name": "provider", "in": "path", "required": true, "schema": { "type": "string" } },
          { "name": "code", "in": "query", "required": true, "schema": { "type": "string" } },
          { "name": "state", "in": "query", "required": true, "schema": { "type": "string" } }
        ],
        "responses": { "200": { "description": "signed in; accessToken cookie set" }, "400": { "description": "invalid code or state" } }
      }
    },
    "/auth/login": {
      "post": {
        "summary": "Email/password login",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "token returned" }, "401": { "description": "invalid credentials" } }
      }
    },
    "/auth/logout": {
      "post": { "summary": "Revoke the presented token", "security": [{"bearer": []}, {"cookie": []}], "responses": { "200": { "description": "logged out" }, "401": { "description": "invalid token" } } }
    },
    "/users": {
      "post": {
        "summary": "Register a local user",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"},"name":{"type":"string"}}}}}},
        "responses": { "201": { "description": "created" }, "400": { "description": "invalid email or weak password" }, "409": { "description": "email taken" } }
      }
    },
    "/api/v1/me": {
      "get": { "summary": "Current user", "security": [{"bearer": []}, {"cookie": []}], "responses": { "200": { "description": "user and token claims" } } }
    },
    "/api/v1/me/password": {
      "put": { "summary": "Change password", "security": [{"bearer": []}], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"currentPassword":{"type":"string"},"newPassword":{"type":"string"}}}}}}, "responses": { "200": { "description": "updated" }, "401": { "description": "wrong current password" } } }
    },
    "/api/v1/me/accounts": {
      "get": { "summary": "Linked provider accounts", "security": [{"bearer": []}], "responses": { "200": { "description": "linked accounts" } } }
    },
    "/api/v1/me/sessions": {
      "get": { "summary": "Active sessions", "security": [{"bearer": []}], "responses": { "200": { "description": "sessions" } } },
      "delete": { "summary": "Revoke all sessions", "security": [{"bearer": []}], "responses": { "200": { "description": "revoked count" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
