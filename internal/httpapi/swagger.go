//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

type apiDoc struct{}

func (apiDoc) ReadDoc() string { return swaggerJSON }

func init() {
	swag.Register(swag.Name, apiDoc{})
}

// MountSwagger serves the Swagger UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

const swaggerJSON = `{
  "swagger": "2.0",
  "info": {
    "title": "specd API",
    "description": "Spectrogram and model artifact store with inference.",
    "version": "1.0"
  },
  "basePath": "/",
  "schemes": ["http"],
  "paths": {
    "/api/upload/spectrogram": {
      "post": {
        "tags": ["upload"],
        "summary": "Upload a spectrogram",
        "consumes": ["multipart/form-data", "application/x-www-form-urlencoded"],
        "produces": ["application/json"],
        "parameters": [
          {"name": "project_id", "in": "formData", "type": "string", "required": true},
          {"name": "labels", "in": "formData", "type": "string", "required": true},
          {"name": "spectrogram", "in": "formData", "type": "string", "required": true}
        ],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/UploadSpectrogramResponse"}},
          "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    },
    "/api/upload/aiModel": {
      "post": {
        "tags": ["upload"],
        "summary": "Upload an AI model",
        "consumes": ["multipart/form-data"],
        "produces": ["application/json"],
        "parameters": [
          {"name": "project_id", "in": "formData", "type": "string", "required": true},
          {"name": "file", "in": "formData", "type": "file", "required": true},
          {"name": "weights", "in": "formData", "type": "file"}
        ],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/UploadModelResponse"}},
          "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "500": {"description": "Conversion failed", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "503": {"description": "Converter unavailable", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    },
    "/api/files/{project_id}": {
      "get": {
        "tags": ["files"],
        "summary": "List project files",
        "produces": ["application/json"],
        "parameters": [{"name": "project_id", "in": "path", "type": "string", "required": true}],
        "responses": {
          "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}}}
        }
      }
    },
    "/api/files/view/{project_id}/{folder}/{filename}": {
      "get": {
        "tags": ["files"],
        "summary": "Download a stored file",
        "parameters": [
          {"name": "project_id", "in": "path", "type": "string", "required": true},
          {"name": "folder", "in": "path", "type": "string", "required": true, "enum": ["jsondata", "aiModels"]},
          {"name": "filename", "in": "path", "type": "string", "required": true}
        ],
        "responses": {
          "200": {"description": "File content"},
          "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    },
    "/api/models/{project_id}": {
      "get": {
        "tags": ["models"],
        "summary": "List project models",
        "produces": ["application/json"],
        "parameters": [{"name": "project_id", "in": "path", "type": "string", "required": true}],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/ModelsResponse"}}
        }
      }
    },
    "/api/models/{project_id}/{model_name}": {
      "post": {
        "tags": ["models"],
        "summary": "Run inference",
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "parameters": [
          {"name": "project_id", "in": "path", "type": "string", "required": true},
          {"name": "model_name", "in": "path", "type": "string", "required": true},
          {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PredictRequest"}}
        ],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/PredictResponse"}},
          "400": {"description": "Missing data", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "404": {"description": "Model not found", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "429": {"description": "Too busy", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "503": {"description": "Predictor unavailable", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    }
  },
  "definitions": {
    "UploadSpectrogramResponse": {"type": "object", "properties": {"message": {"type": "string"}, "md5": {"type": "string"}}},
    "UploadModelResponse": {"type": "object", "properties": {"message": {"type": "string"}, "path": {"type": "string"}}},
    "Model": {"type": "object", "properties": {
      "id": {"type": "string"}, "project": {"type": "string"}, "path": {"type": "string"},
      "format": {"type": "string"}, "size_bytes": {"type": "integer"}
    }},
    "ModelsResponse": {"type": "object", "properties": {"models": {"type": "array", "items": {"$ref": "#/definitions/Model"}}}},
    "PredictRequest": {"type": "object", "properties": {"data": {"type": "array", "items": {"type": "number"}}}},
    "PredictResponse": {"type": "object", "properties": {"predictions": {"type": "array", "items": {"type": "number"}}}},
    "ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}}
  }
}`
