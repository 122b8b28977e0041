package api

import (
	"strings"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks"`
}

// ListQuery pages a list endpoint.
type ListQuery struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=1000"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

// ExpandQuery controls reference expansion on resource routes.
type ExpandQuery struct {
	Expand      string `query:"expand" validate:"omitempty,max=512"`
	Depth       int    `query:"depth" validate:"omitempty,min=0,max=10"`
	MaxRequests int    `query:"max_requests" validate:"omitempty,min=1,max=1000"`
	Concurrency int    `query:"concurrency" validate:"omitempty,min=1,max=32"`
}

// Paths splits the comma separated expand parameter.
func (q ExpandQuery) Paths() []string {
	var paths []string
	for _, p := range strings.Split(q.Expand, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Requested reports whether the caller asked for an expansion.
func (q ExpandQuery) Requested() bool {
	return q.Expand != "" || q.Depth > 0
}

// PokemonSearchQuery filters pokemon.
type PokemonSearchQuery struct {
	Prefix  string `query:"prefix" validate:"omitempty,max=64"`
	Type    string `query:"type" validate:"omitempty,max=32"`
	Ability string `query:"ability" validate:"omitempty,max=64"`
	Limit   int    `query:"limit" validate:"omitempty,min=1,max=1000"`
	Offset  int    `query:"offset" validate:"omitempty,min=0"`
}

// GenerationSearchQuery filters generations.
type GenerationSearchQuery struct {
	Prefix string `query:"prefix" validate:"omitempty,max=64"`
	Region string `query:"region" validate:"omitempty,max=32"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=1000"`
	Offset int    `query:"offset" validate:"omitempty,min=0"`
}

// RankingsQuery selects a pokedex and the stat to rank by.
type RankingsQuery struct {
	Pokedex     string `query:"pokedex" validate:"omitempty,max=64"`
	Generation  int    `query:"generation" validate:"omitempty,min=1,max=99"`
	SortBy      string `query:"sort_by" validate:"omitempty,sort_by"`
	Concurrency int    `query:"concurrency" validate:"omitempty,min=1,max=32"`
}

// DetailQuery selects one pokemon of a pokedex.
type DetailQuery struct {
	Pokedex      string `query:"pokedex" validate:"omitempty,max=64"`
	Generation   int    `query:"generation" validate:"omitempty,min=1,max=99"`
	Number       int    `query:"number" validate:"omitempty,min=1"`
	Name         string `query:"name" validate:"omitempty,max=64"`
	VersionGroup string `query:"version_group" validate:"omitempty,max=64"`
	Sprite       string `query:"sprite" validate:"omitempty,max=64"`
}

// PrefetchRequest asks a worker to warm a resource.
type PrefetchRequest struct {
	Endpoint string   `json:"endpoint" validate:"required,max=64,excludesall=/?#"`
	ID       string   `json:"id" validate:"required,max=128,excludesall=/?#"`
	Expand   []string `json:"expand,omitempty" validate:"omitempty,max=16,dive,required,max=128"`
	Depth    int      `json:"depth,omitempty" validate:"omitempty,min=0,max=10"`
}

// PrefetchResponse acknowledges a queued prefetch.
type PrefetchResponse struct {
	MessageID string `json:"message_id"`
	Endpoint  string `json:"endpoint"`
	ID        string `json:"id"`
}

// InvalidateResponse reports what a cache invalidation removed.
type InvalidateResponse struct {
	Path          string `json:"path"`
	KeysRemoved   int    `json:"keys_removed"`
	StoreRemoved  bool   `json:"store_removed"`
	ClientCleared bool   `json:"client_cleared"`
}

// Error codes
const (
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInternalError  = "INTERNAL_ERROR"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeUpstream       = "UPSTREAM_ERROR"
	ErrCodeUnavailable    = "UNAVAILABLE"
)

// NewErrorResponse creates a new error response
func NewErrorResponse(err string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: err,
		Code:  code,
	}
}

// NewErrorResponseWithMessage creates a new error response with a detail message
func NewErrorResponseWithMessage(err string, code string, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   err,
		Code:    code,
		Message: message,
	}
}
