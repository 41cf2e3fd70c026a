// Package api holds the HTTP request and response types of the rarecare API.
// They mirror the schemas in openapi.yaml.
package api

import (
	"encoding/json"

	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeTooLarge   = "PAYLOAD_TOO_LARGE"
	CodeInternal   = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool    `json:"success"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// Envelope is the body of every successful JSON response
type Envelope struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message,omitempty"`
	Data     any             `json:"data,omitempty"`
	Stats    any             `json:"stats,omitempty"`
	Insights []model.Insight `json:"insights,omitempty"`
}

// EntryRequest is a manually added tracking entry
type EntryRequest struct {
	Date         string                     `json:"date" binding:"required"`
	Type         string                     `json:"type"`
	Duration     *float64                   `json:"duration"`
	Severity     *int                       `json:"severity" binding:"omitempty,min=1,max=10"`
	Value        *float64                   `json:"value"`
	Triggers     []string                   `json:"triggers"`
	Notes        string                     `json:"notes"`
	CustomFields map[string]json.RawMessage `json:"customFields"`
}

// ImportResponse describes the outcome of an import
type ImportResponse struct {
	ConditionType model.ConditionType `json:"conditionType"`
	Source        string              `json:"source"`
	Added         int                 `json:"added"`
	Skipped       int                 `json:"skipped"`
	Created       bool                `json:"created"`
	TotalEntries  int                 `json:"totalEntries"`
	ArchivePath   string              `json:"archivePath,omitempty"`
}

// RecordSummary pairs a tracking record with its statistics
type RecordSummary struct {
	Record *model.TrackingRecord `json:"record"`
	Stats  model.Statistics      `json:"stats"`
}

// RangeDeleteParams are the query parameters of a range deletion
type RangeDeleteParams struct {
	From types.Date `json:"from"`
	To   types.Date `json:"to"`
}

// RangeDeleteResponse reports how many entries a range deletion removed
type RangeDeleteResponse struct {
	From    types.Date `json:"from"`
	To      types.Date `json:"to"`
	Deleted int        `json:"deleted"`
}

// InsightsParams are the query parameters of insight generation
type InsightsParams struct {
	Lang    *string `form:"lang"`
	Refresh *bool   `form:"refresh"`
}

// InsightsResponse carries generated insights and where they came from
type InsightsResponse struct {
	Success     bool                `json:"success"`
	Insights    []model.Insight     `json:"insights"`
	Source      model.InsightSource `json:"source"`
	Language    string              `json:"language"`
	Cached      bool                `json:"cached"`
	GeneratedAt string              `json:"generatedAt"`
}

// NoteRequest creates or updates a note
type NoteRequest struct {
	Title   string   `json:"title" binding:"max=200"`
	Content string   `json:"content" binding:"required"`
	Tags    []string `json:"tags"`
}

// MessageRequest posts a message to a patient's thread
type MessageRequest struct {
	Role    model.MessageRole `json:"role"`
	Content string            `json:"content" binding:"required"`
}

// MessageListParams are the query parameters of the message list
type MessageListParams struct {
	Limit *int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// RarescopeRequest saves a patient's questionnaire answers
type RarescopeRequest struct {
	Answers   []model.RarescopeAnswer `json:"answers" binding:"required"`
	Language  string                  `json:"language"`
	Completed bool                    `json:"completed"`
}

// DeletionResponse reports what a patient-wide deletion removed
type DeletionResponse struct {
	PatientID types.UUID       `json:"patientId"`
	Deleted   map[string]int64 `json:"deleted"`
}

// HealthResponse is the body of the health check
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
	Model    string `json:"model,omitempty"`
	Service  string `json:"service"`
	Version  string `json:"version"`
}
