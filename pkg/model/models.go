package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ConditionType is the medical category a tracking record belongs to
type ConditionType string

const (
	ConditionEpilepsy ConditionType = "epilepsy"
	ConditionDiabetes ConditionType = "diabetes"
	ConditionMigraine ConditionType = "migraine"
	ConditionCustom   ConditionType = "custom"
)

// ConditionTypes lists every supported condition type
var ConditionTypes = []ConditionType{
	ConditionEpilepsy,
	ConditionDiabetes,
	ConditionMigraine,
	ConditionCustom,
}

// ParseConditionType validates a raw condition type string
func ParseConditionType(s string) (ConditionType, error) {
	ct := ConditionType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ConditionTypes {
		if ct == known {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unknown condition type: %q", s)
}

// SeizureTrackerFields holds the source-specific sub-objects of a seizure tracker export.
// Both are kept verbatim.
type SeizureTrackerFields struct {
	Postictal json.RawMessage `json:"postictal,omitempty"`
	Location  json.RawMessage `json:"location,omitempty"`
}

// CustomFields is the typed per-source field table of an entry.
// Unknown keys land in Extra.
type CustomFields struct {
	SeizureTracker *SeizureTrackerFields       `json:"seizureTracker,omitempty"`
	Extra          map[string]json.RawMessage `json:"extra,omitempty"`
}

// IsEmpty reports whether no custom field is set
func (c CustomFields) IsEmpty() bool {
	return c.SeizureTracker == nil && len(c.Extra) == 0
}

// TrackingEntry is one dated observation (a seizure, a glucose reading, a migraine...)
type TrackingEntry struct {
	Date         time.Time    `json:"date"`
	Type         string       `json:"type"`
	Duration     *float64     `json:"duration"`
	Severity     *int         `json:"severity"`
	Value        *float64     `json:"value"`
	Triggers     []string     `json:"triggers"`
	Notes        string       `json:"notes"`
	CustomFields CustomFields `json:"customFields"`
}

// Medication is a medication attached to a tracking record
type Medication struct {
	Name        string   `json:"name"`
	Dose        string   `json:"dose"`
	DoseValue   *float64 `json:"doseValue"`
	DoseUnit    string   `json:"doseUnit"`
	Frequency   string   `json:"frequency"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	SideEffects []string `json:"sideEffects"`
	Notes       string   `json:"notes"`
}

// ImportMetadata describes where the data of a tracking record came from
type ImportMetadata struct {
	Source           string     `json:"source,omitempty"`
	ImportDate       *time.Time `json:"importDate,omitempty"`
	OriginalFilename string     `json:"originalFilename,omitempty"`
	PatientName      string     `json:"patientName,omitempty"`
	Version          string     `json:"version,omitempty"`
	ArchivePath      string     `json:"archivePath,omitempty"`
}

// Insight is a short advisory message summarizing a pattern in the data
type Insight struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// InsightSource records which generator produced a set of insights
type InsightSource string

const (
	InsightSourceModel    InsightSource = "model"
	InsightSourceFallback InsightSource = "fallback"
)

// TrackingRecord is the per-patient, per-condition document
type TrackingRecord struct {
	PatientID           string          `json:"patientId"`
	ConditionType       ConditionType   `json:"conditionType"`
	Entries             []TrackingEntry `json:"entries"`
	Medications         []Medication    `json:"medications"`
	Metadata            ImportMetadata  `json:"metadata"`
	Insights            []Insight       `json:"insights,omitempty"`
	InsightsGeneratedAt *time.Time      `json:"insightsGeneratedAt,omitempty"`
	InsightsLanguage    string          `json:"insightsLanguage,omitempty"`
	InsightsSource      InsightSource   `json:"insightsSource,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Trend is the direction of event frequency between two consecutive 3-month windows
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendWorsening Trend = "worsening"
	TrendStable    Trend = "stable"
)

// DescriptiveStats holds basic statistical measures of a numeric entry field
type DescriptiveStats struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Statistics is derived from an entry list and never persisted
type Statistics struct {
	TotalEvents    int               `json:"totalEvents"`
	DaysSinceLast  *int              `json:"daysSinceLast"`
	MonthlyAvg     float64           `json:"monthlyAvg"`
	Trend          *Trend            `json:"trend"`
	TrendPercent   *int              `json:"trendPercent"`
	MostCommonType *string           `json:"mostCommonType"`
	MostCommonHour *int              `json:"mostCommonHour"`
	TypeCounts     map[string]int    `json:"typeCounts"`
	HourCounts     [24]int           `json:"hourCounts"`
	RecentCount    int               `json:"recentCount"`
	PreviousCount  int               `json:"previousCount"`
	FirstEventDate *time.Time        `json:"firstEventDate"`
	LastEventDate  *time.Time        `json:"lastEventDate"`
	Values         *DescriptiveStats `json:"values,omitempty"`
	Durations      *DescriptiveStats `json:"durations,omitempty"`
	Severities     *DescriptiveStats `json:"severities,omitempty"`
}

// Note is a free-form patient note
type Note struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRolePatient   MessageRole = "patient"
	MessageRoleCareTeam  MessageRole = "care_team"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a chat-style message in a patient's thread
type Message struct {
	ID        string      `json:"id"`
	PatientID string      `json:"patient_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// RarescopeAnswer is one answered question of the Rarescope questionnaire
type RarescopeAnswer struct {
	QuestionID string   `json:"question_id"`
	Value      string   `json:"value,omitempty"`
	Values     []string `json:"values,omitempty"`
}

// RarescopeResponse is a patient's structured-needs questionnaire
type RarescopeResponse struct {
	ID          string            `json:"id"`
	PatientID   string            `json:"patient_id"`
	Answers     []RarescopeAnswer `json:"answers"`
	Language    string            `json:"language"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
