package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OperationType represents the type of operation performed
type OperationType string

const (
	OperationCreate OperationType = "CREATE"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
	OperationRead   OperationType = "READ"
	OperationImport OperationType = "IMPORT"
	OperationExport OperationType = "EXPORT"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTrackingRecord    ResourceType = "tracking_record"
	ResourceTrackingEntry     ResourceType = "tracking_entry"
	ResourceNote              ResourceType = "note"
	ResourceMessage           ResourceType = "message"
	ResourceRarescopeResponse ResourceType = "rarescope_response"
	ResourcePatient           ResourceType = "patient"
	ResourceReport            ResourceType = "report"
)

// Entry is one audit trail row
type Entry struct {
	PatientID      string
	OperationType  OperationType
	ResourceType   ResourceType
	ResourceID     string
	Timestamp      time.Time
	IPAddress      string
	UserAgent      string
	AdditionalData map[string]any
}

// Logger writes the audit trail to the audit_logs table and to the structured log.
// A Logger without a pool only writes to the structured log.
type Logger struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewLogger creates a new audit logger
func NewLogger(db *pgxpool.Pool, logger *zap.Logger) *Logger {
	return &Logger{
		db:     db,
		logger: logger,
	}
}

type clientKey struct{}

// Client identifies the caller of a request
type Client struct {
	IPAddress string
	UserAgent string
}

// WithClient attaches the caller to ctx so Log can fill in entries that lack it
func WithClient(ctx context.Context, client Client) context.Context {
	return context.WithValue(ctx, clientKey{}, client)
}

// ClientFrom returns the caller attached by WithClient
func ClientFrom(ctx context.Context) (Client, bool) {
	client, ok := ctx.Value(clientKey{}).(Client)
	return client, ok
}

// Log records an audit entry
func (l *Logger) Log(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if client, ok := ClientFrom(ctx); ok {
		if entry.IPAddress == "" {
			entry.IPAddress = client.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = client.UserAgent
		}
	}

	l.logger.Info("audit",
		zap.String("patient_id", entry.PatientID),
		zap.String("operation", string(entry.OperationType)),
		zap.String("resource_type", string(entry.ResourceType)),
		zap.String("resource_id", entry.ResourceID),
		zap.Time("timestamp", entry.Timestamp),
		zap.String("ip", entry.IPAddress),
		zap.Any("data", entry.AdditionalData),
	)

	if l.db == nil {
		return nil
	}

	var data []byte
	if len(entry.AdditionalData) > 0 {
		var err error
		if data, err = json.Marshal(entry.AdditionalData); err != nil {
			return fmt.Errorf("failed to marshal audit data: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (
			patient_id, operation_type, resource_type, resource_id,
			timestamp, ip_address, user_agent, additional_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := l.db.Exec(ctx, query,
		entry.PatientID,
		entry.OperationType,
		entry.ResourceType,
		entry.ResourceID,
		entry.Timestamp,
		entry.IPAddress,
		entry.UserAgent,
		data,
	)
	if err != nil {
		l.logger.Error("failed to write audit log",
			zap.Error(err),
			zap.String("patient_id", entry.PatientID),
			zap.String("operation", string(entry.OperationType)),
			zap.String("resource_type", string(entry.ResourceType)),
		)
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	return nil
}

// ForPatient returns up to limit audit entries of a patient, newest first
func (l *Logger) ForPatient(ctx context.Context, patientID string, limit int) ([]Entry, error) {
	if l.db == nil {
		return []Entry{}, nil
	}

	query := `
		SELECT patient_id, operation_type, resource_type, resource_id,
		       timestamp, ip_address, user_agent, additional_data
		FROM audit_logs
		WHERE patient_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := l.db.Query(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var data []byte
		if err := rows.Scan(
			&e.PatientID,
			&e.OperationType,
			&e.ResourceType,
			&e.ResourceID,
			&e.Timestamp,
			&e.IPAddress,
			&e.UserAgent,
			&data,
		); err != nil {
			l.logger.Error("failed to scan audit log", zap.Error(err))
			continue
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &e.AdditionalData)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
