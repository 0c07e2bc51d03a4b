package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditLog is one recorded back-office action.
type AuditLog struct {
	ID              uuid.UUID  `json:"id"`
	EstablishmentID *uuid.UUID `json:"establishmentId,omitempty"`
	ActorID         *uuid.UUID `json:"actorId,omitempty"`
	ActorRole       string     `json:"actorRole"`
	Action          string     `json:"action"`
	Resource        string     `json:"resource"`
	ResourceID      *string    `json:"resourceId,omitempty"`
	Method          string     `json:"method"`
	Route           string     `json:"route"`
	Status          int32      `json:"status"`
	IP              *string    `json:"ip,omitempty"`
	RequestID       *string    `json:"requestId,omitempty"`
	Metadata        []byte     `json:"metadata,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// InsertAuditLogParams describes a new audit entry.
type InsertAuditLogParams struct {
	EstablishmentID *uuid.UUID
	ActorID         *uuid.UUID
	ActorRole       string
	Action          string
	Resource        string
	ResourceID      *string
	Method          string
	Route           string
	Status          int32
	IP              *string
	RequestID       *string
	Metadata        []byte
}

const auditCols = `id, establishment_id, actor_id, actor_role, action, resource,
	resource_id, method, route, status, ip, request_id, metadata, created_at`

func scanAuditLog(row interface{ Scan(dest ...any) error }) (AuditLog, error) {
	var a AuditLog
	err := row.Scan(&a.ID, &a.EstablishmentID, &a.ActorID, &a.ActorRole, &a.Action,
		&a.Resource, &a.ResourceID, &a.Method, &a.Route, &a.Status, &a.IP,
		&a.RequestID, &a.Metadata, &a.CreatedAt)
	return a, err
}

// InsertAuditLog records one back-office action.
func (s *Store) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (AuditLog, error) {
	var metadata any
	if len(arg.Metadata) > 0 {
		metadata = string(arg.Metadata)
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO audit_log (establishment_id, actor_id, actor_role, action,
			resource, resource_id, method, route, status, ip, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)
		RETURNING `+auditCols,
		arg.EstablishmentID, arg.ActorID, arg.ActorRole, arg.Action, arg.Resource,
		arg.ResourceID, arg.Method, arg.Route, arg.Status, arg.IP, arg.RequestID, metadata)
	return scanAuditLog(row)
}

// ListAuditLogsParams paginates audit entries for one establishment.
type ListAuditLogsParams struct {
	EstablishmentID uuid.UUID
	Limit           int32
	Offset          int32
}

// ListAuditLogs returns entries newest first.
func (s *Store) ListAuditLogs(ctx context.Context, arg ListAuditLogsParams) ([]AuditLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+auditCols+` FROM audit_log
		WHERE establishment_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		arg.EstablishmentID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
