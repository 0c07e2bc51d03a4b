// Package audit records back-office actions so owners can answer "who
// changed what" for their establishment.
package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/comanda-app/backend-comanda/internal/db"
)

// Store defines the database operations required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, arg db.InsertAuditLogParams) (db.AuditLog, error)
	ListAuditLogs(ctx context.Context, arg db.ListAuditLogsParams) ([]db.AuditLog, error)
}

// Entry is one action to record.
type Entry struct {
	EstablishmentID *uuid.UUID
	ActorID         *uuid.UUID
	ActorRole       string
	Action          string
	Resource        string
	ResourceID      string
	Method          string
	Route           string
	Status          int
	IP              string
	RequestID       string
	Metadata        []byte
}

// Service persists audit entries.
type Service struct {
	Q       Store
	Enabled bool
}

// Record persists one entry when auditing is enabled.
func (s Service) Record(ctx context.Context, e Entry) error {
	if !s.Enabled {
		return nil
	}
	if s.Q == nil {
		return errors.New("audit: store not configured")
	}
	action := strings.TrimSpace(e.Action)
	if action == "" {
		action = strings.ToUpper(e.Method) + " " + e.Route
	}
	_, err := s.Q.InsertAuditLog(ctx, db.InsertAuditLogParams{
		EstablishmentID: e.EstablishmentID,
		ActorID:         e.ActorID,
		ActorRole:       e.ActorRole,
		Action:          action,
		Resource:        resourceFromRoute(e.Resource, e.Route),
		ResourceID:      optional(e.ResourceID),
		Method:          e.Method,
		Route:           e.Route,
		Status:          int32(e.Status),
		IP:              optional(e.IP),
		RequestID:       optional(e.RequestID),
		Metadata:        e.Metadata,
	})
	return err
}

// resourceFromRoute derives a dotted resource name from the route pattern
// when the caller did not name one, e.g. /api/v1/admin/orders/{id} becomes
// admin.orders.
func resourceFromRoute(resource, route string) string {
	if trimmed := strings.TrimSpace(resource); trimmed != "" {
		return trimmed
	}
	segments := strings.Split(strings.Trim(route, "/"), "/")
	var kept []string
	for _, seg := range segments {
		if seg == "" || seg == "api" || seg == "v1" || strings.HasPrefix(seg, "{") {
			continue
		}
		kept = append(kept, seg)
	}
	if len(kept) == 0 {
		return "unknown"
	}
	return strings.Join(kept, ".")
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
