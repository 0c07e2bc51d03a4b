package common

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey string

const staffKey ctxKey = "auth/staff"

// StaffClaims identifies an authenticated back-office user. EstablishmentID
// is empty for master admins.
type StaffClaims struct {
	UserID          string
	EstablishmentID string
	Role            string
}

// WithStaff stores the authenticated staff identity on the provided context.
func WithStaff(ctx context.Context, claims StaffClaims) context.Context {
	return context.WithValue(ctx, staffKey, claims)
}

// Staff extracts the authenticated staff identity from the context if present.
func Staff(ctx context.Context) (StaffClaims, bool) {
	v := ctx.Value(staffKey)
	if v == nil {
		return StaffClaims{}, false
	}
	claims, ok := v.(StaffClaims)
	return claims, ok
}

// RequireEstablishment extracts the staff user's establishment, writing a
// FORBIDDEN response when the caller is not establishment-scoped staff.
func RequireEstablishment(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims, ok := Staff(r.Context())
	if !ok || claims.EstablishmentID == "" {
		JSONError(w, http.StatusForbidden, "FORBIDDEN", "establishment staff only", nil)
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(claims.EstablishmentID)
	if err != nil {
		JSONError(w, http.StatusForbidden, "FORBIDDEN", "invalid establishment claim", nil)
		return uuid.UUID{}, false
	}
	return id, true
}
