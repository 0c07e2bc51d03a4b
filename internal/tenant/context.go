package tenant

import (
	"context"
	"strings"

	"github.com/comanda-app/backend-comanda/internal/db"
)

type contextKey string

const (
	slugContextKey          contextKey = "tenant.slug"
	establishmentContextKey contextKey = "tenant.establishment"
)

// WithSlug stores the establishment slug inside the context.
func WithSlug(ctx context.Context, slug string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, slugContextKey, slug)
}

// From extracts the establishment slug from the context if available.
func From(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	slug, ok := ctx.Value(slugContextKey).(string)
	if !ok {
		return "", false
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return "", false
	}
	return slug, true
}

// WithEstablishment stores the resolved establishment inside the context.
func WithEstablishment(ctx context.Context, e db.Establishment) context.Context {
	return context.WithValue(ctx, establishmentContextKey, e)
}

// Establishment extracts the resolved establishment from the context.
func Establishment(ctx context.Context) (db.Establishment, bool) {
	if ctx == nil {
		return db.Establishment{}, false
	}
	e, ok := ctx.Value(establishmentContextKey).(db.Establishment)
	return e, ok
}

// PrefixKey creates a namespaced cache/queue key per establishment slug.
func PrefixKey(slug, key string) string {
	if slug == "" {
		return key
	}
	return slug + ":" + key
}
