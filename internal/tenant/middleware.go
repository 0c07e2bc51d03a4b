package tenant

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/db"
)

// Loader looks an establishment up by slug.
type Loader interface {
	GetEstablishmentBySlug(ctx context.Context, slug string) (db.Establishment, error)
}

// Resolver resolves the establishment for a request from either the
// X-Establishment header or the request subdomain. There is no fallback:
// storefront routes without a resolvable establishment are rejected.
type Resolver struct {
	HeaderName string
	RootDomain string
	Store      Loader
}

// NewResolver returns a resolver configured with the provided header name and
// root domain. If headerName is empty, "X-Establishment" is used.
func NewResolver(headerName, rootDomain string, store Loader) *Resolver {
	if headerName == "" {
		headerName = "X-Establishment"
	}
	return &Resolver{
		HeaderName: headerName,
		RootDomain: strings.ToLower(strings.TrimSpace(rootDomain)),
		Store:      store,
	}
}

// Middleware resolves the establishment and injects both its slug and row
// into the context passed downstream.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		slug := r.Resolve(req)
		if slug == "" {
			common.JSONError(w, http.StatusBadRequest, "ESTABLISHMENT_REQUIRED",
				"request is missing an establishment", nil)
			return
		}
		e, err := r.Store.GetEstablishmentBySlug(req.Context(), slug)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				common.JSONError(w, http.StatusNotFound, "ESTABLISHMENT_NOT_FOUND",
					"unknown establishment", nil)
				return
			}
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL",
				"failed to resolve establishment", nil)
			return
		}
		ctx := WithSlug(req.Context(), e.Slug)
		ctx = WithEstablishment(ctx, e)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// Resolve attempts to find the establishment slug from the configured header
// or the request subdomain.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if slug := strings.TrimSpace(req.Header.Get(r.HeaderName)); slug != "" {
		return slug
	}

	host := hostWithoutPort(req.Host)
	if host == "" {
		return ""
	}
	return strings.TrimSpace(r.subdomainFromHost(host))
}

func (r *Resolver) subdomainFromHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}

	if r.RootDomain != "" {
		if host == r.RootDomain {
			return ""
		}
		suffix := "." + r.RootDomain
		if strings.HasSuffix(host, suffix) {
			host = strings.TrimSuffix(host, suffix)
		} else {
			return ""
		}
	}

	parts := strings.Split(host, ".")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func hostWithoutPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if strings.HasPrefix(hostport, "[") {
		if idx := strings.Index(hostport, "]"); idx != -1 {
			host := hostport[1:idx]
			if host != "" {
				return host
			}
		}
	}
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	if idx := strings.Index(hostport, ":"); idx != -1 && strings.Count(hostport, ":") == 1 {
		return hostport[:idx]
	}
	return hostport
}
