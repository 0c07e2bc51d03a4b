package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/obs"
)

// Recorder records mutating back-office requests after they complete.
type Recorder struct {
	Service Service
	OnError func(error)
}

// Middleware audits POST/PUT/PATCH/DELETE requests. Reads are not recorded.
func (rec Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rec.Service.Enabled || !mutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		recorder := obs.NewStatusRecorder(w)
		next.ServeHTTP(recorder, r)

		route := obs.RoutePatternFromContext(r.Context())
		if route == "" {
			route = r.URL.Path
		}

		entry := Entry{
			Method:    r.Method,
			Route:     route,
			Status:    recorder.Status(),
			IP:        common.ClientIP(r),
			RequestID: middleware.GetReqID(r.Context()),
		}
		if claims, ok := common.Staff(r.Context()); ok {
			entry.ActorRole = claims.Role
			if id, err := uuid.Parse(claims.UserID); err == nil {
				entry.ActorID = &id
			}
			if est, err := uuid.Parse(claims.EstablishmentID); err == nil {
				entry.EstablishmentID = &est
			}
		}

		if err := rec.Service.Record(r.Context(), entry); err != nil && rec.OnError != nil {
			rec.OnError(err)
		}
	})
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
