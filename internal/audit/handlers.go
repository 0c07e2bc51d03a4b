package audit

import (
	"net/http"

	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/db"
)

// Handler exposes the audit trail to establishment owners.
type Handler struct {
	Q Store
}

// List returns the establishment's audit entries, newest first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	rows, err := h.Q.ListAuditLogs(r.Context(), db.ListAuditLogsParams{
		EstablishmentID: establishmentID,
		Limit:           int32(perPage),
		Offset:          int32((page - 1) * perPage),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit entries", nil)
		return
	}
	if rows == nil {
		rows = []db.AuditLog{}
	}
	common.JSONData(w, http.StatusOK, rows)
}
