package analytics

import (
	"net/http"
	"time"

	"github.com/comanda-app/backend-comanda/internal/common"
)

const dateLayout = "2006-01-02"

// Handler exposes dashboard reports to staff.
type Handler struct {
	Svc *Service
}

type salesDayView struct {
	Day     string `json:"day"`
	Orders  int64  `json:"orders"`
	Revenue string `json:"revenue"`
}

type topProductView struct {
	Name    string `json:"name"`
	Qty     int64  `json:"qty"`
	Revenue string `json:"revenue"`
}

// Sales handles GET /admin/analytics/sales?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Without bounds it reports the last seven days.
func (h Handler) Sales(w http.ResponseWriter, r *http.Request) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}

	now := h.Svc.now()
	to := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	from := to.AddDate(0, 0, -7)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_DATE", "from must be YYYY-MM-DD", nil)
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_DATE", "to must be YYYY-MM-DD", nil)
			return
		}
		to = parsed.Add(24 * time.Hour)
	}
	if !from.Before(to) {
		common.JSONError(w, http.StatusBadRequest, "INVALID_RANGE", "from must precede to", nil)
		return
	}

	rows, err := h.Svc.Sales(r.Context(), establishmentID, from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "REPORT_FAILED", "unable to compute sales report", nil)
		return
	}
	views := make([]salesDayView, 0, len(rows))
	for _, row := range rows {
		views = append(views, salesDayView{
			Day:     row.Day.Format(dateLayout),
			Orders:  row.Orders,
			Revenue: row.Revenue.StringFixed(2),
		})
	}
	common.JSONData(w, http.StatusOK, views)
}

// TopProducts handles GET /admin/analytics/top-products.
func (h Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	establishmentID, ok := common.RequireEstablishment(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 10)

	rows, err := h.Svc.TopProducts(r.Context(), establishmentID, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "REPORT_FAILED", "unable to compute top products", nil)
		return
	}
	views := make([]topProductView, 0, len(rows))
	for _, row := range rows {
		views = append(views, topProductView{
			Name:    row.Name,
			Qty:     row.Qty,
			Revenue: row.Revenue.StringFixed(2),
		})
	}
	common.JSONData(w, http.StatusOK, views)
}
