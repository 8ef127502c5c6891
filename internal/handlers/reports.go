package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/diewo77/go-fees/httpx"
	"github.com/diewo77/go-fees/internal/models"
	"github.com/diewo77/go-fees/internal/services"
)

type ReportHandler struct {
	svc *services.ReportService
	log *zap.Logger
}

func NewReportHandler(svc *services.ReportService, log *zap.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, log: log.Named("reports")}
}

// Generate serves GET /api/reports/{type}. Query filters: start_date, end_date
// (YYYY-MM-DD, inclusive), academic_year_id, class_id and payment_method.
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	p, err := reportParams(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	rep, err := h.svc.Generate(r.Context(), p)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

func reportParams(r *http.Request) (services.ReportParams, error) {
	p := services.ReportParams{
		Type:          services.ReportType(r.PathValue("type")),
		PaymentMethod: models.PaymentMethod(r.URL.Query().Get("payment_method")),
	}
	var err error
	if p.StartDate, err = queryDate(r, "start_date", false); err != nil {
		return p, err
	}
	if p.EndDate, err = queryDate(r, "end_date", true); err != nil {
		return p, err
	}
	if p.AcademicYearID, err = queryID(r, "academic_year_id"); err != nil {
		return p, err
	}
	if p.ClassID, err = queryID(r, "class_id"); err != nil {
		return p, err
	}
	return p, nil
}
