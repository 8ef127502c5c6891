package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/diewo77/go-fees/httpx"
	"github.com/diewo77/go-fees/internal/models"
	"github.com/diewo77/go-fees/internal/services"
)

type PaymentHandler struct {
	svc *services.PaymentService
	log *zap.Logger
}

func NewPaymentHandler(svc *services.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, log: log.Named("payments")}
}

type componentPaymentRequest struct {
	FeeComponentID uuid.UUID       `json:"fee_component_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0,money"`
}

type paymentRequest struct {
	StudentFeeID         uuid.UUID                 `json:"student_fee_id" validate:"required"`
	Amount               decimal.Decimal           `json:"amount" validate:"gt=0,money"`
	PaymentMethod        models.PaymentMethod      `json:"payment_method" validate:"required"`
	PaymentDate          *time.Time                `json:"payment_date"`
	Notes                string                    `json:"notes" validate:"max=1000"`
	FeeComponentPayments []componentPaymentRequest `json:"fee_component_payments" validate:"omitempty,dive"`
}

// Record records a payment against a student fee.
func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decode(w, r, &req) {
		return
	}
	in := services.RecordPaymentInput{
		StudentFeeID: req.StudentFeeID,
		Amount:       req.Amount,
		Method:       req.PaymentMethod,
		ReceivedBy:   currentUser(r),
		Notes:        req.Notes,
	}
	if req.PaymentDate != nil {
		in.PaymentDate = *req.PaymentDate
	}
	for _, cp := range req.FeeComponentPayments {
		in.ComponentPayments = append(in.ComponentPayments, services.ComponentPayment{
			FeeComponentID: cp.FeeComponentID,
			Amount:         cp.Amount,
		})
	}
	p, err := h.svc.RecordPayment(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// ListForFee lists the payments of the student fee in the path.
func (h *PaymentHandler) ListForFee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := h.svc.ListPayments(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *PaymentHandler) RetrySync(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.RetrySync(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
