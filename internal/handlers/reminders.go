package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diewo77/go-fees/httpx"
	"github.com/diewo77/go-fees/internal/notify"
	"github.com/diewo77/go-fees/internal/services"
)

type ReminderHandler struct {
	svc            *services.ReminderService
	defaultChannel notify.Channel
	now            func() time.Time
	log            *zap.Logger
}

// NewReminderHandler uses defaultChannel when a request names none.
func NewReminderHandler(svc *services.ReminderService, defaultChannel notify.Channel, now func() time.Time, log *zap.Logger) *ReminderHandler {
	if defaultChannel == "" {
		defaultChannel = notify.ChannelConsole
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ReminderHandler{svc: svc, defaultChannel: defaultChannel, now: now, log: log.Named("reminders")}
}

type reminderRequest struct {
	Channel       string     `json:"channel" validate:"omitempty,oneof=sms whatsapp email console"`
	Message       string     `json:"message" validate:"max=1000"`
	InstallmentID *uuid.UUID `json:"installment_id"`
}

type sendDueRequest struct {
	Channel string `json:"channel" validate:"omitempty,oneof=sms whatsapp email console"`
}

func (h *ReminderHandler) channel(raw string) (notify.Channel, error) {
	if raw == "" {
		return h.defaultChannel, nil
	}
	ch, err := notify.ParseChannel(raw)
	if err != nil {
		return "", &services.InvalidArgumentError{Field: "channel", Reason: err.Error()}
	}
	return ch, nil
}

// Send reminds the guardian of the student fee in the path.
func (h *ReminderHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req reminderRequest
	if !decode(w, r, &req) {
		return
	}
	ch, err := h.channel(req.Channel)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	rem, err := h.svc.Send(r.Context(), services.ReminderInput{
		StudentFeeID:  id,
		InstallmentID: req.InstallmentID,
		Channel:       ch,
		Message:       req.Message,
		UserID:        currentUser(r),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rem)
}

func (h *ReminderHandler) Due(w http.ResponseWriter, r *http.Request) {
	due, err := h.svc.Due(r.Context(), h.now())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if due == nil {
		due = []services.DueReminder{}
	}
	httpx.JSON(w, http.StatusOK, due)
}

func (h *ReminderHandler) SendDue(w http.ResponseWriter, r *http.Request) {
	var req sendDueRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	ch, err := h.channel(req.Channel)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	n, err := h.svc.SendDue(r.Context(), ch, currentUser(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"delivered": n})
}
