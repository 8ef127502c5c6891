package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/internal/models"
	"github.com/diewo77/go-fees/internal/notify"
)

// Notifier delivers a message over a channel. *notify.Registry implements it.
type Notifier interface {
	Send(ctx context.Context, ch notify.Channel, to, body string) error
}

// ReminderService sends balance reminders and records them on the student fee.
type ReminderService struct {
	db       *gorm.DB
	dir      Directory
	notifier Notifier
	opts     Options
	log      *zap.Logger
}

func NewReminderService(db *gorm.DB, dir Directory, notifier Notifier, opts Options) *ReminderService {
	opts = opts.withDefaults()
	return &ReminderService{db: db, dir: dir, notifier: notifier, opts: opts, log: opts.Logger.Named("reminder")}
}

// ReminderInput describes one reminder to send.
type ReminderInput struct {
	StudentFeeID  uuid.UUID
	InstallmentID *uuid.UUID
	Channel       notify.Channel
	// Message defaults to a balance summary.
	Message string
	Type    models.ReminderType
	UserID  uuid.UUID
}

// DueReminder is an unpaid installment that falls inside its schedule's reminder window.
type DueReminder struct {
	StudentFeeID    uuid.UUID       `json:"student_fee_id"`
	StudentID       uuid.UUID       `json:"student_id"`
	InstallmentID   uuid.UUID       `json:"installment_id"`
	InstallmentName string          `json:"installment_name"`
	DueDate         time.Time       `json:"due_date"`
	Balance         decimal.Decimal `json:"balance"`
}

// Send delivers a reminder and appends it to the fee's reminder log. A delivery
// failure is recorded on the reminder, not returned.
func (s *ReminderService) Send(ctx context.Context, in ReminderInput) (*models.StudentFeeReminder, error) {
	fee, err := loadStudentFee(s.db.WithContext(ctx), in.StudentFeeID)
	if err != nil {
		return nil, err
	}
	student, err := s.dir.GetStudent(ctx, fee.StudentID)
	if err != nil {
		return nil, classify("load student", err)
	}
	if in.Type == "" {
		in.Type = models.ReminderTypeManual
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		msg = s.defaultMessage(student, fee, in.InstallmentID)
	}
	to := recipient(student, in.Channel)

	rem := &models.StudentFeeReminder{
		Base:          models.Base{ID: uuid.New()},
		StudentFeeID:  fee.ID,
		InstallmentID: in.InstallmentID,
		Type:          in.Type,
		Channel:       string(in.Channel),
		Recipient:     to,
		Message:       msg,
		SentBy:        in.UserID,
		SentAt:        s.opts.Now(),
	}
	if err := s.notifier.Send(ctx, in.Channel, to, msg); err != nil {
		rem.Error = clip(err.Error(), 500)
		s.log.Warn("reminder not delivered",
			zap.String("student_fee_id", fee.ID.String()),
			zap.String("channel", string(in.Channel)),
			zap.Error(err))
	} else {
		rem.Delivered = true
	}
	if err := s.db.WithContext(ctx).Create(rem).Error; err != nil {
		return nil, persistence("record reminder", err)
	}
	return rem, nil
}

// Due lists the unpaid installments, on fees under an active schedule with
// reminders enabled, whose due date is at most ReminderDays away or already
// past. Installments reminded about during the last day are left out.
func (s *ReminderService) Due(ctx context.Context, now time.Time) ([]DueReminder, error) {
	var schedules []models.FeeSchedule
	if err := s.db.WithContext(ctx).
		Where("is_active = ? AND enable_reminders = ?", true, true).
		Find(&schedules).Error; err != nil {
		return nil, persistence("list schedules", err)
	}
	var out []DueReminder
	for _, sched := range schedules {
		horizon := now.AddDate(0, 0, sched.ReminderDays)
		var fees []models.StudentFee
		if err := s.db.WithContext(ctx).
			Preload("Installments", byPosition).
			Preload("Reminders", "sent_at > ?", now.Add(-24*time.Hour)).
			Where("fee_schedule_id = ? AND status <> ?", sched.ID, models.FeeStatusPaid).
			Find(&fees).Error; err != nil {
			return nil, persistence("list student fees", err)
		}
		for _, fee := range fees {
			recent := make(map[uuid.UUID]bool)
			for _, r := range fee.Reminders {
				if r.InstallmentID != nil {
					recent[*r.InstallmentID] = true
				}
			}
			for _, in := range fee.Installments {
				if !in.Balance.IsPositive() || in.DueDate.After(horizon) || recent[in.ID] {
					continue
				}
				out = append(out, DueReminder{
					StudentFeeID:    fee.ID,
					StudentID:       fee.StudentID,
					InstallmentID:   in.ID,
					InstallmentName: in.Name,
					DueDate:         in.DueDate,
					Balance:         in.Balance,
				})
			}
		}
	}
	return out, nil
}

// SendDue sends an automatic reminder for every entry returned by Due and
// reports how many were delivered.
func (s *ReminderService) SendDue(ctx context.Context, ch notify.Channel, userID uuid.UUID) (int, error) {
	due, err := s.Due(ctx, s.opts.Now())
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, d := range due {
		id := d.InstallmentID
		rem, err := s.Send(ctx, ReminderInput{
			StudentFeeID:  d.StudentFeeID,
			InstallmentID: &id,
			Channel:       ch,
			Type:          models.ReminderTypeAutomatic,
			UserID:        userID,
		})
		if err != nil {
			return delivered, err
		}
		if rem.Delivered {
			delivered++
		}
	}
	return delivered, nil
}

func (s *ReminderService) defaultMessage(student *models.Student, fee *models.StudentFee, installmentID *uuid.UUID) string {
	if installmentID != nil {
		for _, in := range fee.Installments {
			if in.ID == *installmentID {
				return fmt.Sprintf("Dear parent of %s, %s of %s %s is due on %s.",
					student.Name, in.Name, s.opts.Currency, in.Balance.StringFixed(s.opts.Places), in.DueDate.Format("2006-01-02"))
			}
		}
	}
	return fmt.Sprintf("Dear parent of %s, the outstanding school fee balance is %s %s, due on %s.",
		student.Name, s.opts.Currency, fee.Balance.StringFixed(s.opts.Places), fee.DueDate.Format("2006-01-02"))
}

func recipient(st *models.Student, ch notify.Channel) string {
	switch ch {
	case notify.ChannelEmail:
		return st.Email
	case notify.ChannelSMS, notify.ChannelWhatsApp:
		return st.Phone
	default:
		return st.Name
	}
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
