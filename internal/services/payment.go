package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/internal/accounting"
	"github.com/diewo77/go-fees/internal/models"
)

// PaymentService records payments against student fees.
type PaymentService struct {
	db      *gorm.DB
	dir     Directory
	gateway accounting.Gateway
	opts    Options
	log     *zap.Logger
}

// NewPaymentService builds the service. A nil gateway disables external sync.
func NewPaymentService(db *gorm.DB, dir Directory, gateway accounting.Gateway, opts Options) *PaymentService {
	opts = opts.withDefaults()
	if gateway == nil {
		gateway = accounting.Noop{}
	}
	return &PaymentService{db: db, dir: dir, gateway: gateway, opts: opts, log: opts.Logger.Named("payment")}
}

// ComponentPayment directs part of a payment to one fee component.
type ComponentPayment struct {
	FeeComponentID uuid.UUID
	Amount         decimal.Decimal
}

// RecordPaymentInput describes a payment to record.
type RecordPaymentInput struct {
	StudentFeeID uuid.UUID
	Amount       decimal.Decimal
	Method       models.PaymentMethod
	// PaymentDate defaults to now.
	PaymentDate time.Time
	// ComponentPayments, when set, replaces the proportional split.
	ComponentPayments []ComponentPayment
	ReceivedBy        uuid.UUID
	Notes             string
}

// RecordPayment validates the amount, allocates it to the fee's components and
// installments, and stores the updated fee together with the payment in one
// transaction. The accounting sync runs after commit and only updates the
// payment's sync fields.
func (s *PaymentService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*models.Payment, error) {
	if !in.Method.Valid() {
		return nil, &InvalidArgumentError{Field: "payment_method", Reason: "unknown payment method " + string(in.Method)}
	}
	if !in.Amount.IsPositive() {
		return nil, &InvalidAmountError{Reason: "amount must be greater than zero"}
	}
	if !s.opts.exact(in.Amount) {
		return nil, &InvalidAmountError{Reason: "amount has more decimals than the currency allows"}
	}

	now := s.opts.Now()
	paidAt := in.PaymentDate
	if paidAt.IsZero() {
		paidAt = now
	}
	var (
		payment *models.Payment
		fee     *models.StudentFee
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		fee, err = loadStudentFee(tx, in.StudentFeeID)
		if err != nil {
			return err
		}
		if in.Amount.GreaterThan(fee.Balance) {
			return &InvalidAmountError{Reason: "amount " + in.Amount.String() + " exceeds balance " + fee.Balance.String()}
		}

		ref, rct, err := s.uniqueNumbers(tx, now)
		if err != nil {
			return err
		}

		allocations, err := s.allocate(fee, in)
		if err != nil {
			return err
		}
		CreditInstallments(fee.Installments, in.Amount)
		fee.AmountPaid = fee.AmountPaid.Add(in.Amount)
		fee.UpdatedBy = in.ReceivedBy
		RecomputeDerivedFields(fee, now)
		if err := saveStudentFee(tx, fee, now); err != nil {
			return err
		}

		paymentID := uuid.New()
		for i := range allocations {
			allocations[i].PaymentID = paymentID
		}
		payment = &models.Payment{
			Base:            models.Base{ID: paymentID},
			StudentID:       fee.StudentID,
			StudentFeeID:    fee.ID,
			AcademicYearID:  fee.AcademicYearID,
			Amount:          in.Amount,
			PaymentDate:     paidAt.UTC(),
			Method:          in.Method,
			ReferenceNumber: ref,
			ReceiptNumber:   rct,
			Status:          models.PaymentStatusCompleted,
			ReceivedBy:      in.ReceivedBy,
			Notes:           in.Notes,
			SyncStatus:      models.SyncStatusPending,
			Allocations:     allocations,
		}
		return tx.Create(payment).Error
	})
	if err != nil {
		return nil, classify("record payment", err)
	}
	s.log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("student_fee_id", fee.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("balance", fee.Balance.String()),
		zap.String("reference", payment.ReferenceNumber))

	s.applySync(ctx, fee, payment)
	return payment, nil
}

// allocate returns the per-component credit of the payment and applies it to fee.
func (s *PaymentService) allocate(fee *models.StudentFee, in RecordPaymentInput) ([]models.PaymentAllocation, error) {
	if len(in.ComponentPayments) > 0 {
		return s.allocateExplicit(fee, in)
	}
	balances := make([]decimal.Decimal, len(fee.Components))
	for i, c := range fee.Components {
		balances[i] = c.Balance
	}
	shares, err := ProportionalSplit(balances, in.Amount, s.opts.Places)
	if err != nil {
		return nil, err
	}
	var out []models.PaymentAllocation
	for i, share := range shares {
		if !share.IsPositive() {
			continue
		}
		c := &fee.Components[i]
		c.AmountPaid = c.AmountPaid.Add(share)
		out = append(out, models.PaymentAllocation{
			Base:           models.Base{ID: uuid.New()},
			FeeComponentID: c.ID,
			Name:           c.Name,
			Amount:         share,
		})
	}
	return out, nil
}

func (s *PaymentService) allocateExplicit(fee *models.StudentFee, in RecordPaymentInput) ([]models.PaymentAllocation, error) {
	perComponent := make(map[uuid.UUID]decimal.Decimal)
	total := decimal.Zero
	for _, cp := range in.ComponentPayments {
		c, ok := fee.Component(cp.FeeComponentID)
		if !ok {
			return nil, &InvalidAmountError{Reason: "fee component " + cp.FeeComponentID.String() + " is not part of this fee"}
		}
		if !cp.Amount.IsPositive() || !s.opts.exact(cp.Amount) {
			return nil, &InvalidAmountError{Reason: "allocation to " + c.Name + " must be a positive amount"}
		}
		sum := perComponent[c.ID].Add(cp.Amount)
		if sum.GreaterThan(c.Balance) {
			return nil, &InvalidAmountError{Reason: "allocation to " + c.Name + " exceeds its balance " + c.Balance.String()}
		}
		perComponent[c.ID] = sum
		total = total.Add(cp.Amount)
	}
	if !total.Equal(in.Amount) {
		return nil, &InvalidAmountError{Reason: "allocations total " + total.String() + " but payment is " + in.Amount.String()}
	}
	var out []models.PaymentAllocation
	for i := range fee.Components {
		c := &fee.Components[i]
		share, ok := perComponent[c.ID]
		if !ok {
			continue
		}
		c.AmountPaid = c.AmountPaid.Add(share)
		out = append(out, models.PaymentAllocation{
			Base:           models.Base{ID: uuid.New()},
			FeeComponentID: c.ID,
			Name:           c.Name,
			Amount:         share,
		})
	}
	return out, nil
}

// uniqueNumbers draws reference and receipt numbers until neither is taken.
func (s *PaymentService) uniqueNumbers(tx *gorm.DB, now time.Time) (string, string, error) {
	for range s.opts.NumberRetries {
		ref := models.ReferenceNumber(now, s.opts.RandIntn(10000))
		rct := models.ReceiptNumber(now, s.opts.RandIntn(10000))
		var n int64
		if err := tx.Model(&models.Payment{}).
			Where("reference_number = ? OR receipt_number = ?", ref, rct).
			Count(&n).Error; err != nil {
			return "", "", err
		}
		if n == 0 {
			return ref, rct, nil
		}
	}
	return "", "", &DuplicateError{Entity: "payment number", Key: "every generated reference"}
}

// GetPayment loads a payment with its allocations.
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).Preload("Allocations").First(&p, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("load payment", "payment", id, err)
	}
	return &p, nil
}

// ListPayments returns the payments of one student fee, oldest first.
func (s *PaymentService) ListPayments(ctx context.Context, studentFeeID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	if err := s.db.WithContext(ctx).Preload("Allocations").
		Where("student_fee_id = ?", studentFeeID).
		Order("payment_date, created_at").
		Find(&out).Error; err != nil {
		return nil, persistence("list payments", err)
	}
	return out, nil
}

// RetrySync pushes a payment that is not yet synced to the accounting system again.
func (s *PaymentService) RetrySync(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	p, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.SyncStatus == models.SyncStatusSynced {
		return p, nil
	}
	fee, err := loadStudentFee(s.db.WithContext(ctx), p.StudentFeeID)
	if err != nil {
		return nil, err
	}
	s.applySync(ctx, fee, p)
	return p, nil
}

// applySync runs the external sync and records its outcome on the payment.
// Failures end up in SyncError; they are never returned.
func (s *PaymentService) applySync(ctx context.Context, fee *models.StudentFee, p *models.Payment) {
	outcome := s.sync(ctx, fee, p)
	p.SyncStatus = models.SyncStatus(outcome.Status)
	p.SyncError = outcome.ErrorMessage()
	p.ExternalPaymentID = outcome.ExternalPaymentID
	updates := map[string]any{
		"sync_status":         p.SyncStatus,
		"sync_error":          p.SyncError,
		"external_payment_id": p.ExternalPaymentID,
	}
	if p.SyncStatus == models.SyncStatusSynced {
		now := s.opts.Now()
		p.SyncedAt = &now
		updates["synced_at"] = now
	}
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		s.log.Warn("could not store sync outcome", zap.String("payment_id", p.ID.String()), zap.Error(err))
	}
	if outcome.Err != nil {
		s.log.Warn("accounting sync failed", zap.String("payment_id", p.ID.String()), zap.Error(outcome.Err))
	}
}

func (s *PaymentService) sync(ctx context.Context, fee *models.StudentFee, p *models.Payment) accounting.SyncOutcome {
	if !s.gateway.Enabled() {
		return accounting.SyncOutcome{Status: accounting.SyncSkipped}
	}
	invoiceID, err := s.ensureInvoice(ctx, fee)
	if err != nil {
		return accounting.Failed(err)
	}
	extID, err := s.gateway.RecordPayment(ctx, accounting.PaymentRecord{
		PaymentID:   p.ID,
		InvoiceRef:  invoiceID,
		CustomerRef: fee.ExternalCustomerID,
		Amount:      p.Amount,
		Date:        p.PaymentDate,
		Method:      string(p.Method),
		Reference:   p.ReferenceNumber,
	})
	if err != nil {
		return accounting.Failed(err)
	}
	return accounting.SyncOutcome{Status: accounting.SyncSynced, ExternalPaymentID: extID}
}

// ensureInvoice creates the customer and invoice the first time a fee is synced.
func (s *PaymentService) ensureInvoice(ctx context.Context, fee *models.StudentFee) (string, error) {
	if fee.ExternalInvoiceID != "" {
		return fee.ExternalInvoiceID, nil
	}
	if fee.ExternalCustomerID == "" {
		student, err := s.dir.GetStudent(ctx, fee.StudentID)
		if err != nil {
			return "", errors.Wrap(err, "load student")
		}
		custID, err := s.gateway.CreateCustomer(ctx, accounting.Customer{
			StudentID: student.ID,
			Name:      student.Name,
			Email:     student.Email,
			Phone:     student.Phone,
		})
		if err != nil {
			return "", err
		}
		fee.ExternalCustomerID = custID
		s.storeExternalIDs(ctx, fee, map[string]any{"external_customer_id": custID})
	}
	lines := make([]accounting.InvoiceLine, len(fee.Components))
	for i, c := range fee.Components {
		lines[i] = accounting.InvoiceLine{Description: c.Name, Amount: c.Amount}
	}
	due := fee.DueDate
	invID, err := s.gateway.CreateInvoice(ctx, accounting.Invoice{
		StudentFeeID: fee.ID,
		CustomerRef:  fee.ExternalCustomerID,
		Lines:        lines,
		Total:        fee.TotalAmount,
		DueDate:      &due,
	})
	if err != nil {
		return "", err
	}
	fee.ExternalInvoiceID = invID
	s.storeExternalIDs(ctx, fee, map[string]any{"external_invoice_id": invID})
	return invID, nil
}

// storeExternalIDs saves accounting references as soon as they are issued.
func (s *PaymentService) storeExternalIDs(ctx context.Context, fee *models.StudentFee, ids map[string]any) {
	if err := s.db.WithContext(ctx).Model(&models.StudentFee{}).Where("id = ?", fee.ID).Updates(ids).Error; err != nil {
		s.log.Warn("could not store external ids", zap.String("student_fee_id", fee.ID.String()), zap.Error(err))
	}
}
