// Package accounting pushes student fees and payments to an external
// accounting system. Every call is best effort; callers record failures
// instead of aborting the financial write.
package accounting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer is the external representation of a student.
type Customer struct {
	StudentID uuid.UUID `json:"student_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
}

// InvoiceLine is one billed component.
type InvoiceLine struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice is the external representation of a student fee.
type Invoice struct {
	ExternalID   string          `json:"id,omitempty"`
	StudentFeeID uuid.UUID       `json:"student_fee_id"`
	CustomerRef  string          `json:"customer_ref"`
	Lines        []InvoiceLine   `json:"lines"`
	Total        decimal.Decimal `json:"total"`
	Balance      decimal.Decimal `json:"balance"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
}

// PaymentRecord is the external representation of a payment.
type PaymentRecord struct {
	PaymentID   uuid.UUID       `json:"payment_id"`
	InvoiceRef  string          `json:"invoice_ref"`
	CustomerRef string          `json:"customer_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference"`
}

// Gateway is the accounting system client.
type Gateway interface {
	// Enabled is false when no provider is configured.
	Enabled() bool
	CreateCustomer(ctx context.Context, c Customer) (string, error)
	CreateInvoice(ctx context.Context, inv Invoice) (string, error)
	RecordPayment(ctx context.Context, p PaymentRecord) (string, error)
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
}

// Provider names a gateway implementation.
type Provider string

const (
	ProviderNone Provider = "none"
	ProviderHTTP Provider = "http"
)

// ProviderConfig configures the gateway built by Initialize.
type ProviderConfig struct {
	Provider Provider
	BaseURL  string
	Token    string
	RealmID  string
	Timeout  time.Duration
}

// Initialize builds the gateway selected by cfg.Provider.
func Initialize(cfg ProviderConfig) (Gateway, error) {
	switch Provider(strings.ToLower(string(cfg.Provider))) {
	case "", ProviderNone:
		return Noop{}, nil
	case ProviderHTTP:
		return NewHTTPGateway(cfg)
	default:
		return nil, fmt.Errorf("unknown accounting provider %q", cfg.Provider)
	}
}

// SyncStatus is the result kind of one sync attempt.
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
	SyncSkipped SyncStatus = "skipped"
)

// SyncOutcome is the typed result of pushing one payment.
type SyncOutcome struct {
	Status            SyncStatus
	ExternalPaymentID string
	Err               error
}

// Failed wraps err as a failed outcome.
func Failed(err error) SyncOutcome {
	return SyncOutcome{Status: SyncFailed, Err: err}
}

const maxErrorLen = 500

// ErrorMessage returns the error text clipped to the stored column size.
func (o SyncOutcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	msg := o.Err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}

// Noop is the gateway used when no accounting system is configured.
type Noop struct{}

func (Noop) Enabled() bool { return false }

func (Noop) CreateCustomer(context.Context, Customer) (string, error) { return "", nil }

func (Noop) CreateInvoice(context.Context, Invoice) (string, error) { return "", nil }

func (Noop) RecordPayment(context.Context, PaymentRecord) (string, error) { return "", nil }

func (Noop) GetInvoice(context.Context, string) (*Invoice, error) { return nil, nil }
