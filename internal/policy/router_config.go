package policy

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/internal/accounting"
	"github.com/diewo77/go-fees/internal/directory"
	"github.com/diewo77/go-fees/internal/handlers"
	"github.com/diewo77/go-fees/internal/notify"
	"github.com/diewo77/go-fees/internal/services"
	"github.com/diewo77/go-fees/validation"
)

// roleCacheTTL bounds how long a role change takes to apply.
const roleCacheTTL = 5 * time.Minute

// Deps are the collaborators the fee services are built from.
type Deps struct {
	Options        services.Options
	Gateway        accounting.Gateway
	Notifier       services.Notifier
	DefaultChannel notify.Channel
}

// RouterConfig holds configured handlers and the role gate for the application.
type RouterConfig struct {
	Gate  *Gate
	Roles *CachedResolver

	AuthHandler       *handlers.AuthHandler
	UserHandler       *handlers.UserHandler
	CatalogHandler    *handlers.CatalogHandler
	StudentFeeHandler *handlers.StudentFeeHandler
	ScheduleHandler   *handlers.ScheduleHandler
	PaymentHandler    *handlers.PaymentHandler
	ReportHandler     *handlers.ReportHandler
	ReminderHandler   *handlers.ReminderHandler
	DirectoryHandler  *handlers.DirectoryHandler
}

// NewRouterConfig wires the services, handlers and role gate over db.
func NewRouterConfig(db *gorm.DB, deps Deps) *RouterConfig {
	log := deps.Options.Logger
	if log == nil {
		log = zap.NewNop()
		deps.Options.Logger = log
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.FromConfig(notify.Config{}, log)
	}
	validation.SetMoneyPlaces(deps.Options.MoneyPlaces())
	dir := directory.New(db)
	roles := NewCachedResolver(NewDBResolver(db), roleCacheTTL)

	return &RouterConfig{
		Gate:              NewGate(roles),
		Roles:             roles,
		AuthHandler:       handlers.NewAuthHandler(db, log),
		UserHandler:       handlers.NewUserHandler(db, roles, log),
		CatalogHandler:    handlers.NewCatalogHandler(services.NewCatalogService(db, deps.Options), log),
		StudentFeeHandler: handlers.NewStudentFeeHandler(services.NewAssignmentService(db, dir, deps.Options), log),
		ScheduleHandler:   handlers.NewScheduleHandler(services.NewScheduleService(db, dir, deps.Options), log),
		PaymentHandler:    handlers.NewPaymentHandler(services.NewPaymentService(db, dir, deps.Gateway, deps.Options), log),
		ReportHandler:     handlers.NewReportHandler(services.NewReportService(db, deps.Options), log),
		ReminderHandler: handlers.NewReminderHandler(
			services.NewReminderService(db, dir, deps.Notifier, deps.Options),
			deps.DefaultChannel, deps.Options.Now, log),
		DirectoryHandler: handlers.NewDirectoryHandler(dir, log),
	}
}
