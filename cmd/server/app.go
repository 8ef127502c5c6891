package main

import (
	"net/http"

	"github.com/diewo77/go-fees/auth"
	"github.com/diewo77/go-fees/httpx"
	"github.com/diewo77/go-fees/internal/models"
	"github.com/diewo77/go-fees/internal/policy"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	routerCfg *policy.RouterConfig
}

// NewApp creates a new application with all routes configured.
func NewApp(routerCfg *policy.RouterConfig) *App {
	app := &App{
		mux:       http.NewServeMux(),
		routerCfg: routerCfg,
	}
	app.setupRoutes()
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth.Middleware(a.mux).ServeHTTP(w, r)
}

var (
	anyStaff = []models.Role{models.RoleBursar, models.RoleCashier}
	bursars  = []models.Role{models.RoleBursar}
	admins   = []models.Role{models.RoleAdmin}
)

func (a *App) setupRoutes() {
	cfg := a.routerCfg

	// Public routes
	a.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	ah := cfg.AuthHandler
	a.mux.HandleFunc("POST /api/auth/login", ah.Login)
	a.mux.HandleFunc("POST /api/auth/register", ah.Register)
	a.mux.HandleFunc("POST /api/auth/logout", ah.Logout)
	a.mux.Handle("GET /api/auth/me", auth.RequireAuth(http.HandlerFunc(ah.Me)))

	// Staff users
	uh := cfg.UserHandler
	a.handle("GET /api/users", uh.List, admins)
	a.handle("PATCH /api/users/{id}", uh.Update, admins)

	// Directory
	dh := cfg.DirectoryHandler
	a.handle("GET /api/classes", dh.ListClasses, anyStaff)
	a.handle("GET /api/academic-years", dh.ListAcademicYears, anyStaff)
	a.handle("GET /api/students", dh.ListStudents, anyStaff)
	a.handle("GET /api/students/{id}", dh.GetStudent, anyStaff)
	a.handle("POST /api/students", dh.CreateStudent, bursars)

	// Templates and structures
	ch := cfg.CatalogHandler
	a.handle("GET /api/fee-templates", ch.ListTemplates, anyStaff)
	a.handle("POST /api/fee-templates", ch.CreateTemplate, bursars)
	a.handle("GET /api/fee-templates/{id}", ch.GetTemplate, anyStaff)
	a.handle("PUT /api/fee-templates/{id}", ch.UpdateTemplate, bursars)
	a.handle("GET /api/fee-structures", ch.ListStructures, anyStaff)
	a.handle("POST /api/fee-structures", ch.CreateStructure, bursars)
	a.handle("POST /api/fee-structures/from-template", ch.CreateStructureFromTemplate, bursars)
	a.handle("GET /api/fee-structures/{id}", ch.GetStructure, anyStaff)
	a.handle("PUT /api/fee-structures/{id}/components", ch.UpdateStructureComponents, bursars)
	a.handle("POST /api/fee-structures/{id}/activate", ch.ActivateStructure, bursars)
	a.handle("POST /api/fee-structures/{id}/archive", ch.ArchiveStructure, bursars)

	// Student fees
	sh := cfg.StudentFeeHandler
	a.handle("POST /api/fee-structures/{id}/assign", sh.Assign, bursars)
	a.handle("POST /api/fee-structures/{id}/assign-class", sh.AssignToClass, bursars)
	a.handle("GET /api/student-fees", sh.List, anyStaff)
	a.handle("GET /api/student-fees/{id}", sh.Get, anyStaff)

	// Schedules
	sch := cfg.ScheduleHandler
	a.handle("GET /api/fee-schedules", sch.List, anyStaff)
	a.handle("POST /api/fee-schedules", sch.Create, bursars)
	a.handle("GET /api/fee-schedules/{id}", sch.Get, anyStaff)
	a.handle("PUT /api/fee-schedules/{id}", sch.Update, bursars)
	a.handle("DELETE /api/fee-schedules/{id}", sch.Delete, bursars)
	a.handle("POST /api/fee-schedules/{id}/activate", sch.Activate, bursars)
	a.handle("POST /api/fee-schedules/{id}/deactivate", sch.Deactivate, bursars)
	a.handle("POST /api/fee-schedules/{id}/apply", sch.Apply, bursars)

	// Payments
	ph := cfg.PaymentHandler
	a.handle("POST /api/payments", ph.Record, anyStaff)
	a.handle("GET /api/payments/{id}", ph.Get, anyStaff)
	a.handle("POST /api/payments/{id}/sync", ph.RetrySync, bursars)
	a.handle("GET /api/student-fees/{id}/payments", ph.ListForFee, anyStaff)

	// Reminders
	rh := cfg.ReminderHandler
	a.handle("POST /api/student-fees/{id}/reminders", rh.Send, bursars)
	a.handle("GET /api/reminders/due", rh.Due, bursars)
	a.handle("POST /api/reminders/send-due", rh.SendDue, bursars)

	// Reports
	a.handle("GET /api/reports/{type}", cfg.ReportHandler.Generate, bursars)
}

// handle registers an authenticated route limited to roles. Admins pass every gate.
func (a *App) handle(pattern string, h http.HandlerFunc, roles []models.Role) {
	a.mux.Handle(pattern, auth.RequireAuth(a.routerCfg.Gate.Require(roles...)(h)))
}
