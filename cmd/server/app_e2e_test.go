package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/auth"
	"github.com/diewo77/go-fees/internal/db"
	"github.com/diewo77/go-fees/internal/handlers"
	"github.com/diewo77/go-fees/internal/models"
	"github.com/diewo77/go-fees/internal/policy"
	"github.com/diewo77/go-fees/internal/services"
)

var e2eNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func setupE2E(t *testing.T) (*App, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbi, err := gorm.Open(sqlite.Open("file:e2e_"+name+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := dbi.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Seed(dbi, e2eNow); err != nil {
		t.Fatalf("seed: %v", err)
	}
	auth.SetUserVerifier(handlers.UserExists(dbi))
	t.Cleanup(func() { auth.SetUserVerifier(nil) })
	cfg := policy.NewRouterConfig(dbi, policy.Deps{
		Options: services.Options{Now: func() time.Time { return e2eNow }},
	})
	return NewApp(cfg), dbi
}

type client struct {
	t     *testing.T
	app   *App
	token string
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rr := httptest.NewRecorder()
	c.app.ServeHTTP(rr, req)
	if out != nil && rr.Code < 300 {
		require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), out), rr.Body.String())
	}
	return rr.Code
}

type session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func TestFeeLifecycleE2E(t *testing.T) {
	app, _ := setupE2E(t)
	anon := &client{t: t, app: app}

	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/api/student-fees", nil, nil))

	var admin session
	require.Equal(t, http.StatusCreated, anon.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email": "bursar@school.test", "password": "correct-horse", "name": "Bursar",
	}, &admin))
	assert.Equal(t, models.RoleAdmin, admin.User.Role)

	var login session
	require.Equal(t, http.StatusOK, anon.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "bursar@school.test", "password": "correct-horse",
	}, &login))
	api := &client{t: t, app: app, token: login.Token}

	var classes []models.Class
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/classes", nil, &classes))
	var classID uuid.UUID
	for _, c := range classes {
		if c.Name == "S1" {
			classID = c.ID
		}
	}
	require.NotEqual(t, uuid.Nil, classID)
	var years []models.AcademicYear
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/academic-years", nil, &years))
	require.Len(t, years, 1)

	var student models.Student
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/students", map[string]any{
		"name": "Amina N.", "class_id": classID, "phone": "+256700000001",
	}, &student))

	var st models.FeeStructure
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/fee-structures", map[string]any{
		"name":             "S1 2025",
		"academic_year_id": years[0].ID,
		"class_id":         classID,
		"status":           "active",
		"components": []map[string]any{
			{"name": "Tuition", "amount": "100000"},
			{"name": "Boarding", "amount": "100000"},
			{"name": "Uniform", "amount": "100000"},
		},
	}, &st))
	assert.True(t, st.TotalAmount.Equal(decimal.NewFromInt(300000)))

	var fee models.StudentFee
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/fee-structures/"+st.ID.String()+"/assign",
		map[string]any{"student_id": student.ID}, &fee))
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/api/fee-structures/"+st.ID.String()+"/assign",
		map[string]any{"student_id": student.ID}, nil))

	assert.Equal(t, http.StatusUnprocessableEntity, api.do(http.MethodPost, "/api/payments", map[string]any{
		"student_fee_id": fee.ID, "amount": "300000.01", "payment_method": "cash",
	}, nil))

	var p models.Payment
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/payments", map[string]any{
		"student_fee_id": fee.ID, "amount": "150000", "payment_method": "mobile_money",
	}, &p))
	assert.Regexp(t, `^RCT-250301-\d{4}$`, p.ReceiptNumber)

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/student-fees/"+fee.ID.String(), nil, &fee))
	assert.Equal(t, models.FeeStatusPartial, fee.Status)
	assert.True(t, fee.Balance.Equal(decimal.NewFromInt(150000)))
	for _, c := range fee.Components {
		assert.True(t, c.AmountPaid.Equal(decimal.NewFromInt(50000)), c.Name)
	}

	var payments []models.Payment
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/student-fees/"+fee.ID.String()+"/payments", nil, &payments))
	assert.Len(t, payments, 1)

	var rep services.Report
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/reports/financial_summary", nil, &rep))
	require.NotNil(t, rep.Summary)
	assert.True(t, rep.Summary.CollectionRate.Equal(decimal.NewFromInt(50)), rep.Summary.CollectionRate.String())
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/reports/ledger", nil, nil))
}

func TestScheduleRejectedE2E(t *testing.T) {
	app, dbi := setupE2E(t)
	u := models.User{Email: "b@school.test", Password: "x", Role: models.RoleBursar, Active: true}
	require.NoError(t, dbi.Create(&u).Error)
	api := &client{t: t, app: app, token: auth.Token(u.ID)}

	var year models.AcademicYear
	require.NoError(t, dbi.First(&year).Error)
	due := func(m time.Month) string { return time.Date(2025, m, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339) }
	code := api.do(http.MethodPost, "/api/fee-schedules", map[string]any{
		"name":             "Terms",
		"academic_year_id": year.ID,
		"installments": []map[string]any{
			{"name": "Term 1", "due_date": due(time.April), "percentage": "40"},
			{"name": "Term 2", "due_date": due(time.July), "percentage": "40"},
			{"name": "Term 3", "due_date": due(time.October), "percentage": "10"},
		},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestCashierCannotEditCatalogE2E(t *testing.T) {
	app, dbi := setupE2E(t)
	u := models.User{Email: "c@school.test", Password: "x", Role: models.RoleCashier, Active: true}
	require.NoError(t, dbi.Create(&u).Error)
	api := &client{t: t, app: app, token: auth.Token(u.ID)}

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/api/fee-templates", map[string]any{
		"name": "Day scholar", "components": []map[string]any{{"name": "Tuition", "amount": "1"}},
	}, nil))
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/fee-templates", nil, nil))
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", nil, nil))
}

func TestRoleChangeAppliesImmediatelyE2E(t *testing.T) {
	app, dbi := setupE2E(t)
	admin := models.User{Email: "admin@school.test", Password: "x", Role: models.RoleAdmin, Active: true}
	require.NoError(t, dbi.Create(&admin).Error)
	clerk := models.User{Email: "clerk@school.test", Password: "x", Role: models.RoleCashier, Active: true}
	require.NoError(t, dbi.Create(&clerk).Error)
	adminAPI := &client{t: t, app: app, token: auth.Token(admin.ID)}
	clerkAPI := &client{t: t, app: app, token: auth.Token(clerk.ID)}

	assert.Equal(t, http.StatusForbidden, clerkAPI.do(http.MethodGet, "/api/reports/financial_summary", nil, nil))
	assert.Equal(t, http.StatusForbidden, clerkAPI.do(http.MethodGet, "/api/users", nil, nil))

	var updated models.User
	require.Equal(t, http.StatusOK, adminAPI.do(http.MethodPatch, "/api/users/"+clerk.ID.String(),
		map[string]any{"role": "bursar"}, &updated))
	assert.Equal(t, models.RoleBursar, updated.Role)
	assert.Equal(t, http.StatusOK, clerkAPI.do(http.MethodGet, "/api/reports/financial_summary", nil, nil),
		"cached cashier role is dropped on update")

	require.Equal(t, http.StatusOK, adminAPI.do(http.MethodPatch, "/api/users/"+clerk.ID.String(),
		map[string]any{"active": false}, nil))
	assert.Equal(t, http.StatusUnauthorized, clerkAPI.do(http.MethodGet, "/api/student-fees", nil, nil))

	assert.Equal(t, http.StatusUnprocessableEntity, adminAPI.do(http.MethodPatch, "/api/users/"+admin.ID.String(),
		map[string]any{"role": "cashier"}, nil))
	var users []models.User
	require.Equal(t, http.StatusOK, adminAPI.do(http.MethodGet, "/api/users", nil, &users))
	assert.Len(t, users, 2)
}
