package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/medrefill/internal/config"
	"github.com/mamadbah2/medrefill/internal/domain/models"
	"github.com/mamadbah2/medrefill/internal/notification"
	"github.com/mamadbah2/medrefill/internal/server/handlers"
	"github.com/mamadbah2/medrefill/internal/service/reminders"
)

var (
	authCfg = config.AuthConfig{JWTSecret: "test-secret", Issuer: "medrefill"}
	today   = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
)

type stubMedicines struct {
	medicine models.Medicine
	created  models.MedicineInput
	owner    string
}

func (s *stubMedicines) Create(_ context.Context, ownerID string, input models.MedicineInput) (models.Medicine, error) {
	if input.DosagePerDay <= 0 {
		return models.Medicine{}, models.NewValidationError("dosagePerDay", "must be greater than 0")
	}
	s.created, s.owner = input, ownerID
	return s.medicine, nil
}

func (s *stubMedicines) Get(_ context.Context, ownerID, id string) (models.Medicine, error) {
	if ownerID != s.medicine.OwnerID || id != s.medicine.ID {
		return models.Medicine{}, models.ErrNotFound
	}
	return s.medicine, nil
}

func (s *stubMedicines) List(context.Context, string) ([]models.Medicine, error) {
	return []models.Medicine{s.medicine}, nil
}

func (s *stubMedicines) ListByStatus(_ context.Context, _ string, st models.MedicineStatus) ([]models.Medicine, error) {
	if st != s.medicine.Status {
		return nil, nil
	}
	return []models.Medicine{s.medicine}, nil
}

func (s *stubMedicines) Update(ctx context.Context, ownerID, id string, _ models.MedicineInput) (models.Medicine, error) {
	return s.Get(ctx, ownerID, id)
}

func (s *stubMedicines) Delete(ctx context.Context, ownerID, id string) error {
	_, err := s.Get(ctx, ownerID, id)
	return err
}

func (s *stubMedicines) TakeDose(ctx context.Context, ownerID, id string) (models.Medicine, error) {
	return s.Get(ctx, ownerID, id)
}

func (s *stubMedicines) Refill(ctx context.Context, ownerID, id string, quantity int) (models.Medicine, error) {
	if quantity <= 0 {
		return models.Medicine{}, models.NewValidationError("quantity", "must be greater than 0")
	}
	m, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return m, err
	}
	m.CurrentQuantity = models.IntPtr(m.RemainingDoses() + quantity)
	return m, nil
}

func (s *stubMedicines) DashboardSummary(context.Context, string) (models.DashboardSummary, error) {
	return models.DashboardSummary{TotalMedicines: 1, LowStock: 1, RecentMedicines: []models.Medicine{s.medicine}}, nil
}

func (s *stubMedicines) Today() time.Time { return today }

type stubReminders struct {
	immediateErr error
}

func (s *stubReminders) TriggerReminderCheck(context.Context) (models.DispatchReport, error) {
	return models.DispatchReport{Mode: models.DispatchDaily, Selected: 2, UsersNotified: 1, EmailsSent: 1}, nil
}

func (s *stubReminders) SendImmediateReminder(context.Context, string, string) error {
	return s.immediateErr
}

func (s *stubReminders) Status() reminders.ScheduleStatus {
	return reminders.ScheduleStatus{Status: "active", Timezone: "UTC"}
}

func (s *stubReminders) History(context.Context) ([]models.DispatchReport, error) {
	return []models.DispatchReport{{Mode: models.DispatchWeekly}}, nil
}

func newTestEngine(t *testing.T, rem *stubReminders) (http.Handler, string) {
	t.Helper()
	meds := &stubMedicines{medicine: models.Medicine{
		ID:              "med-1",
		OwnerID:         "alice",
		Name:            "Vitamin D",
		DosagePerDay:    2,
		TotalQuantity:   10,
		CurrentQuantity: models.IntPtr(10),
		StartDate:       today,
		RefillDate:      today.AddDate(0, 0, 5),
		Status:          models.StatusLow,
	}}

	engine := New(
		handlers.NewMedicineHandler(meds, "https://pharmacy.example/?q=", nil),
		handlers.NewNotificationHandler(rem, nil),
		handlers.RequireAuth(authCfg, nil),
		nil,
	)

	token, err := handlers.SignToken(authCfg, "alice", time.Hour)
	require.NoError(t, err)
	return engine, token
}

func do(engine http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	engine, _ := newTestEngine(t, &stubReminders{})

	assert.Equal(t, http.StatusUnauthorized, do(engine, http.MethodGet, "/api/medicines", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(engine, http.MethodGet, "/api/medicines", "garbage", nil).Code)

	forged, err := handlers.SignToken(config.AuthConfig{JWTSecret: "other", Issuer: "medrefill"}, "alice", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(engine, http.MethodGet, "/api/medicines", forged, nil).Code)

	expired, err := handlers.SignToken(authCfg, "alice", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(engine, http.MethodGet, "/api/medicines", expired, nil).Code)

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/healthz", "", nil).Code)
}

func TestMedicineRoutes(t *testing.T) {
	engine, token := newTestEngine(t, &stubReminders{})

	rec := do(engine, http.MethodGet, "/api/medicines/med-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Vitamin D", got["medicineName"])
	assert.Equal(t, "2026-03-15", got["refillDate"])
	assert.Equal(t, float64(5), got["daysLeft"])
	assert.Equal(t, float64(10), got["remainingDoses"])
	assert.Equal(t, "https://pharmacy.example/?q=Vitamin+D", got["refillUrl"])

	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodGet, "/api/medicines/other", token, nil).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/api/medicines/dashboard-summary", token, nil).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/api/medicines/status/LOW", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(engine, http.MethodGet, "/api/medicines/status/EMPTY", token, nil).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodPost, "/api/medicines/med-1/take-dose", token, nil).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodDelete, "/api/medicines/med-1", token, nil).Code)
}

func TestCreateMedicine(t *testing.T) {
	engine, token := newTestEngine(t, &stubReminders{})

	rec := do(engine, http.MethodPost, "/api/medicines", token, map[string]any{
		"medicineName":  "Vitamin D",
		"dosagePerDay":  2,
		"totalQuantity": 10,
		"startDate":     "2026-03-10",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(engine, http.MethodPost, "/api/medicines", token, map[string]any{
		"medicineName":  "Vitamin D",
		"dosagePerDay":  0,
		"totalQuantity": 10,
		"startDate":     "2026-03-10",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "dosagePerDay")

	rec = do(engine, http.MethodPost, "/api/medicines", token, map[string]any{
		"medicineName": "Vitamin D",
		"startDate":    "10/03/2026",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "startDate")
}

func TestRefillQuantity(t *testing.T) {
	engine, token := newTestEngine(t, &stubReminders{})

	rec := do(engine, http.MethodPost, "/api/medicines/med-1/refill?quantity=20", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"remainingDoses":30`)

	assert.Equal(t, http.StatusBadRequest, do(engine, http.MethodPost, "/api/medicines/med-1/refill?quantity=abc", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(engine, http.MethodPost, "/api/medicines/med-1/refill?quantity=-3", token, nil).Code)
}

func TestNotificationRoutes(t *testing.T) {
	rem := &stubReminders{}
	engine, token := newTestEngine(t, rem)

	rec := do(engine, http.MethodPost, "/api/notifications/trigger-reminder-check", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"emailsSent":1`)

	assert.Equal(t, http.StatusOK, do(engine, http.MethodPost, "/api/notifications/send-immediate-reminder/med-1", token, nil).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/api/notifications/status", token, nil).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/api/notifications/history", token, nil).Code)

	rem.immediateErr = &notification.ChannelError{Channel: "email", UserID: "alice", Err: errors.New("sendgrid returned status 500")}
	assert.Equal(t, http.StatusBadGateway, do(engine, http.MethodPost, "/api/notifications/send-immediate-reminder/med-1", token, nil).Code)

	rem.immediateErr = models.ErrNotFound
	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodPost, "/api/notifications/send-immediate-reminder/nope", token, nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t, &stubReminders{})
	do(engine, http.MethodGet, "/healthz", "", nil)

	rec := do(engine, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "medrefill_http_requests_total")
}
