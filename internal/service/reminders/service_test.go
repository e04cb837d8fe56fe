package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/medrefill/internal/config"
	"github.com/mamadbah2/medrefill/internal/domain/models"
)

var today = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

type fakeStore struct {
	due       []models.DueMedicine
	dueErr    error
	medicines map[string]models.Medicine
	users     map[string]models.User

	from, to time.Time
}

func (f *fakeStore) FindDue(_ context.Context, from, to time.Time) ([]models.DueMedicine, error) {
	f.from, f.to = from, to
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	out := make([]models.DueMedicine, len(f.due))
	copy(out, f.due)
	return out, nil
}

func (f *fakeStore) FindMedicineByID(_ context.Context, id string) (models.Medicine, error) {
	m, ok := f.medicines[id]
	if !ok {
		return models.Medicine{}, models.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) FindUserByID(_ context.Context, id string) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return u, nil
}

type fakeHistory struct {
	saved []models.DispatchReport
}

func (f *fakeHistory) SaveDispatchReport(_ context.Context, report models.DispatchReport) error {
	f.saved = append(f.saved, report)
	return nil
}

func (f *fakeHistory) RecentDispatchReports(_ context.Context, limit int64) ([]models.DispatchReport, error) {
	if int64(len(f.saved)) > limit {
		return f.saved[:limit], nil
	}
	return f.saved, nil
}

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) SendSingle(ctx context.Context, user models.User, medicine models.Medicine) error {
	return m.Called(ctx, user, medicine).Error(0)
}

func (m *mockChannel) SendBatch(ctx context.Context, user models.User, medicines []models.Medicine, mode models.DispatchMode) error {
	return m.Called(ctx, user, medicines, mode).Error(0)
}

func testConfig() config.ReminderConfig {
	return config.ReminderConfig{
		DailySchedule:     "0 9 * * *",
		WeeklySchedule:    "0 10 * * 1",
		Timezone:          "UTC",
		DailyHorizonDays:  7,
		WeeklyHorizonDays: 14,
		DispatchWorkers:   2,
		SchedulerEnabled:  true,
		HistoryLimit:      20,
	}
}

func newTestService(t *testing.T, store *fakeStore, channel *mockChannel, history *fakeHistory) *Service {
	t.Helper()
	var hs HistoryStore
	if history != nil {
		hs = history
	}
	svc, err := NewService(testConfig(), store, channel, hs, nil, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return today.Add(9 * time.Hour) }
	return svc
}

func user(id string) models.User {
	return models.User{ID: id, Name: id, Email: id + "@example.com", EmailNotificationsEnabled: true}
}

func due(owner models.User, id string, daysAhead int) models.DueMedicine {
	return models.DueMedicine{
		Medicine: models.Medicine{
			ID:                   id,
			OwnerID:              owner.ID,
			Name:                 id,
			CurrentQuantity:      models.IntPtr(daysAhead),
			DosagePerDay:         1,
			NotificationsEnabled: true,
			RefillDate:           today.AddDate(0, 0, daysAhead),
			Status:               models.StatusLow,
		},
		Owner: owner,
	}
}

func TestRunDailyRecordsPerUserFailure(t *testing.T) {
	alice, bob := user("alice"), user("bob")
	store := &fakeStore{due: []models.DueMedicine{
		due(alice, "aspirin", 2),
		due(bob, "insulin", 1),
		due(bob, "metformin", 3),
	}}

	channel := &mockChannel{}
	channel.On("SendSingle", mock.Anything, alice, mock.Anything).Return(nil)
	channel.On("SendBatch", mock.Anything, bob, mock.Anything, models.DispatchDaily).Return(errors.New("smtp refused"))

	history := &fakeHistory{}
	report, err := newTestService(t, store, channel, history).RunDaily(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.DispatchDaily, report.Mode)
	assert.Equal(t, 3, report.Selected)
	assert.Equal(t, 2, report.UsersNotified)
	assert.Equal(t, 1, report.EmailsSent)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "bob", report.Failures[0].UserID)
	assert.Equal(t, 2, report.Failures[0].Medicines)
	assert.Contains(t, report.Failures[0].Reason, "smtp refused")

	assert.Equal(t, today, report.AsOf)
	assert.Equal(t, 7, report.HorizonDays)
	assert.Equal(t, today, store.from)
	assert.Equal(t, today.AddDate(0, 0, 7), store.to)

	require.Len(t, history.saved, 1)
	channel.AssertExpectations(t)
}

func TestRunDailyVariants(t *testing.T) {
	alice := user("alice")
	first, second := due(alice, "aspirin", 1), due(alice, "insulin", 2)

	tests := []struct {
		name   string
		rows   []models.DueMedicine
		method string
	}{
		{name: "single medicine", rows: []models.DueMedicine{first}, method: "SendSingle"},
		{name: "several medicines", rows: []models.DueMedicine{first, second}, method: "SendBatch"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			channel := &mockChannel{}
			channel.On("SendSingle", mock.Anything, alice, first.Medicine).Return(nil)
			channel.On("SendBatch", mock.Anything, alice, []models.Medicine{first.Medicine, second.Medicine}, models.DispatchDaily).Return(nil)

			report, err := newTestService(t, &fakeStore{due: tc.rows}, channel, nil).RunDaily(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, report.EmailsSent)
			channel.AssertNumberOfCalls(t, tc.method, 1)
		})
	}
}

func TestRunWeeklyAlwaysSendsSummary(t *testing.T) {
	alice := user("alice")
	row := due(alice, "aspirin", 12)

	channel := &mockChannel{}
	channel.On("SendBatch", mock.Anything, alice, []models.Medicine{row.Medicine}, models.DispatchWeekly).Return(nil)

	store := &fakeStore{due: []models.DueMedicine{row}}
	report, err := newTestService(t, store, channel, nil).RunWeekly(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.DispatchWeekly, report.Mode)
	assert.Equal(t, 1, report.EmailsSent)
	assert.Equal(t, today.AddDate(0, 0, 14), store.to)
	channel.AssertNotCalled(t, "SendSingle", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunWithNothingDue(t *testing.T) {
	channel := &mockChannel{}
	history := &fakeHistory{}

	report, err := newTestService(t, &fakeStore{}, channel, history).RunDaily(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Selected)
	assert.Zero(t, report.UsersNotified)
	assert.Zero(t, report.EmailsSent)
	assert.Empty(t, report.Failures)
	require.Len(t, history.saved, 1)
	channel.AssertNotCalled(t, "SendSingle", mock.Anything, mock.Anything, mock.Anything)
	channel.AssertNotCalled(t, "SendBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunAbortsWhenSelectionFails(t *testing.T) {
	store := &fakeStore{dueErr: errors.New("connection reset")}
	history := &fakeHistory{}

	_, err := newTestService(t, store, &mockChannel{}, history).RunDaily(context.Background())

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, models.DispatchDaily, runErr.Mode)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, history.saved)
}

func TestSelectorWindowIsInclusive(t *testing.T) {
	alice := user("alice")
	optedOut := user("carol")
	optedOut.EmailNotificationsEnabled = false

	muted := due(alice, "muted", 3)
	muted.Medicine.NotificationsEnabled = false

	store := &fakeStore{due: []models.DueMedicine{
		due(alice, "yesterday", -1),
		due(alice, "today", 0),
		due(alice, "edge", 7),
		due(alice, "beyond", 8),
		due(optedOut, "opted-out", 2),
		muted,
	}}

	selected, err := NewSelector(store).SelectDue(context.Background(), today.Add(15*time.Hour), 7)
	require.NoError(t, err)

	var ids []string
	for _, row := range selected {
		ids = append(ids, row.Medicine.ID)
	}
	assert.Equal(t, []string{"today", "edge"}, ids)
}

func TestDispatcherRecoversPanickingChannel(t *testing.T) {
	alice := user("alice")
	channel := &mockChannel{}
	channel.On("SendSingle", mock.Anything, alice, mock.Anything).Run(func(mock.Arguments) {
		panic("nil template")
	}).Return(nil)

	report := NewDispatcher(channel, 1, nil).Run(context.Background(), []models.DueMedicine{due(alice, "aspirin", 1)}, models.DispatchDaily)

	assert.Zero(t, report.EmailsSent)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Reason, "nil template")
}

func TestGroupByOwnerKeepsFirstSeenOrder(t *testing.T) {
	alice, bob := user("alice"), user("bob")
	groups := groupByOwner([]models.DueMedicine{
		due(bob, "b1", 1),
		due(alice, "a1", 1),
		due(bob, "b2", 2),
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "bob", groups[0].owner.ID)
	assert.Len(t, groups[0].medicines, 2)
	assert.Equal(t, "alice", groups[1].owner.ID)
}

func TestSendImmediateReminder(t *testing.T) {
	alice := user("alice")
	aspirin := due(alice, "aspirin", 40).Medicine
	aspirin.NotificationsEnabled = false

	store := &fakeStore{
		medicines: map[string]models.Medicine{"aspirin": aspirin},
		users:     map[string]models.User{"alice": alice},
	}

	channel := &mockChannel{}
	channel.On("SendSingle", mock.Anything, alice, aspirin).Return(nil)

	svc := newTestService(t, store, channel, nil)
	require.NoError(t, svc.SendImmediateReminder(context.Background(), "alice", "aspirin"))
	channel.AssertExpectations(t)

	err := svc.SendImmediateReminder(context.Background(), "bob", "aspirin")
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = svc.SendImmediateReminder(context.Background(), "alice", "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStatusAndHistory(t *testing.T) {
	history := &fakeHistory{saved: []models.DispatchReport{{Mode: models.DispatchWeekly}}}
	svc := newTestService(t, &fakeStore{}, &mockChannel{}, history)

	st := svc.Status()
	assert.Equal(t, "active", st.Status)
	assert.Equal(t, "UTC", st.Timezone)
	assert.Contains(t, st.DailyReminders, "0 9 * * *")

	reports, err := svc.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}
