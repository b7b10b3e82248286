package sync

import (
	"context"
	"errors"
	"testing"

	"huntflow-sync/internal/bus"
	"huntflow-sync/internal/common/config"
	apperrors "huntflow-sync/internal/common/errors"
	"huntflow-sync/internal/common/huntflow"
	"huntflow-sync/internal/common/logger"
	"huntflow-sync/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	applicants map[int64]*store.Applicant
	updateErr  error
}

func newFakeStore(applicants ...*store.Applicant) *fakeStore {
	s := &fakeStore{applicants: make(map[int64]*store.Applicant)}
	for _, a := range applicants {
		s.applicants[a.ID] = a
	}
	return s
}

func (f *fakeStore) Create(_ context.Context, id int64, applicantID, statusID *int64) error {
	f.applicants[id] = &store.Applicant{ID: id, ApplicantID: applicantID, StatusID: statusID}
	return nil
}

func (f *fakeStore) Update(_ context.Context, id int64, upd store.Update) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	a := f.applicants[id]
	if upd.StatusID != nil {
		a.StatusID = upd.StatusID
	}
	if upd.LastSyncError != nil {
		a.LastSyncError = upd.LastSyncError
	}
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*store.Applicant, error) {
	a, ok := f.applicants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeStore) GetAll(_ context.Context) ([]store.Applicant, error) {
	var all []store.Applicant
	for _, a := range f.applicants {
		all = append(all, *a)
	}
	return all, nil
}

type fakeTracking struct {
	byStatus  map[int64][]huntflow.ApplicantSummary
	statusErr map[int64]error
	logs      map[int64][]huntflow.LogEntry
	reasons   map[int64]string
	listedIn  []int64
}

func (f *fakeTracking) VacancyStatusApplicants(_ context.Context, _, statusID int64) ([]huntflow.ApplicantSummary, error) {
	f.listedIn = append(f.listedIn, statusID)
	if err := f.statusErr[statusID]; err != nil {
		return nil, err
	}
	return f.byStatus[statusID], nil
}

func (f *fakeTracking) ApplicantLog(_ context.Context, applicantID int64) ([]huntflow.LogEntry, error) {
	return f.logs[applicantID], nil
}

func (f *fakeTracking) RejectionReason(_ context.Context, reasonID int64) (string, error) {
	name, ok := f.reasons[reasonID]
	if !ok {
		return "", apperrors.NewUnknownRejectionReasonError(reasonID)
	}
	return name, nil
}

type published struct {
	eventType string
	key       string
	payload   interface{}
}

type fakePublisher struct {
	events  []published
	failFor map[string]error
}

func (f *fakePublisher) Publish(_ context.Context, eventType, key string, payload interface{}) error {
	if err := f.failFor[eventType]; err != nil {
		return err
	}
	f.events = append(f.events, published{eventType: eventType, key: key, payload: payload})
	return nil
}

var testStatuses = config.StatusConfig{
	Init:          100,
	SecurityCheck: 789,
	Rejected:      123,
	Reserve:       456,
}

const testVacancy = int64(77)

func int64Ptr(v int64) *int64 { return &v }

func newTestEngine(s store.Store, tracking TrackingAPI, pub bus.Publisher) *Engine {
	return NewEngine(s, tracking, pub, testVacancy, testStatuses, logger.NewNoOpLogger())
}

func TestRun_StatusOrderAndPublishing(t *testing.T) {
	s := newFakeStore(
		&store.Applicant{ID: 1, ApplicantID: int64Ptr(501), StatusID: int64Ptr(100)},
		&store.Applicant{ID: 2, ApplicantID: int64Ptr(502), StatusID: int64Ptr(789)},
		&store.Applicant{ID: 3, ApplicantID: int64Ptr(503), StatusID: int64Ptr(100)},
	)
	tracking := &fakeTracking{
		byStatus: map[int64][]huntflow.ApplicantSummary{
			789: {{ID: 501}, {ID: 502}},
			456: {{ID: 503}},
		},
	}
	pub := &fakePublisher{}

	require.NoError(t, newTestEngine(s, tracking, pub).Run(context.Background()))

	// Statuses are reconciled in a fixed order.
	assert.Equal(t, []int64{789, 123, 456}, tracking.listedIn)

	// Case 2 is already at the security-check status locally: no event.
	require.Len(t, pub.events, 2)
	assert.Equal(t, bus.TypeSecurityCheckPrepared, pub.events[0].eventType)
	assert.Equal(t, "1", pub.events[0].key)
	assert.Equal(t, bus.ApplicantEvent{ID: 1}, pub.events[0].payload)
	assert.Equal(t, bus.TypeAlreadyRecommended, pub.events[1].eventType)
	assert.Equal(t, bus.ApplicantEvent{ID: 3}, pub.events[1].payload)

	// New statuses persisted after the events went out.
	assert.Equal(t, int64(789), *s.applicants[1].StatusID)
	assert.Equal(t, int64(456), *s.applicants[3].StatusID)
}

func TestRun_UnknownExternalApplicantsIgnored(t *testing.T) {
	s := newFakeStore(
		&store.Applicant{ID: 1, ApplicantID: int64Ptr(501), StatusID: int64Ptr(100)},
	)
	tracking := &fakeTracking{
		byStatus: map[int64][]huntflow.ApplicantSummary{
			789: {{ID: 999}},
		},
	}
	pub := &fakePublisher{}

	require.NoError(t, newTestEngine(s, tracking, pub).Run(context.Background()))
	assert.Empty(t, pub.events)
}

func TestRun_NilLocalStatusCountsAsChanged(t *testing.T) {
	s := newFakeStore(
		&store.Applicant{ID: 1, ApplicantID: int64Ptr(501)},
	)
	tracking := &fakeTracking{
		byStatus: map[int64][]huntflow.ApplicantSummary{
			789: {{ID: 501}},
		},
	}
	pub := &fakePublisher{}

	require.NoError(t, newTestEngine(s, tracking, pub).Run(context.Background()))
	require.Len(t, pub.events, 1)
	assert.Equal(t, bus.TypeSecurityCheckPrepared, pub.events[0].eventType)
	assert.Equal(t, int64(789), *s.applicants[1].StatusID)
}

func TestRun_ListFailureSkipsStatusOnly(t *testing.T) {
	s := newFakeStore(
		&store.Applicant{ID: 1, ApplicantID: int64Ptr(501), StatusID: int64Ptr(100)},
		&store.Applicant{ID: 3, ApplicantID: int64Ptr(503), StatusID: int64Ptr(100)},
	)
	tracking := &fakeTracking{
		byStatus: map[int64][]huntflow.ApplicantSummary{
			456: {{ID: 503}},
		},
		statusErr: map[int64]error{789: errors.New("api down")},
	}
	pub := &fakePublisher{}

	require.NoError(t, newTestEngine(s, tracking, pub).Run(context.Background()))

	// The reserve status is still reconciled after the security-check
	// listing failed.
	require.Len(t, pub.events, 1)
	assert.Equal(t, bus.TypeAlreadyRecommended, pub.events[0].eventType)
}

func TestRun_PublishFailureLeavesStatusForRetry(t *testing.T) {
	s := newFakeStore(
		&store.Applicant{ID: 1, ApplicantID: int64Ptr(501), StatusID: int64Ptr(100)},
		&store.Applicant{ID: 2, ApplicantID: int64Ptr(502), StatusID: int64Ptr(100)},
	)
	tracking := &fakeTracking{
		byStatus: map[int64][]huntflow.ApplicantSummary{
			789: {{ID: 501}},
			456: {{ID: 502}},
		},
	}
	pub := &fakePublisher{failFor: map[string]error{
		bus.TypeSecurityCheckPrepared: errors.New("broker down"),
	}}

	require.NoError(t, newTestEngine(s, tracking, pub).Run(context.Background()))

	// Case 1 keeps its old status so the next run retries it; case 2 is
	// unaffected by case 1's failure.
	assert.Equal(t, int64(100), *s.applicants[1].StatusID)
	assert.Equal(t, int64(456), *s.applicants[2].StatusID)
	require.Len(t, pub.events, 1)
	assert.Equal(t, bus.TypeAlreadyRecommended, pub.events[0].eventType)
}

func TestSendRejected_Classification(t *testing.T) {
	tests := []struct {
		name      string
		reason    string
		wantEvent string
	}{
		{name: "self rejection", reason: "Сам: нашел другую работу", wantEvent: bus.TypeSelfRejected},
		{name: "security rejection", reason: "Не прошел СБ", wantEvent: bus.TypeSBRejected},
		{name: "generic rejection", reason: "Не подошел по опыту", wantEvent: bus.TypeRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeStore(
				&store.Applicant{ID: 1, ApplicantID: int64Ptr(501), StatusID: int64Ptr(789)},
			)
			tracking := &fakeTracking{
				byStatus: map[int64][]huntflow.ApplicantSummary{
					123: {{ID: 501}},
				},
				logs: map[int64][]huntflow.LogEntry{
					501: {
						{ID: 1, Status: 789},
						{ID: 2, Status: 123, RejectionReason: 9},
						{ID: 3, Status: 123, RejectionReason: 10},
					},
				},
				reasons: map[int64]string{9: tt.reason, 10: "другая причина"},
			}
			pub := &fakePublisher{}

			require.NoError(t, newTestEngine(s, tracking, pub).Run(context.Background()))

			// Only the first qualifying log entry decides the event.
			require.Len(t, pub.events, 1)
			assert.Equal(t, tt.wantEvent, pub.events[0].eventType)
			assert.Equal(t, int64(123), *s.applicants[1].StatusID)
		})
	}
}

func TestSendRejected_EntriesWithoutReasonSkipped(t *testing.T) {
	s := newFakeStore(
		&store.Applicant{ID: 1, ApplicantID: int64Ptr(501), StatusID: int64Ptr(789)},
	)
	tracking := &fakeTracking{
		byStatus: map[int64][]huntflow.ApplicantSummary{
			123: {{ID: 501}},
		},
		logs: map[int64][]huntflow.LogEntry{
			501: {
				{ID: 1, Status: 123},
				{ID: 2, Status: 123, RejectionReason: 9},
			},
		},
		reasons: map[int64]string{9: "сам: передумал"},
	}
	pub := &fakePublisher{}

	require.NoError(t, newTestEngine(s, tracking, pub).Run(context.Background()))
	require.Len(t, pub.events, 1)
	assert.Equal(t, bus.TypeSelfRejected, pub.events[0].eventType)
}

func TestSendRejected_GracePeriod(t *testing.T) {
	s := newFakeStore(
		&store.Applicant{ID: 1, ApplicantID: int64Ptr(501), StatusID: int64Ptr(789)},
	)
	tracking := &fakeTracking{
		byStatus: map[int64][]huntflow.ApplicantSummary{
			123: {{ID: 501}},
		},
		logs: map[int64][]huntflow.LogEntry{501: {{ID: 1, Status: 789}}},
	}
	pub := &fakePublisher{}
	engine := newTestEngine(s, tracking, pub)

	// First run: the sync-error flag is set, the case raises and keeps its
	// old status.
	err := engine.sendRejected(context.Background(), 1, 501)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRejectionReason))
	require.NotNil(t, s.applicants[1].LastSyncError)
	assert.Equal(t, store.SyncErrorNoRejectionReason, *s.applicants[1].LastSyncError)

	// Second run: the flag is already set, the case is let through.
	err = engine.sendRejected(context.Background(), 1, 501)
	assert.NoError(t, err)
	assert.Empty(t, pub.events)
}

func TestRun_FullPass(t *testing.T) {
	// One applicant per watched status, all transitioning at once.
	s := newFakeStore(
		&store.Applicant{ID: 1, ApplicantID: int64Ptr(501), StatusID: int64Ptr(100)},
		&store.Applicant{ID: 2, ApplicantID: int64Ptr(502), StatusID: int64Ptr(789)},
		&store.Applicant{ID: 3, ApplicantID: int64Ptr(503), StatusID: int64Ptr(100)},
	)
	tracking := &fakeTracking{
		byStatus: map[int64][]huntflow.ApplicantSummary{
			789: {{ID: 501}},
			123: {{ID: 502}},
			456: {{ID: 503}},
		},
		logs: map[int64][]huntflow.LogEntry{
			502: {{ID: 1, Status: 123, RejectionReason: 9}},
		},
		reasons: map[int64]string{9: "не прошел сб: стоп-фактор"},
	}
	pub := &fakePublisher{}

	require.NoError(t, newTestEngine(s, tracking, pub).Run(context.Background()))

	require.Len(t, pub.events, 3)
	assert.Equal(t, bus.TypeSecurityCheckPrepared, pub.events[0].eventType)
	assert.Equal(t, bus.TypeSBRejected, pub.events[1].eventType)
	assert.Equal(t, bus.TypeAlreadyRecommended, pub.events[2].eventType)

	assert.Equal(t, int64(789), *s.applicants[1].StatusID)
	assert.Equal(t, int64(123), *s.applicants[2].StatusID)
	assert.Equal(t, int64(456), *s.applicants[3].StatusID)
}
