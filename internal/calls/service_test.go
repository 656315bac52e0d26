package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"expertassist/internal/audit"
	"expertassist/internal/experts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu       sync.Mutex
	started  []Call
	dones    []func()
	canceled []string
}

func (r *fakeRunner) Start(c Call, done func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, c)
	r.dones = append(r.dones, done)
}

func (r *fakeRunner) Cancel(ctx context.Context, callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canceled = append(r.canceled, callID)
	return nil
}

type fakeLimiter struct {
	limit    int
	active   map[string]int
	err      error
	released int
}

func (l *fakeLimiter) Acquire(ctx context.Context, userID string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.active[userID] >= l.limit {
		return false, nil
	}
	l.active[userID]++
	return true, nil
}

func (l *fakeLimiter) Release(ctx context.Context, userID string) error {
	l.active[userID]--
	l.released++
	return nil
}

type fakeHanger struct{ sids []string }

func (h *fakeHanger) EndCall(ctx context.Context, sid string) error {
	h.sids = append(h.sids, sid)
	return nil
}

type fixture struct {
	svc     *Service
	repo    *MemoryRepo
	runner  *fakeRunner
	limiter *fakeLimiter
	hanger  *fakeHanger
	audit   *audit.MemoryRepo
	expert  experts.Expert
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	expertRepo := experts.NewMemoryRepo()
	e, err := experts.NewService(expertRepo).Create(context.Background(), "u1", experts.Input{Name: "Bob", PhoneNumber: "5551234567"})
	require.NoError(t, err)

	f := fixture{
		repo:    NewMemoryRepo(),
		runner:  &fakeRunner{},
		limiter: &fakeLimiter{limit: 2, active: map[string]int{}},
		hanger:  &fakeHanger{},
		audit:   audit.NewMemoryRepo(),
		expert:  e,
	}
	f.svc = NewService(Deps{
		Repo:    f.repo,
		Experts: expertRepo,
		Runner:  f.runner,
		Limiter: f.limiter,
		Hanger:  f.hanger,
		Audit:   audit.NewService(f.audit),
	})
	return f
}

func TestService_InitiateCreatesPendingAndStartsRunner(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.Initiate(context.Background(), "u1", InitiateRequest{
		ExpertID:     f.expert.ID,
		Goal:         "  ask about rates ",
		ContextLinks: []string{" https://a.test ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, c.Status)
	assert.Equal(t, "ask about rates", c.Goal)
	assert.Equal(t, []string{"https://a.test"}, c.ContextLinks)
	assert.Nil(t, c.CompletedAt)

	require.Len(t, f.runner.started, 1)
	assert.Equal(t, c.ID, f.runner.started[0].ID)
	assert.Len(t, f.audit.ByType(audit.EventTypeCallInitiated), 1)

	stored, err := f.svc.Get(context.Background(), "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestService_InitiateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Initiate(ctx, "u1", InitiateRequest{ExpertID: f.expert.ID, Goal: "   "})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.Initiate(ctx, "u1", InitiateRequest{Goal: "x"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.Initiate(ctx, "u2", InitiateRequest{ExpertID: f.expert.ID, Goal: "x"})
	assert.ErrorIs(t, err, experts.ErrNotFound)

	assert.Empty(t, f.runner.started)
}

func TestService_InitiateEnforcesActiveCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := InitiateRequest{ExpertID: f.expert.ID, Goal: "x"}

	for i := 0; i < 2; i++ {
		_, err := f.svc.Initiate(ctx, "u1", req)
		require.NoError(t, err)
	}
	_, err := f.svc.Initiate(ctx, "u1", req)
	assert.ErrorIs(t, err, ErrTooManyActiveCalls)

	// done is idempotent and frees the slot.
	f.runner.dones[0]()
	f.runner.dones[0]()
	assert.Equal(t, 1, f.limiter.released)

	_, err = f.svc.Initiate(ctx, "u1", req)
	assert.NoError(t, err)
}

func TestService_InitiateFailsOpenWhenLimiterDown(t *testing.T) {
	f := newFixture(t)
	f.limiter.err = errors.New("redis down")

	_, err := f.svc.Initiate(context.Background(), "u1", InitiateRequest{ExpertID: f.expert.ID, Goal: "x"})
	assert.NoError(t, err)
}

func TestService_ListRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), "u1", ListFilter{Status: "ringing"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestService_TranscriptAndRecordingAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Initiate(ctx, "u1", InitiateRequest{ExpertID: f.expert.ID, Goal: "x"})
	require.NoError(t, err)

	_, err = f.svc.Transcript(ctx, "u1", c.ID)
	assert.ErrorIs(t, err, ErrNoTranscript)
	_, err = f.svc.Recording(ctx, "u1", c.ID)
	assert.ErrorIs(t, err, ErrNoRecording)
	_, err = f.svc.Transcript(ctx, "u2", c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_EndCancelsAndHangsUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Initiate(ctx, "u1", InitiateRequest{ExpertID: f.expert.ID, Goal: "x"})
	require.NoError(t, err)
	_, err = f.repo.Transition(ctx, c.ID, StatusPending, StatusDialing)
	require.NoError(t, err)
	require.NoError(t, f.repo.SetProviderCallSID(ctx, c.ID, "CA123"))

	ended, err := f.svc.End(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, ended.Status)
	assert.NotNil(t, ended.CompletedAt)
	assert.Empty(t, ended.FailureReason)
	assert.Equal(t, []string{c.ID}, f.runner.canceled)
	assert.Equal(t, []string{"CA123"}, f.hanger.sids)
	assert.Len(t, f.audit.ByType(audit.EventTypeCallCanceled), 1)

	_, err = f.svc.End(ctx, "u1", c.ID)
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestService_RetryOnlyAfterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Initiate(ctx, "u1", InitiateRequest{ExpertID: f.expert.ID, Goal: "x", ContextText: "ctx"})
	require.NoError(t, err)

	_, err = f.svc.Retry(ctx, "u1", c.ID)
	assert.ErrorIs(t, err, ErrStatusConflict)

	_, err = f.repo.Finish(ctx, c.ID, StatusFailed, "provider down", time.Now())
	require.NoError(t, err)

	again, err := f.svc.Retry(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, again.ID)
	assert.Equal(t, StatusPending, again.Status)
	assert.Equal(t, "ctx", again.ContextText)

	prev, err := f.svc.Get(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, prev.Status)
	assert.Equal(t, "provider down", prev.FailureReason)
}
