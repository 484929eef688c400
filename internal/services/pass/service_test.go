package pass

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/campus-pass/internal/approval"
	"github.com/magabrotheeeer/campus-pass/internal/lib/apperr"
	"github.com/magabrotheeeer/campus-pass/internal/lib/passtoken"
	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/storage"
	"github.com/magabrotheeeer/campus-pass/internal/storage/memory"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// textRenderer кладёт токен в QRCode как есть, чтобы тест мог его «отсканировать».
type textRenderer struct{}

func (textRenderer) Render(content string) (string, error) { return "qr:" + content, nil }

func scan(p models.Pass) string {
	return strings.TrimPrefix(p.QRCode, "qr:")
}

type emitted struct {
	userID string
	event  string
	data   any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []emitted
}

func (n *recordingNotifier) Emit(userID, event string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{userID: userID, event: event, data: data})
}

func (n *recordingNotifier) All() []emitted {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]emitted(nil), n.events...)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, event models.PassEvent) error {
	return m.Called(ctx, event).Error(0)
}

type fixture struct {
	svc      *Service
	repo     *memory.Storage
	codes    *approval.MemoryStore
	clock    *fakeClock
	notifier *recordingNotifier
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := memory.New()
	codes := approval.NewMemoryStore()
	notifier := &recordingNotifier{}
	tokens := passtoken.New("qr_secret", passtoken.WithClock(clock.Now))

	require.NoError(t, repo.CreateUser(context.Background(), models.User{
		ID: "u1", Name: "Ada", Email: "ada@campus.edu", Role: models.RoleUser,
	}))

	base := []Option{
		WithClock(clock.Now),
		WithRenderer(textRenderer{}),
		WithNotifier(notifier),
	}
	svc := New(repo, repo, codes, tokens, newNoopLogger(), append(base, opts...)...)
	return &fixture{svc: svc, repo: repo, codes: codes, clock: clock, notifier: notifier}
}

var ada = Owner{ID: "u1", Name: "Ada"}

func TestScenario_LibraryPassApproved(t *testing.T) {
	publisher := &PublisherMock{}
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e models.PassEvent) bool {
		return e.Type == models.EventPassCreated
	})).Return(nil).Once()
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e models.PassEvent) bool {
		return e.Type == models.EventPassCompleted && e.UserEmail == "ada@campus.edu" && e.Status == models.StatusCompleted
	})).Return(nil).Once()

	f := newFixture(t, WithPublisher(publisher))
	ctx := context.Background()

	p, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.ID, "PASS-"))
	assert.Equal(t, models.TypeStandard, p.Type)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.Equal(t, p.CreatedAt.Add(3*time.Hour), p.ExpiresAt)

	res, err := f.svc.Verify(ctx, scan(p))
	require.NoError(t, err)
	assert.Regexp(t, `^\d{4}$`, res.ApprovalCode)
	assert.Equal(t, p.ID, res.PassID)
	assert.Equal(t, "Ada", res.UserName)
	assert.Equal(t, "ada@campus.edu", res.UserEmail)
	assert.Equal(t, models.RoleUser, res.UserRole)
	assert.Equal(t, "Library", res.Purpose)

	f.clock.Advance(time.Minute)
	approved, err := f.svc.Approve(ctx, p.ID, res.ApprovalCode)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, approved.Status)
	require.NotNil(t, approved.CompletedAt)
	assert.Equal(t, f.clock.Now(), *approved.CompletedAt)

	stored, err := f.repo.GetPass(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)

	events := f.notifier.All()
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].userID)
	assert.Equal(t, EventPassUpdate, events[0].event)
	assert.Equal(t, approved, events[0].data)

	assert.Equal(t, 0, f.codes.Len(), "code consumed")
	publisher.AssertExpectations(t)
}

func TestScenario_RescanAfterApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePass(ctx, ada, "Main Gate", models.TypeOneTime)
	require.NoError(t, err)
	res, err := f.svc.Verify(ctx, scan(p))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, p.ID, res.ApprovalCode)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, scan(p))
	require.ErrorIs(t, err, ErrWrongState)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "Pass is already completed", err.Error())
	assert.Equal(t, 0, f.codes.Len())
}

func TestScenario_ScanAfterThreeHours(t *testing.T) {
	for _, elapsed := range []time.Duration{3*time.Hour + time.Second, 5 * time.Hour} {
		t.Run(elapsed.String(), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			p, err := f.svc.CreatePass(ctx, ada, "Hostel", models.TypeEmergency)
			require.NoError(t, err)

			f.clock.Advance(elapsed)
			_, err = f.svc.Verify(ctx, scan(p))
			require.ErrorIs(t, err, ErrExpired)

			stored, err := f.repo.GetPass(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusExpired, stored.Status)
			assert.Equal(t, 0, f.codes.Len(), "failed verification creates no code")

			_, err = f.svc.Verify(ctx, scan(p))
			assert.Equal(t, "Pass is already expired", err.Error())
		})
	}
}

func TestCreatePass_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		purpose  string
		passType models.PassType
		wantErr  error
	}{
		{name: "unknown destination", purpose: "Cafeteria", wantErr: ErrInvalidDestination},
		{name: "lowercase destination", purpose: "library", wantErr: ErrInvalidDestination},
		{name: "empty destination", purpose: "", wantErr: ErrInvalidDestination},
		{name: "unknown type", purpose: "Library", passType: "vip", wantErr: ErrInvalidPassType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreatePass(ctx, ada, tt.purpose, tt.passType)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	all, err := f.repo.ListPasses(ctx, storage.PassFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreatePass_OnePendingPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)

	_, err = f.svc.CreatePass(ctx, ada, "Auditorium", "")
	require.ErrorIs(t, err, ErrActivePassExists)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	other, err := f.svc.CreatePass(ctx, Owner{ID: "u2", Name: "Grace"}, "Library", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	// истёкший пропуск больше не блокирует выпуск нового
	f.clock.Advance(3*time.Hour + time.Second)
	second, err := f.svc.CreatePass(ctx, ada, "Auditorium", "")
	require.NoError(t, err)

	stored, err := f.repo.GetPass(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, stored.Status)
	assert.Equal(t, models.StatusPending, second.Status)
}

func TestCreatePass_ConcurrentSameUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreatePass(ctx, ada, "Library", "")
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrActivePassExists):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, 19, conflicts.Load())
}

func TestVerify_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := passtoken.New("other_secret").Issue("PASS-x", f.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	p, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)
	require.NoError(t, f.svc.DropPass(ctx, p.ID, "u1"))

	_, err = f.svc.Verify(ctx, scan(p))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, 0, f.codes.Len())
}

func TestVerify_UnknownOwnerDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePass(ctx, Owner{ID: "ghost", Name: "Ghost"}, "Food Court", "")
	require.NoError(t, err)

	res, err := f.svc.Verify(ctx, scan(p))
	require.NoError(t, err)
	assert.Equal(t, "N/A", res.UserEmail)
	assert.Equal(t, models.RoleUser, res.UserRole)
}

func TestVerify_RescanReplacesCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)

	var first, second VerifyResult
	for first.ApprovalCode == second.ApprovalCode {
		first, err = f.svc.Verify(ctx, scan(p))
		require.NoError(t, err)
		second, err = f.svc.Verify(ctx, scan(p))
		require.NoError(t, err)
	}

	_, err = f.svc.Approve(ctx, p.ID, first.ApprovalCode)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	// неверный код аннулировал выданный
	_, err = f.svc.Approve(ctx, p.ID, second.ApprovalCode)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	third, err := f.svc.Verify(ctx, scan(p))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, p.ID, third.ApprovalCode)
	assert.NoError(t, err)
}

func TestApprove_WrongCodeNeverCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)
	res, err := f.svc.Verify(ctx, scan(p))
	require.NoError(t, err)

	wrong := "0000"
	if res.ApprovalCode == wrong {
		wrong = "0001"
	}
	for range 5 {
		_, err = f.svc.Approve(ctx, p.ID, wrong)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	}
	_, err = f.svc.Approve(ctx, p.ID, res.ApprovalCode)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	stored, err := f.repo.GetPass(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Empty(t, f.notifier.All())
}

func TestApprove_CodeTimesOut(t *testing.T) {
	f := newFixture(t, WithCodeTTL(20*time.Millisecond))
	ctx := context.Background()

	p, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)
	res, err := f.svc.Verify(ctx, scan(p))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.codes.Len() == 0 }, time.Second, 5*time.Millisecond)

	_, err = f.svc.Approve(ctx, p.ID, res.ApprovalCode)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestApprove_LapsedPassLeavesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)
	f.clock.Advance(3*time.Hour - time.Minute)
	res, err := f.svc.Verify(ctx, scan(p))
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	_, err = f.svc.Approve(ctx, p.ID, res.ApprovalCode)
	require.ErrorIs(t, err, ErrExpired)

	stored, err := f.repo.GetPass(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, 0, f.codes.Len())
}

// flakyRepo отказывает в первом UpdatePass.
type flakyRepo struct {
	*memory.Storage
	failed atomic.Bool
}

func (r *flakyRepo) UpdatePass(ctx context.Context, p models.Pass) error {
	if r.failed.CompareAndSwap(false, true) {
		return errors.New("disk full")
	}
	return r.Storage.UpdatePass(ctx, p)
}

func TestApprove_PersistFailureKeepsCode(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := &flakyRepo{Storage: memory.New()}
	codes := approval.NewMemoryStore()
	svc := New(repo, repo, codes, passtoken.New("qr_secret", passtoken.WithClock(clock.Now)), newNoopLogger(),
		WithClock(clock.Now), WithRenderer(textRenderer{}))
	ctx := context.Background()

	p, err := svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)
	res, err := svc.Verify(ctx, scan(p))
	require.NoError(t, err)

	_, err = svc.Approve(ctx, p.ID, res.ApprovalCode)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	stored, err := repo.GetPass(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)

	approved, err := svc.Approve(ctx, p.ID, res.ApprovalCode)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, approved.Status)
}

func TestApprove_ConcurrentSameCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)
	res, err := f.svc.Verify(ctx, scan(p))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Approve(ctx, p.ID, res.ApprovalCode); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	assert.Len(t, f.notifier.All(), 1)
}

func TestDropPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, scan(p))
	require.NoError(t, err)

	err = f.svc.DropPass(ctx, p.ID, "intruder")
	assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)

	err = f.svc.DropPass(ctx, "PASS-missing", "u1")
	assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)

	require.NoError(t, f.svc.DropPass(ctx, p.ID, "u1"))
	assert.Equal(t, 0, f.codes.Len(), "outstanding code discarded")

	mine, err := f.svc.ListMine(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, mine)

	// после удаления можно выпустить новый
	_, err = f.svc.CreatePass(ctx, ada, "Library", "")
	assert.NoError(t, err)
}

func TestDropPass_NotPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)
	res, err := f.svc.Verify(ctx, scan(p))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, p.ID, res.ApprovalCode)
	require.NoError(t, err)

	err = f.svc.DropPass(ctx, p.ID, "u1")
	assert.ErrorIs(t, err, ErrNotPending)

	lapsed, err := f.svc.CreatePass(ctx, ada, "Hostel", "")
	require.NoError(t, err)
	f.clock.Advance(4 * time.Hour)
	err = f.svc.DropPass(ctx, lapsed.ID, "u1")
	assert.ErrorIs(t, err, ErrNotPending)

	stored, err := f.repo.GetPass(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, stored.Status)
}

func TestListMine_NewestFirstAndExpiresOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)
	f.clock.Advance(3*time.Hour + time.Second)

	fresh, err := f.svc.CreatePass(ctx, ada, "Hostel", "")
	require.NoError(t, err)
	_, err = f.svc.CreatePass(ctx, Owner{ID: "u2", Name: "Grace"}, "Library", "")
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, fresh.ID, mine[0].ID)
	assert.Equal(t, old.ID, mine[1].ID)
	assert.Equal(t, models.StatusExpired, mine[1].Status)

	all, err := f.svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestExpireIfDue_Idempotent(t *testing.T) {
	publisher := &PublisherMock{}
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f := newFixture(t, WithPublisher(publisher))
	ctx := context.Background()

	p, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)

	same, err := f.svc.ExpireIfDue(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, same.Status)

	f.clock.Advance(3*time.Hour + time.Second)
	expired, err := f.svc.ExpireIfDue(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, expired.Status)

	again, err := f.svc.ExpireIfDue(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, again.Status)

	expiredEvents := 0
	for _, call := range publisher.Calls {
		if call.Arguments.Get(1).(models.PassEvent).Type == models.EventPassExpired {
			expiredEvents++
		}
	}
	assert.Equal(t, 1, expiredEvents)
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePass(ctx, ada, "Library", "")
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.CreatePass(ctx, Owner{ID: "u2", Name: "Grace"}, "Library", "")
	require.NoError(t, err)

	f.clock.Advance(time.Hour + time.Second)
	n, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPublishFailureIsBestEffort(t *testing.T) {
	publisher := &PublisherMock{}
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	f := newFixture(t, WithPublisher(publisher))

	_, err := f.svc.CreatePass(context.Background(), ada, "Library", "")
	assert.NoError(t, err)
	publisher.AssertCalled(t, "Publish", mock.Anything, mock.Anything)
}
