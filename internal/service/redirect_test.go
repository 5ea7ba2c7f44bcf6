package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/link-tracker/internal/models"
	"github.com/mmeshcher/link-tracker/internal/notifier"
)

func newRedirectFixture(t *testing.T) (*ShortenerService, *fakeRepository, *fakeNotifier, string) {
	t.Helper()

	repo := newFakeRepository()
	n := &fakeNotifier{}
	s := NewShortenerService(repo, n, testTenants(), "http://localhost:8080", zap.NewNop())

	resp, err := s.Create(context.Background(), "crm-token", models.CreateRequest{
		OriginalURL: "https://example.com",
		Type:        models.LinkTypeCRM,
	})
	require.NoError(t, err)
	return s, repo, n, resp.ShortID
}

func TestRedirectFirstVisit(t *testing.T) {
	s, repo, n, shortID := newRedirectFixture(t)

	before := testutil.ToFloat64(redirects.WithLabelValues(outcomeCounted))

	dest, err := s.Redirect(context.Background(), shortID, models.Visitor{ID: "visitor-1", IP: "10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", dest)
	assert.Equal(t, int64(1), repo.clicks(shortID))
	assert.Equal(t, 1, repo.visitCount())
	assert.Equal(t, []notification{{linkType: models.LinkTypeCRM, shortID: shortID, count: 1}}, n.calls())
	assert.Equal(t, before+1, testutil.ToFloat64(redirects.WithLabelValues(outcomeCounted)))
}

func TestRedirectRepeatVisitIsSideEffectFree(t *testing.T) {
	s, repo, n, shortID := newRedirectFixture(t)
	visitor := models.Visitor{ID: "visitor-1", IP: "10.0.0.1"}

	for i := 0; i < 5; i++ {
		dest, err := s.Redirect(context.Background(), shortID, visitor)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", dest)
	}

	assert.Equal(t, int64(1), repo.clicks(shortID))
	assert.Equal(t, 1, repo.visitCount())
	assert.Len(t, n.calls(), 1)
}

func TestRedirectDistinctVisitors(t *testing.T) {
	s, repo, n, shortID := newRedirectFixture(t)

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Redirect(context.Background(), shortID, models.Visitor{ID: id})
		require.NoError(t, err)
	}

	assert.Equal(t, int64(3), repo.clicks(shortID))
	calls := n.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, int64(3), calls[2].count)
}

func TestRedirectErrors(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, s *ShortenerService, shortID string) (string, models.Visitor)
		wantErr error
	}{
		{
			name: "missing identity",
			prepare: func(_ *testing.T, _ *ShortenerService, shortID string) (string, models.Visitor) {
				return shortID, models.Visitor{}
			},
			wantErr: ErrIdentityMissing,
		},
		{
			name: "unknown short id",
			prepare: func(_ *testing.T, _ *ShortenerService, _ string) (string, models.Visitor) {
				return "doesnotexist", models.Visitor{ID: "visitor-1"}
			},
			wantErr: ErrLinkNotFound,
		},
		{
			name: "inactive link",
			prepare: func(t *testing.T, s *ShortenerService, shortID string) (string, models.Visitor) {
				err := s.ChangeStatus(context.Background(), "crm-token", models.ChangeStatusRequest{
					Status: models.StatusInactive, ShortID: shortID, Type: models.LinkTypeCRM,
				})
				require.NoError(t, err)
				return shortID, models.Visitor{ID: "visitor-1"}
			},
			wantErr: ErrLinkNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo, n, shortID := newRedirectFixture(t)

			id, visitor := tt.prepare(t, s, shortID)
			dest, err := s.Redirect(context.Background(), id, visitor)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, dest)
			assert.Zero(t, repo.visitCount())
			assert.Empty(t, n.calls())
		})
	}
}

func TestRedirectNotifyFailureDoesNotFailRedirect(t *testing.T) {
	s, repo, n, shortID := newRedirectFixture(t)
	n.err = errors.Join(notifier.ErrNotify, errors.New("connection refused"))

	dest, err := s.Redirect(context.Background(), shortID, models.Visitor{ID: "visitor-1"})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", dest)
	assert.Equal(t, int64(1), repo.clicks(shortID))
	assert.Equal(t, 1, repo.visitCount())
	assert.Len(t, n.calls(), 1)
}

func TestRedirectNotifyOutlivesClientCancel(t *testing.T) {
	s, _, n, shortID := newRedirectFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	fn := &cancelOnFind{Repository: s.repo, cancel: cancel}
	s.repo = fn

	_, err := s.Redirect(ctx, shortID, models.Visitor{ID: "visitor-1"})
	require.NoError(t, err)

	require.Len(t, n.calls(), 1)
	assert.True(t, n.ctxOK, "notification context must not carry the request cancellation")
}

// cancelOnFind cancels the request context right after the visit lookup.
type cancelOnFind struct {
	Repository
	cancel context.CancelFunc
}

func (c *cancelOnFind) HasVisit(ctx context.Context, linkID int64, visitorID string) (bool, error) {
	visited, err := c.Repository.HasVisit(ctx, linkID, visitorID)
	c.cancel()
	return visited, err
}

func TestRedirectFailedRecordingLeavesNoTrace(t *testing.T) {
	s, repo, n, shortID := newRedirectFixture(t)
	repo.recordErr = errors.New("connection reset during commit")

	dest, err := s.Redirect(context.Background(), shortID, models.Visitor{ID: "visitor-1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLinkNotFound)
	assert.Empty(t, dest)

	assert.Zero(t, repo.clicks(shortID))
	assert.Zero(t, repo.visitCount())
	assert.Empty(t, n.calls())

	repo.recordErr = nil
	dest, err = s.Redirect(context.Background(), shortID, models.Visitor{ID: "visitor-1"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", dest)
	assert.Equal(t, int64(1), repo.clicks(shortID))
}

func TestRedirectLostRaceIsRepeatVisit(t *testing.T) {
	s, repo, n, shortID := newRedirectFixture(t)

	_, err := s.Redirect(context.Background(), shortID, models.Visitor{ID: "visitor-1"})
	require.NoError(t, err)

	repo.raceVisit = true
	dest, err := s.Redirect(context.Background(), shortID, models.Visitor{ID: "visitor-1"})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", dest)
	assert.Equal(t, int64(1), repo.clicks(shortID))
	assert.Len(t, n.calls(), 1)
}

func TestRedirectConcurrentSameVisitor(t *testing.T) {
	s, repo, n, shortID := newRedirectFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dest, err := s.Redirect(context.Background(), shortID, models.Visitor{ID: "visitor-1"})
			assert.NoError(t, err)
			assert.Equal(t, "https://example.com", dest)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), repo.clicks(shortID))
	assert.Equal(t, 1, repo.visitCount())
	assert.Len(t, n.calls(), 1)
}

func TestRedirectWithoutNotifier(t *testing.T) {
	repo := newFakeRepository()
	s := NewShortenerService(repo, nil, testTenants(), "http://localhost:8080", zap.NewNop())

	resp, err := s.Create(context.Background(), "", models.CreateRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	dest, err := s.Redirect(context.Background(), resp.ShortID, models.Visitor{ID: "visitor-1"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", dest)
	assert.Equal(t, int64(1), repo.clicks(resp.ShortID))
}
