package service

import (
	"context"
	"sync"

	"github.com/mmeshcher/link-tracker/internal/models"
	"github.com/mmeshcher/link-tracker/internal/repository"
)

type visitKey struct {
	linkID    int64
	visitorID string
}

type fakeRepository struct {
	mu     sync.Mutex
	nextID int64
	links  map[string]*models.Link
	visits map[visitKey]models.Visit

	// recordErr, when set, fails RecordVisit before anything is stored, the
	// way a rolled back transaction leaves no trace.
	recordErr error
	// raceVisit makes HasVisit miss a visit that RecordVisit then finds.
	raceVisit bool
	listErr   error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		links:  make(map[string]*models.Link),
		visits: make(map[visitKey]models.Visit),
	}
}

func (f *fakeRepository) CreateLink(_ context.Context, link *models.Link, replaceShortID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if replaceShortID != "" {
		if old, ok := f.links[replaceShortID]; ok {
			for key := range f.visits {
				if key.linkID == old.ID {
					delete(f.visits, key)
				}
			}
			delete(f.links, replaceShortID)
		}
	}

	f.nextID++
	link.ID = f.nextID
	link.Status = models.StatusActive
	link.Clicks = 0
	stored := *link
	f.links[link.ShortID] = &stored
	return nil
}

func (f *fakeRepository) SetStatus(_ context.Context, shortID string, status models.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if link, ok := f.links[shortID]; ok {
		link.Status = status
	}
	return nil
}

func (f *fakeRepository) FindActive(_ context.Context, shortID string) (*models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	link, ok := f.links[shortID]
	if !ok || link.Status != models.StatusActive {
		return nil, repository.ErrNotFound
	}
	found := *link
	return &found, nil
}

func (f *fakeRepository) HasVisit(_ context.Context, linkID int64, visitorID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.raceVisit {
		return false, nil
	}
	_, ok := f.visits[visitKey{linkID, visitorID}]
	return ok, nil
}

func (f *fakeRepository) RecordVisit(_ context.Context, visit models.Visit) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.recordErr != nil {
		return 0, f.recordErr
	}

	key := visitKey{visit.LinkID, visit.VisitorID}
	if _, ok := f.visits[key]; ok {
		return 0, repository.ErrAlreadyCounted
	}

	for _, link := range f.links {
		if link.ID == visit.LinkID {
			f.visits[key] = visit
			link.Clicks++
			return link.Clicks, nil
		}
	}
	return 0, repository.ErrNotFound
}

func (f *fakeRepository) ListLinks(_ context.Context) ([]models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	links := make([]models.Link, 0, len(f.links))
	for _, link := range f.links {
		links = append(links, *link)
	}
	return links, nil
}

func (f *fakeRepository) Ping(_ context.Context) error {
	return nil
}

func (f *fakeRepository) clicks(shortID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links[shortID].Clicks
}

func (f *fakeRepository) visitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visits)
}

type notification struct {
	linkType models.LinkType
	shortID  string
	count    int64
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []notification
	err   error
	ctxOK bool
}

func (f *fakeNotifier) Notify(ctx context.Context, linkType models.LinkType, shortID string, count int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ctxOK = ctx.Err() == nil
	f.sent = append(f.sent, notification{linkType: linkType, shortID: shortID, count: count})
	return f.err
}

func (f *fakeNotifier) calls() []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification(nil), f.sent...)
}
