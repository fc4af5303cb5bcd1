package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/auth"
	"github.com/ulritter/freelance-crawler/internal/config"
	"github.com/ulritter/freelance-crawler/internal/executor"
	"github.com/ulritter/freelance-crawler/internal/metrics"
	"github.com/ulritter/freelance-crawler/internal/orchestrator"
	"github.com/ulritter/freelance-crawler/internal/storage/memory"
	"github.com/ulritter/freelance-crawler/internal/store"
)

var errTest = errors.New("backing store unavailable")

type fakeJob struct {
	name string
	run  func(ctx context.Context, emit func(line string)) error
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) Run(ctx context.Context, emit func(line string)) error {
	if j.run != nil {
		return j.run(ctx, emit)
	}
	return nil
}

type fakeListings struct {
	mu        sync.Mutex
	listings  []store.Listing
	processed map[int64]bool
	listErr   error
}

func newFakeListings(listings ...store.Listing) *fakeListings {
	return &fakeListings{listings: listings, processed: make(map[int64]bool)}
}

func (f *fakeListings) UpsertListing(_ context.Context, l store.Listing) (store.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings = append(f.listings, l)
	return store.UpsertResult{Inserted: true}, nil
}

func (f *fakeListings) ListListings(_ context.Context, filter store.ListingFilter) ([]store.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []store.Listing
	for _, l := range f.listings {
		if filter.Site != "" && l.Site != filter.Site {
			continue
		}
		if filter.Unprocessed && l.Processed {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeListings) GetListing(_ context.Context, id int64) (store.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.listings {
		if l.ID == id {
			return l, nil
		}
	}
	return store.Listing{}, store.ErrNotFound
}

func (f *fakeListings) SetProcessed(_ context.Context, id int64, processed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.listings {
		if l.ID == id {
			f.listings[i].Processed = processed
			f.processed[id] = processed
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeListings) Stats(_ context.Context) ([]store.SiteCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]*store.SiteCount{}
	var order []string
	for _, l := range f.listings {
		c, ok := counts[l.Site]
		if !ok {
			c = &store.SiteCount{Site: l.Site}
			counts[l.Site] = c
			order = append(order, l.Site)
		}
		c.Total++
		if !l.Processed {
			c.New++
		}
	}
	out := make([]store.SiteCount, 0, len(order))
	for _, site := range order {
		out = append(out, *counts[site])
	}
	return out, nil
}

type fakeAuthRepo struct {
	mu    sync.Mutex
	users map[string]store.User
	codes map[string]store.AuthCode
}

func newFakeAuthRepo(emails ...string) *fakeAuthRepo {
	r := &fakeAuthRepo{
		users: make(map[string]store.User),
		codes: make(map[string]store.AuthCode),
	}
	for i, email := range emails {
		r.users[email] = store.User{ID: int64(i + 1), Email: email}
	}
	return r
}

func (r *fakeAuthRepo) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *fakeAuthRepo) EnsureUser(_ context.Context, email string) (store.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[email]; ok {
		return u, nil
	}
	u := store.User{ID: int64(len(r.users) + 1), Email: email}
	r.users[email] = u
	return u, nil
}

func (r *fakeAuthRepo) TouchLastLogin(_ context.Context, _ int64, _ time.Time) error { return nil }

func (r *fakeAuthRepo) SaveCode(_ context.Context, c store.AuthCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[c.Email] = c
	return nil
}

func (r *fakeAuthRepo) ConsumeCode(_ context.Context, email, code string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[email]
	if !ok || c.Used || c.Code != code || now.After(c.ExpiresAt) {
		return store.ErrNotFound
	}
	c.Used = true
	r.codes[email] = c
	return nil
}

func (r *fakeAuthRepo) PurgeExpired(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: make(map[string]string)}
}

func (f *fakeSettings) GetSetting(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (f *fakeSettings) PutSetting(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

type captureMailer struct {
	mu   sync.Mutex
	code string
}

func (m *captureMailer) SendCode(_ context.Context, _ string, code string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.code = code
	return nil
}

func (m *captureMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

type testEnv struct {
	server   *Server
	orch     *orchestrator.Orchestrator
	listings *fakeListings
	docs     *memory.BlobStore
	settings *fakeSettings
	mailer   *captureMailer
}

func newTestServer(jobs []executor.Job, cfg config.Config, withAuth bool) *testEnv {
	metrics.Init()
	if jobs == nil {
		jobs = []executor.Job{&fakeJob{name: "freelance"}}
	}
	orch := orchestrator.New(jobs, orchestrator.Config{Budget: time.Minute}, zap.NewNop())
	listings := newFakeListings()
	docs := memory.NewBlobStore()
	settings := newFakeSettings()
	mailer := &captureMailer{}

	var authSvc *auth.Service
	if withAuth {
		tokens, err := auth.NewTokenManager("test-secret")
		if err != nil {
			panic(err)
		}
		repo := newFakeAuthRepo("user@example.com")
		authSvc = auth.NewService(repo, repo, tokens, mailer, auth.ServiceConfig{
			CodeExpiry:      10 * time.Minute,
			SessionValidity: time.Hour,
		}, zap.NewNop())
	}

	srv := NewServer(orch, listings, authSvc, docs, settings, cfg, zap.NewNop())
	return &testEnv{server: srv, orch: orch, listings: listings, docs: docs, settings: settings, mailer: mailer}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}
