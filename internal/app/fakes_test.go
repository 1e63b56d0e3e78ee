package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"showcase/api/internal/access"
	"showcase/api/internal/assets"
	"showcase/api/internal/config"
	"showcase/api/internal/email"
	"showcase/api/internal/export"
	"showcase/api/internal/store"
	"showcase/api/internal/view"
)

var fixedNow = time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

// fakeStore is an in-memory dataStore. The func fields override single calls.
type fakeStore struct {
	presentations map[int64]store.Presentation
	assets        map[int64]store.ValueAddedAsset
	advisors      map[int64]store.Advisor
	companies     map[int64]store.Company
	services      map[int64]store.Service
	motivators    []store.Motivator
	nextID        int64

	updates []store.Presentation
	events  []string

	pingFn               func(context.Context) error
	updatePresentationFn func(context.Context, store.Presentation) error
}

func newFakeStore() *fakeStore {
	motivators := []store.Motivator{
		{ID: 1, Title: "Bienestar", Slug: "bienestar", Color: "#00A19A"},
		{ID: 2, Title: "Crecimiento", Slug: "crecimiento", Color: "#F5A623"},
		{ID: 3, Title: "Reconocimiento", Slug: "reconocimiento", Color: "#D0021B"},
	}
	return &fakeStore{
		presentations: map[int64]store.Presentation{},
		assets:        map[int64]store.ValueAddedAsset{},
		advisors: map[int64]store.Advisor{
			1: {ID: 1, FirstName: "Ana", LastName: "Perez", Role: "advisor", Email: "ana@example.com"},
			2: {ID: 2, FirstName: "Luis", LastName: "Gomez", Role: "advisor", Email: "luis@example.com"},
		},
		companies: map[int64]store.Company{
			5: {ID: 5, Name: "Acme"},
		},
		services: map[int64]store.Service{
			10: {ID: 10, Title: "Pausas activas", Motivator: &motivators[0]},
			11: {ID: 11, Title: "Mentorias", Motivator: &motivators[1]},
			12: {ID: 12, Title: "Sin motivador"},
		},
		motivators: motivators,
		nextID:     100,
	}
}

func (f *fakeStore) seedPresentation(p store.Presentation) {
	p.CreatedAt = fixedNow
	p.UpdatedAt = fixedNow
	f.presentations[p.ID] = p
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) GetPresentation(_ context.Context, id int64) (store.Presentation, error) {
	p, ok := f.presentations[id]
	if !ok {
		return store.Presentation{}, sql.ErrNoRows
	}
	return f.populate(p), nil
}

func (f *fakeStore) populate(p store.Presentation) store.Presentation {
	services := make([]store.Service, 0, len(p.Services))
	for _, ref := range p.Services {
		if svc, ok := f.services[ref.ID]; ok {
			services = append(services, svc)
		}
	}
	p.Services = services
	p.Company = nil
	if p.CompanyID != nil {
		if c, ok := f.companies[*p.CompanyID]; ok {
			p.Company = &c
		}
	}
	p.ValueAdded = nil
	if p.ValueAddedID != nil {
		if a, ok := f.assets[*p.ValueAddedID]; ok {
			p.ValueAdded = &a
		}
	}
	return p
}

func (f *fakeStore) ListPresentationsByOwner(_ context.Context, ownerID int64) ([]store.Presentation, error) {
	var out []store.Presentation
	for _, p := range f.presentations {
		if p.OwnerUserID == ownerID {
			out = append(out, f.populate(p))
		}
	}
	return out, nil
}

// linkable fails like the presentation_services foreign key on an unknown service.
func (f *fakeStore) linkable(p store.Presentation) error {
	for _, ref := range p.Services {
		if _, ok := f.services[ref.ID]; !ok {
			return fmt.Errorf("link service %d: violates foreign key constraint", ref.ID)
		}
	}
	return nil
}

func (f *fakeStore) CreatePresentation(_ context.Context, p store.Presentation) (int64, error) {
	if err := f.linkable(p); err != nil {
		return 0, err
	}
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = fixedNow
	p.UpdatedAt = fixedNow
	f.presentations[p.ID] = p
	return p.ID, nil
}

func (f *fakeStore) UpdatePresentation(ctx context.Context, p store.Presentation) error {
	if f.updatePresentationFn != nil {
		if err := f.updatePresentationFn(ctx, p); err != nil {
			return err
		}
	}
	existing, ok := f.presentations[p.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if err := f.linkable(p); err != nil {
		return err
	}
	p.OwnerUserID = existing.OwnerUserID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = fixedNow.Add(time.Minute)
	f.updates = append(f.updates, p)
	f.events = append(f.events, "presentation")
	f.presentations[p.ID] = p
	return nil
}

func (f *fakeStore) DeletePresentation(_ context.Context, id int64) error {
	if _, ok := f.presentations[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.presentations, id)
	return nil
}

func (f *fakeStore) GetCompany(_ context.Context, id int64) (store.Company, error) {
	c, ok := f.companies[id]
	if !ok {
		return store.Company{}, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) UpdateCompany(_ context.Context, patch store.CompanyPatch) error {
	c, ok := f.companies[patch.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	f.companies[patch.ID] = c
	f.events = append(f.events, "company")
	return nil
}

func (f *fakeStore) GetService(_ context.Context, id int64) (store.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return store.Service{}, sql.ErrNoRows
	}
	return svc, nil
}

func (f *fakeStore) UpdateService(_ context.Context, patch store.ServicePatch) error {
	svc, ok := f.services[patch.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if patch.Title != nil {
		svc.Title = *patch.Title
	}
	if patch.ShortDescription != nil {
		svc.ShortDescription = *patch.ShortDescription
	}
	f.services[patch.ID] = svc
	f.events = append(f.events, "service")
	return nil
}

func (f *fakeStore) GetValueAddedAsset(_ context.Context, id int64) (store.ValueAddedAsset, error) {
	a, ok := f.assets[id]
	if !ok {
		return store.ValueAddedAsset{}, sql.ErrNoRows
	}
	return a, nil
}

func (f *fakeStore) ListValueAddedAssetsByOwner(_ context.Context, ownerID int64) ([]store.ValueAddedAsset, error) {
	var out []store.ValueAddedAsset
	for _, a := range f.assets {
		if a.OwnerUserID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateValueAddedAsset(_ context.Context, a store.ValueAddedAsset) (store.ValueAddedAsset, error) {
	f.nextID++
	a.ID = f.nextID
	a.CreatedAt = fixedNow
	f.assets[a.ID] = a
	return a, nil
}

func (f *fakeStore) ListMotivators(context.Context) ([]store.Motivator, error) {
	return f.motivators, nil
}

func (f *fakeStore) ListAudiences(context.Context) ([]store.Audience, error) {
	return []store.Audience{{
		ID:   1,
		Name: "Colaboradores",
		Motivators: []store.AudienceMotivator{
			{Motivator: f.motivators[0], Services: []store.Service{f.services[10]}},
		},
	}}, nil
}

func (f *fakeStore) GetAdvisor(_ context.Context, id int64) (store.Advisor, error) {
	a, ok := f.advisors[id]
	if !ok {
		return store.Advisor{}, sql.ErrNoRows
	}
	return a, nil
}

func (f *fakeStore) GetAdvisorByEmail(_ context.Context, addr string) (store.Advisor, error) {
	for _, a := range f.advisors {
		if strings.EqualFold(a.Email, addr) {
			return a, nil
		}
	}
	return store.Advisor{}, sql.ErrNoRows
}

func (f *fakeStore) CreateAdvisor(_ context.Context, a store.Advisor) (store.Advisor, error) {
	f.nextID++
	a.ID = f.nextID
	f.advisors[a.ID] = a
	return a, nil
}

type fakeGenerator struct {
	url   string
	err   error
	calls []int64
}

func (g *fakeGenerator) Generate(_ context.Context, id int64) (string, error) {
	g.calls = append(g.calls, id)
	if g.err != nil {
		return "", g.err
	}
	return g.url, nil
}

type fakeForwarder struct {
	forwarded []store.Presentation
	advisors  []store.Advisor
}

func (f *fakeForwarder) Forward(_ context.Context, p store.Presentation, advisor store.Advisor) {
	f.forwarded = append(f.forwarded, p)
	f.advisors = append(f.advisors, advisor)
}

type fakeMailer struct {
	configured bool
	err        error
	sent       []email.SubmissionNotice
	to         []string
}

func (m *fakeMailer) IsConfigured() bool { return m.configured }

func (m *fakeMailer) SendSubmissionNotice(to string, notice email.SubmissionNotice) error {
	m.to = append(m.to, to)
	m.sent = append(m.sent, notice)
	return m.err
}

type fakeExporter struct {
	data []byte
	err  error
}

func (e *fakeExporter) PresentationPDF(_ context.Context, v view.PresentationView) (*export.Result, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &export.Result{Data: e.data, Filename: "presentacion.pdf", MimeType: "application/pdf"}, nil
}

type testEnv struct {
	store     *fakeStore
	generator *fakeGenerator
	forwarder *fakeForwarder
	mailer    *fakeMailer
	uploads   string
	relocator *assets.Relocator
	service   *Service
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      "test-secret",
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     time.Hour,
		GeneratorToken: "generator-secret",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	uploads := t.TempDir()
	local, err := assets.NewLocalStorage(uploads)
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	env := &testEnv{
		store:     newFakeStore(),
		generator: &fakeGenerator{url: "https://docs/x.pdf"},
		forwarder: &fakeForwarder{},
		mailer:    &fakeMailer{},
		uploads:   uploads,
		relocator: assets.NewRelocator(local),
	}
	env.service = New(testConfig(), Deps{
		Store:     env.store,
		Assets:    env.relocator,
		Generator: env.generator,
		Forwarder: env.forwarder,
		Mailer:    env.mailer,
		Exporter:  &fakeExporter{data: []byte("%PDF-1.4 test")},
		Logger:    discardLogger(),
	})
	return env
}

func identityOf(id int64) *access.Identity {
	return &access.Identity{ID: id, Name: "advisor", Role: access.RoleAdvisor}
}

func strPtr(v string) *string { return &v }

func int64Ptr(v int64) *int64 { return &v }

func requireDomainError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError %s, got %v", code, err)
	}
	if domainErr.Status != status || domainErr.Code != code {
		t.Fatalf("expected %d %s, got %d %s (%s)", status, code, domainErr.Status, domainErr.Code, domainErr.Message)
	}
}
