package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"showcase/api/internal/access"
	"showcase/api/internal/assets"
	"showcase/api/internal/auth"
	"showcase/api/internal/authpw"
	"showcase/api/internal/config"
	"showcase/api/internal/email"
	"showcase/api/internal/export"
	"showcase/api/internal/store"
	"showcase/api/internal/util"
	"showcase/api/internal/view"
)

type Session struct {
	Token        string
	RefreshToken string
	AdvisorID    int64
	Name         string
	Role         access.Role
	JTI          string
	ExpiresAt    time.Time
}

// Identity is the acting advisor carried by the session.
func (s Session) Identity() *access.Identity {
	return &access.Identity{ID: s.AdvisorID, Name: s.Name, Role: s.Role}
}

type dataStore interface {
	Ping(context.Context) error
	GetPresentation(context.Context, int64) (store.Presentation, error)
	ListPresentationsByOwner(context.Context, int64) ([]store.Presentation, error)
	CreatePresentation(context.Context, store.Presentation) (int64, error)
	UpdatePresentation(context.Context, store.Presentation) error
	DeletePresentation(context.Context, int64) error
	GetCompany(context.Context, int64) (store.Company, error)
	UpdateCompany(context.Context, store.CompanyPatch) error
	GetService(context.Context, int64) (store.Service, error)
	UpdateService(context.Context, store.ServicePatch) error
	GetValueAddedAsset(context.Context, int64) (store.ValueAddedAsset, error)
	ListValueAddedAssetsByOwner(context.Context, int64) ([]store.ValueAddedAsset, error)
	CreateValueAddedAsset(context.Context, store.ValueAddedAsset) (store.ValueAddedAsset, error)
	ListMotivators(context.Context) ([]store.Motivator, error)
	ListAudiences(context.Context) ([]store.Audience, error)
	GetAdvisor(context.Context, int64) (store.Advisor, error)
	GetAdvisorByEmail(context.Context, string) (store.Advisor, error)
	CreateAdvisor(context.Context, store.Advisor) (store.Advisor, error)
}

type sessionStore interface {
	SaveRefreshSession(context.Context, string, access.Identity, time.Time) error
	LookupRefreshSession(context.Context, string) (access.Identity, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	Ping(context.Context) error
}

type assetStore interface {
	Relocate(ctx context.Context, baseURL, privateURL string) (string, error)
	StoreValueAdded(ctx context.Context, baseURL, original string, body io.Reader, size int64) (assets.StoredFile, error)
	StoreGenerated(ctx context.Context, baseURL string, presentationID int64, pdf []byte) (assets.StoredFile, error)
	OpenPublic(ctx context.Context, area, name string) (io.ReadCloser, error)
}

type documentGenerator interface {
	Generate(ctx context.Context, presentationID int64) (string, error)
}

type contactForwarder interface {
	Forward(ctx context.Context, p store.Presentation, advisor store.Advisor)
}

type notifier interface {
	IsConfigured() bool
	SendSubmissionNotice(to string, notice email.SubmissionNotice) error
}

type pdfExporter interface {
	PresentationPDF(ctx context.Context, v view.PresentationView) (*export.Result, error)
}

// Deps are the collaborators of a Service. Sessions, Forwarder and Mailer may be nil.
type Deps struct {
	Store     dataStore
	Sessions  sessionStore
	Assets    assetStore
	Generator documentGenerator
	Forwarder contactForwarder
	Mailer    notifier
	Exporter  pdfExporter
	Logger    *slog.Logger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	assets    assetStore
	generator documentGenerator
	forwarder contactForwarder
	mailer    notifier
	exporter  pdfExporter
	passwords *authpw.Service
	logger    *slog.Logger
	now       func() time.Time
}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		sessions:  deps.Sessions,
		assets:    deps.Assets,
		generator: deps.Generator,
		forwarder: deps.Forwarder,
		mailer:    deps.Mailer,
		exporter:  deps.Exporter,
		passwords: authpw.NewService(deps.Store),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingSessions reports nil when refresh sessions are disabled.
func (s *Service) PingSessions(ctx context.Context) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.Ping(ctx)
}

func (s *Service) GeneratorToken() string {
	return s.cfg.GeneratorToken
}

// PublicBaseURL is the configured scheme://host for stored file URLs, empty when unset.
func (s *Service) PublicBaseURL() string {
	return strings.TrimRight(strings.TrimSpace(s.cfg.PublicBaseURL), "/")
}

func advisorName(a store.Advisor) string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name == "" {
		return a.Email
	}
	return name
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	advisor, err := s.passwords.SignUp(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, advisor.ID, advisorName(advisor), access.NormalizeRole(advisor.Role))
}

func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (Session, error) {
	advisor, err := s.passwords.SignIn(ctx, emailAddr, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, advisor.ID, advisorName(advisor), access.NormalizeRole(advisor.Role))
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if s.sessions == nil {
		return Session{}, domainError(http.StatusServiceUnavailable, "REFRESH_UNAVAILABLE", "Refresh tokens are disabled", nil)
	}
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, auth.ErrInvalidToken
	}
	tokenHash := auth.HashToken(refreshToken)
	identity, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	advisor, err := s.store.GetAdvisor(ctx, identity.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, advisor.ID, advisorName(advisor), access.NormalizeRole(advisor.Role))
}

func (s *Service) issueSession(ctx context.Context, advisorID int64, name string, role access.Role) (Session, error) {
	now := s.now()
	claims := auth.NewClaims(advisorID, name, string(role), now, s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Session{}, err
	}

	session := Session{
		Token:     token,
		AdvisorID: advisorID,
		Name:      name,
		Role:      role,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if s.sessions != nil {
		refresh := util.NewID("rft") + util.NewID("")
		identity := access.Identity{ID: advisorID, Name: name, Role: role}
		if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), identity, now.Add(s.cfg.RefreshTTL)); err != nil {
			return Session{}, fmt.Errorf("save refresh session: %w", err)
		}
		session.RefreshToken = refresh
	}
	return session, nil
}

// SessionFromToken validates an access token. It never touches the database: the
// identity travels in the token claims.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	if s.sessions != nil {
		revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.ID)
		if err != nil {
			return Session{}, err
		}
		if revoked {
			return Session{}, auth.ErrInvalidToken
		}
	}
	advisorID, err := claims.AdvisorID()
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		AdvisorID: advisorID,
		Name:      claims.Name,
		Role:      access.NormalizeRole(claims.Role),
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if s.sessions == nil {
		return nil
	}
	if session.JTI != "" {
		_ = s.sessions.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}
