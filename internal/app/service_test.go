package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showcase/api/internal/authpw"
	"showcase/api/internal/crm"
	"showcase/api/internal/session"
	"showcase/api/internal/store"
)

const baseURL = "http://api.test"

func TestParseStateAcceptsBothSpellings(t *testing.T) {
	cases := map[string]string{
		"Draft":     store.StateDraft,
		"borrador":  store.StateDraft,
		"SUBMITTED": store.StateSubmitted,
		" Enviado ": store.StateSubmitted,
	}
	for raw, want := range cases {
		got, err := ParseState(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseState("Archived")
	requireDomainError(t, err, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestCreateReadSubmitAsOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.service.CreatePresentation(ctx, identityOf(1), PresentationInput{
		ResponsibleContactName: strPtr("Maria Jose Lopez"),
		CompanyName:            strPtr("Acme"),
		Services:               &[]ServiceInput{{ID: 10}, {ID: 11}},
	})
	require.NoError(t, err)
	assert.Equal(t, store.StateDraft, created.State)
	assert.Equal(t, int64(1), created.OwnerUserID)

	_, err = env.service.GetPresentation(ctx, identityOf(2), created.ID)
	requireDomainError(t, err, http.StatusNotFound, "NOT_FOUND")

	submitted, err := env.service.UpdatePresentation(ctx, identityOf(1), created.ID, baseURL, PresentationInput{
		State: strPtr("Enviado"),
	})
	require.NoError(t, err)
	assert.Equal(t, store.StateSubmitted, submitted.State)
	require.NotNil(t, submitted.DownloadURL)
	assert.Equal(t, "https://docs/x.pdf", *submitted.DownloadURL)
	assert.Nil(t, submitted.ValueAddedURL)
	assert.Equal(t, []int64{created.ID}, env.generator.calls)

	require.Len(t, env.forwarder.forwarded, 1)
	assert.Equal(t, store.StateSubmitted, env.forwarder.forwarded[0].State)
	assert.Equal(t, "Ana", env.forwarder.advisors[0].FirstName)
	require.Len(t, env.store.updates, 1)
	assert.Equal(t, created.CreatedAt, env.store.presentations[created.ID].CreatedAt)
}

func TestSingleViewListsEveryMotivatorOnce(t *testing.T) {
	env := newTestEnv(t)
	env.store.seedPresentation(store.Presentation{
		ID: 1, OwnerUserID: 1, State: store.StateDraft,
		Services: []store.Service{{ID: 11}, {ID: 12}, {ID: 10}, {ID: 11}},
	})

	v, err := env.service.GetPresentation(context.Background(), identityOf(1), 1)
	require.NoError(t, err)

	var slugs []string
	for _, m := range v.Motivators {
		slugs = append(slugs, m.Slug)
	}
	assert.Equal(t, []string{"crecimiento", "bienestar", "reconocimiento"}, slugs)
	assert.Len(t, v.Motivators[0].Services, 2)
	assert.Empty(t, v.Motivators[2].Services)
}

func TestSubmitWithoutGeneratorResultStillSubmits(t *testing.T) {
	env := newTestEnv(t)
	env.generator.err = errors.New("generator down")
	env.store.seedPresentation(store.Presentation{
		ID: 1, OwnerUserID: 1, State: store.StateDraft, DownloadURL: strPtr("https://old/doc.pdf"),
	})

	v, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{State: strPtr("Submitted")})
	require.NoError(t, err)
	assert.Equal(t, store.StateSubmitted, v.State)
	assert.Nil(t, v.DownloadURL)
}

func TestSubmitRelocatesPreviouslyAttachedValueAdded(t *testing.T) {
	env := newTestEnv(t)
	privateDir := filepath.Join(env.uploads, "pdf_no_enviado")
	require.NoError(t, os.MkdirAll(privateDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(privateDir, "va.pdf"), []byte("value added"), 0o644))

	env.store.assets[7] = store.ValueAddedAsset{ID: 7, OwnerUserID: 1, Title: "va.pdf", PrivateFileURL: baseURL + "/uploads/pdf_no_enviado/va.pdf"}
	env.store.seedPresentation(store.Presentation{
		ID: 1, OwnerUserID: 1, State: store.StateDraft,
		ValueAddedID: int64Ptr(7), ValueAddedURL: strPtr(baseURL + "/uploads/pdf_no_enviado/va.pdf"),
	})

	v, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{
		State:      strPtr("enviado"),
		ValueAdded: int64Ptr(7),
	})
	require.NoError(t, err)
	require.NotNil(t, v.ValueAddedURL)
	assert.Equal(t, baseURL+"/uploads/ValorAgregadoPDF/va.pdf", *v.ValueAddedURL)

	copied, err := os.ReadFile(filepath.Join(env.uploads, "ValorAgregadoPDF", "va.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "value added", string(copied))
	_, err = os.Stat(filepath.Join(privateDir, "va.pdf"))
	assert.NoError(t, err, "private copy is kept")
}

func TestSubmitWithMissingPrivateFileDoesNotWrite(t *testing.T) {
	env := newTestEnv(t)
	env.store.assets[7] = store.ValueAddedAsset{ID: 7, OwnerUserID: 1, PrivateFileURL: baseURL + "/uploads/pdf_no_enviado/gone.pdf"}
	env.store.seedPresentation(store.Presentation{
		ID: 1, OwnerUserID: 1, State: store.StateDraft, ValueAddedID: int64Ptr(7),
	})

	_, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{
		State:      strPtr("Submitted"),
		ValueAdded: int64Ptr(7),
	})
	requireDomainError(t, err, http.StatusBadRequest, "ASSET_MISSING")
	assert.Empty(t, env.store.updates)
	assert.Equal(t, store.StateDraft, env.store.presentations[1].State)
	assert.Empty(t, env.forwarder.forwarded)
}

func TestSubmitWithFirstValueAddedKeepsPrivateURL(t *testing.T) {
	env := newTestEnv(t)
	privateURL := baseURL + "/uploads/pdf_no_enviado/first.pdf"
	env.store.assets[8] = store.ValueAddedAsset{ID: 8, OwnerUserID: 1, PrivateFileURL: privateURL}
	env.store.seedPresentation(store.Presentation{ID: 1, OwnerUserID: 1, State: store.StateDraft})

	v, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{
		State:      strPtr("Submitted"),
		ValueAdded: int64Ptr(8),
	})
	require.NoError(t, err)
	require.NotNil(t, v.ValueAddedURL)
	assert.Equal(t, privateURL, *v.ValueAddedURL)
	require.NotNil(t, v.ValueAdded)
	assert.Equal(t, int64(8), v.ValueAdded.ID)
}

func TestUpdateRejectsForeignValueAdded(t *testing.T) {
	env := newTestEnv(t)
	env.store.assets[9] = store.ValueAddedAsset{ID: 9, OwnerUserID: 2, PrivateFileURL: baseURL + "/uploads/pdf_no_enviado/x.pdf"}
	env.store.seedPresentation(store.Presentation{ID: 1, OwnerUserID: 1, State: store.StateDraft})

	_, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{ValueAdded: int64Ptr(9)})
	requireDomainError(t, err, http.StatusBadRequest, "VALIDATION_ERROR")
	assert.Empty(t, env.store.updates)
}

func TestSubmittedCannotGoBackToDraft(t *testing.T) {
	env := newTestEnv(t)
	env.store.seedPresentation(store.Presentation{ID: 1, OwnerUserID: 1, State: store.StateSubmitted})

	_, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{State: strPtr("Borrador")})
	requireDomainError(t, err, http.StatusConflict, "INVALID_TRANSITION")
	assert.Empty(t, env.store.updates)
}

func TestResubmittingIsAPlainUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.store.seedPresentation(store.Presentation{
		ID: 1, OwnerUserID: 1, State: store.StateSubmitted, DownloadURL: strPtr("https://docs/old.pdf"),
	})

	v, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{
		State:                  strPtr("Submitted"),
		ResponsibleContactName: strPtr("Nuevo Contacto"),
	})
	require.NoError(t, err)
	assert.Empty(t, env.generator.calls)
	assert.Empty(t, env.forwarder.forwarded)
	require.NotNil(t, v.DownloadURL)
	assert.Equal(t, "https://docs/old.pdf", *v.DownloadURL)
	assert.Equal(t, "Nuevo Contacto", v.ResponsibleContactName)
}

func TestGuardRejectsMissingIdentityAndForeignOwner(t *testing.T) {
	env := newTestEnv(t)
	env.store.seedPresentation(store.Presentation{ID: 1, OwnerUserID: 1, State: store.StateDraft})
	ctx := context.Background()

	_, err := env.service.GetPresentation(ctx, nil, 1)
	requireDomainError(t, err, http.StatusUnauthorized, "UNAUTHORIZED")

	_, err = env.service.ListMyPresentations(ctx, nil)
	requireDomainError(t, err, http.StatusUnauthorized, "UNAUTHORIZED")

	_, err = env.service.UpdatePresentation(ctx, identityOf(2), 1, baseURL, PresentationInput{})
	requireDomainError(t, err, http.StatusForbidden, "FORBIDDEN")

	err = env.service.DeletePresentation(ctx, identityOf(2), 1)
	requireDomainError(t, err, http.StatusForbidden, "FORBIDDEN")

	_, err = env.service.GetPresentation(ctx, identityOf(1), 404)
	requireDomainError(t, err, http.StatusNotFound, "NOT_FOUND")

	require.NoError(t, env.service.DeletePresentation(ctx, identityOf(1), 1))
	assert.NotContains(t, env.store.presentations, int64(1))
}

func TestListScopesByOwner(t *testing.T) {
	env := newTestEnv(t)
	env.store.seedPresentation(store.Presentation{ID: 1, OwnerUserID: 1, State: store.StateDraft, Services: []store.Service{{ID: 12}}})
	env.store.seedPresentation(store.Presentation{ID: 2, OwnerUserID: 2, State: store.StateDraft})

	items, err := env.service.ListMyPresentations(context.Background(), identityOf(1))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ID)
	require.Len(t, items[0].Services, 1, "services without a motivator stay in the list view")
}

func TestUpdateCascadesCompanyAndServicesAfterPresentation(t *testing.T) {
	env := newTestEnv(t)
	env.store.seedPresentation(store.Presentation{ID: 1, OwnerUserID: 1, State: store.StateDraft})

	v, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{
		Company:  &CompanyInput{ID: 5, Name: strPtr("Acme SA")},
		Services: &[]ServiceInput{{ID: 10, Title: strPtr("Pausas activas plus")}, {ID: 11}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"presentation", "company", "service"}, env.store.events)
	require.NotNil(t, v.Company)
	assert.Equal(t, "Acme SA", v.Company.Name)
	assert.Equal(t, "Pausas activas plus", v.Motivators[0].Services[0].Title)
}

func TestUpdateRejectsUnknownService(t *testing.T) {
	env := newTestEnv(t)
	env.store.seedPresentation(store.Presentation{ID: 1, OwnerUserID: 1, State: store.StateDraft})

	_, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{
		State:    strPtr("Submitted"),
		Services: &[]ServiceInput{{ID: 10}, {ID: 999}},
	})
	requireDomainError(t, err, http.StatusBadRequest, "VALIDATION_ERROR")
	assert.Empty(t, env.generator.calls)
	assert.Empty(t, env.store.updates)
	assert.Equal(t, store.StateDraft, env.store.presentations[1].State)
}

func TestCreateRejectsUnknownService(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.CreatePresentation(context.Background(), identityOf(1), PresentationInput{
		Services: &[]ServiceInput{{ID: 999}},
	})
	requireDomainError(t, err, http.StatusBadRequest, "VALIDATION_ERROR")
	assert.Empty(t, env.store.presentations)
}

func TestSubmitWithForeignValueAddedSkipsGenerator(t *testing.T) {
	env := newTestEnv(t)
	env.store.assets[9] = store.ValueAddedAsset{ID: 9, OwnerUserID: 2, PrivateFileURL: baseURL + "/uploads/pdf_no_enviado/x.pdf"}
	env.store.seedPresentation(store.Presentation{ID: 1, OwnerUserID: 1, State: store.StateDraft})

	_, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{
		State:      strPtr("Submitted"),
		ValueAdded: int64Ptr(9),
	})
	requireDomainError(t, err, http.StatusBadRequest, "VALIDATION_ERROR")
	assert.Empty(t, env.generator.calls)
	assert.Empty(t, env.store.updates)
}

func TestUpdateRejectsUnknownCompany(t *testing.T) {
	env := newTestEnv(t)
	env.store.seedPresentation(store.Presentation{ID: 1, OwnerUserID: 1, State: store.StateDraft})

	_, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{
		Company: &CompanyInput{ID: 99},
	})
	requireDomainError(t, err, http.StatusBadRequest, "VALIDATION_ERROR")
	assert.Empty(t, env.store.events)
}

func TestDraftUpdateKeepsRelocatedValueAddedURL(t *testing.T) {
	env := newTestEnv(t)
	publicURL := baseURL + "/uploads/ValorAgregadoPDF/va.pdf"
	env.store.assets[7] = store.ValueAddedAsset{ID: 7, OwnerUserID: 1, PrivateFileURL: baseURL + "/uploads/pdf_no_enviado/va.pdf"}
	env.store.seedPresentation(store.Presentation{
		ID: 1, OwnerUserID: 1, State: store.StateSubmitted,
		ValueAddedID: int64Ptr(7), ValueAddedURL: strPtr(publicURL),
	})

	v, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{ValueAdded: int64Ptr(7)})
	require.NoError(t, err)
	require.NotNil(t, v.ValueAddedURL)
	assert.Equal(t, publicURL, *v.ValueAddedURL)

	v, err = env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{})
	require.NoError(t, err)
	assert.Nil(t, v.ValueAddedURL)
	assert.Nil(t, v.ValueAdded)
}

func TestCRMFailureDoesNotChangeSubmission(t *testing.T) {
	var hits atomic.Int32
	crmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer crmServer.Close()

	env := newTestEnv(t)
	env.service.forwarder = crm.NewForwarder(crmServer.URL, time.Second, discardLogger())
	env.store.seedPresentation(store.Presentation{ID: 1, OwnerUserID: 1, State: store.StateDraft, ResponsibleContactName: "Maria Lopez"})

	v, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{State: strPtr("Submitted")})
	require.NoError(t, err)
	assert.Equal(t, store.StateSubmitted, v.State)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSubmitForwardsWhenAdvisorLookupFails(t *testing.T) {
	env := newTestEnv(t)
	delete(env.store.advisors, 1)
	env.store.seedPresentation(store.Presentation{ID: 1, OwnerUserID: 1, State: store.StateDraft})

	_, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{State: strPtr("Submitted")})
	require.NoError(t, err)
	require.Len(t, env.forwarder.forwarded, 1)
	assert.Equal(t, int64(1), env.forwarder.advisors[0].ID)
	assert.Empty(t, env.mailer.sent)
}

func TestSubmissionNoticeIsBestEffort(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.configured = true
	env.mailer.err = errors.New("smtp down")
	env.store.seedPresentation(store.Presentation{ID: 1, OwnerUserID: 1, State: store.StateDraft, CompanyName: "Acme"})

	_, err := env.service.UpdatePresentation(context.Background(), identityOf(1), 1, baseURL, PresentationInput{State: strPtr("Submitted")})
	require.NoError(t, err)
	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, []string{"ana@example.com"}, env.mailer.to)
	assert.Equal(t, "https://docs/x.pdf", env.mailer.sent[0].DownloadURL)
	assert.Equal(t, "Ana Perez", env.mailer.sent[0].AdvisorName)
}

func TestCreateRejectsSubmittedState(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.CreatePresentation(context.Background(), identityOf(1), PresentationInput{State: strPtr("Enviado")})
	requireDomainError(t, err, http.StatusBadRequest, "VALIDATION_ERROR")
	assert.Empty(t, env.store.presentations)
}

func TestGeneratePresentationPDFStoresInPublicArea(t *testing.T) {
	env := newTestEnv(t)
	env.store.seedPresentation(store.Presentation{ID: 3, OwnerUserID: 1, State: store.StateDraft})

	documentURL, err := env.service.GeneratePresentationPDF(context.Background(), baseURL, 3)
	require.NoError(t, err)
	assert.Regexp(t, `^http://api\.test/uploads/pdf/presentacion_3_\d+\.pdf$`, documentURL)

	matches, err := filepath.Glob(filepath.Join(env.uploads, "pdf", "presentacion_3_*.pdf"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func newRedisSessions(t *testing.T) *session.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewRedisStoreWithClient(client)
}

func TestSignUpSignInAndRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.service.sessions = newRedisSessions(t)
	ctx := context.Background()

	signedUp, err := env.service.SignUp(ctx, authpw.SignUpRequest{
		Email: "carla@example.com", Password: "correct-horse", FirstName: "Carla", LastName: "Diaz",
	})
	require.NoError(t, err)
	assert.Equal(t, "Carla Diaz", signedUp.Name)
	require.NotEmpty(t, signedUp.RefreshToken)

	current, err := env.service.SessionFromToken(ctx, signedUp.Token)
	require.NoError(t, err)
	assert.Equal(t, signedUp.AdvisorID, current.Identity().ID)

	_, err = env.service.SignIn(ctx, "carla@example.com", "wrong-password")
	assert.ErrorIs(t, err, authpw.ErrInvalidCredentials)

	refreshed, err := env.service.Refresh(ctx, signedUp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, signedUp.RefreshToken, refreshed.RefreshToken)

	_, err = env.service.Refresh(ctx, signedUp.RefreshToken)
	assert.ErrorIs(t, err, session.ErrSessionNotFound, "refresh tokens are single use")
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	env := newTestEnv(t)
	env.service.sessions = newRedisSessions(t)
	ctx := context.Background()

	signedIn, err := env.service.issueSession(ctx, 1, "Ana Perez", "advisor")
	require.NoError(t, err)
	current, err := env.service.SessionFromToken(ctx, signedIn.Token)
	require.NoError(t, err)

	require.NoError(t, env.service.Logout(ctx, current, signedIn.RefreshToken))

	_, err = env.service.SessionFromToken(ctx, signedIn.Token)
	assert.Error(t, err)
	_, err = env.service.Refresh(ctx, signedIn.RefreshToken)
	assert.Error(t, err)
}

func TestRefreshWithoutSessionStoreIsUnavailable(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Refresh(context.Background(), "anything")
	requireDomainError(t, err, http.StatusServiceUnavailable, "REFRESH_UNAVAILABLE")
}
