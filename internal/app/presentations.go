package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"

	"showcase/api/internal/access"
	"showcase/api/internal/store"
	"showcase/api/internal/view"
)

// PresentationInput is the create/update payload. Absent fields keep their stored value,
// except ValueAdded, where absent and null both mean "no value-added asset".
type PresentationInput struct {
	State                   *string         `json:"state"`
	ResponsibleContactName  *string         `json:"responsibleContactName"`
	ResponsibleContactTitle *string         `json:"responsibleContactTitle"`
	ResponsibleContactPhone *string         `json:"responsibleContactPhone"`
	ResponsibleContactEmail *string         `json:"responsibleContactEmail"`
	CompanyName             *string         `json:"companyName"`
	ValueAdded              *int64          `json:"valueAdded"`
	Company                 *CompanyInput   `json:"company"`
	Services                *[]ServiceInput `json:"services"`
}

type CompanyInput struct {
	ID      int64   `json:"id"`
	Name    *string `json:"name"`
	ImageID *int64  `json:"imageId"`
}

func (c CompanyInput) patch() (store.CompanyPatch, bool) {
	return store.CompanyPatch{ID: c.ID, Name: c.Name, ImageID: c.ImageID}, c.Name != nil || c.ImageID != nil
}

type ServiceInput struct {
	ID               int64   `json:"id"`
	Title            *string `json:"title"`
	ShortDescription *string `json:"shortDescription"`
	LongDescription  *string `json:"longDescription"`
	BulletPoints     *string `json:"bulletPoints"`
}

func (s ServiceInput) patch() (store.ServicePatch, bool) {
	p := store.ServicePatch{
		ID:               s.ID,
		Title:            s.Title,
		ShortDescription: s.ShortDescription,
		LongDescription:  s.LongDescription,
		BulletPoints:     s.BulletPoints,
	}
	return p, p.Title != nil || p.ShortDescription != nil || p.LongDescription != nil || p.BulletPoints != nil
}

// checkServices returns the distinct service ids of the payload in order. Every id
// must name an existing service.
func (s *Service) checkServices(ctx context.Context, items []ServiceInput) ([]int64, error) {
	ids := make([]int64, 0, len(items))
	seen := map[int64]struct{}{}
	for _, item := range items {
		if item.ID <= 0 {
			return nil, validationError("services[].id must be a positive integer")
		}
		if _, ok := seen[item.ID]; ok {
			continue
		}
		if _, err := s.store.GetService(ctx, item.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, validationError(fmt.Sprintf("service %d does not exist", item.ID))
			}
			return nil, err
		}
		seen[item.ID] = struct{}{}
		ids = append(ids, item.ID)
	}
	return ids, nil
}

// loadOwned fetches a presentation and runs the access guard on it.
func (s *Service) loadOwned(ctx context.Context, identity *access.Identity, id int64, write bool) (store.Presentation, error) {
	if err := access.Require(identity); err != nil {
		return store.Presentation{}, guardError(err, write)
	}
	p, err := s.store.GetPresentation(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Presentation{}, domainError(http.StatusNotFound, "NOT_FOUND", "Presentation not found", nil)
	}
	if err != nil {
		return store.Presentation{}, err
	}
	if err := access.Authorize(identity, p.OwnerUserID); err != nil {
		return store.Presentation{}, guardError(err, write)
	}
	return p, nil
}

// resolveValueAdded returns the referenced asset. Someone else's asset is treated as absent.
func (s *Service) resolveValueAdded(ctx context.Context, identity *access.Identity, id int64) (store.ValueAddedAsset, error) {
	asset, err := s.store.GetValueAddedAsset(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ValueAddedAsset{}, validationError(fmt.Sprintf("value-added asset %d does not exist", id))
	}
	if err != nil {
		return store.ValueAddedAsset{}, err
	}
	if access.Authorize(identity, asset.OwnerUserID) != nil {
		return store.ValueAddedAsset{}, validationError(fmt.Sprintf("value-added asset %d does not exist", id))
	}
	return asset, nil
}

func (s *Service) checkCompany(ctx context.Context, id int64) error {
	if id <= 0 {
		return validationError("company.id must be a positive integer")
	}
	if _, err := s.store.GetCompany(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return validationError(fmt.Sprintf("company %d does not exist", id))
		}
		return err
	}
	return nil
}

func (s *Service) singleView(ctx context.Context, p store.Presentation) (view.PresentationView, error) {
	catalogue, err := s.store.ListMotivators(ctx)
	if err != nil {
		return view.PresentationView{}, fmt.Errorf("list motivators: %w", err)
	}
	return view.BuildPresentationView(p, catalogue), nil
}

func (s *Service) ListMyPresentations(ctx context.Context, identity *access.Identity) ([]view.PresentationListItem, error) {
	if err := access.Require(identity); err != nil {
		return nil, guardError(err, false)
	}
	items, err := s.store.ListPresentationsByOwner(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	return view.BuildPresentationList(items), nil
}

func (s *Service) GetPresentation(ctx context.Context, identity *access.Identity, id int64) (view.PresentationView, error) {
	p, err := s.loadOwned(ctx, identity, id, false)
	if err != nil {
		return view.PresentationView{}, err
	}
	return s.singleView(ctx, p)
}

// CreatePresentation stores a new Draft owned by the caller.
func (s *Service) CreatePresentation(ctx context.Context, identity *access.Identity, input PresentationInput) (view.PresentationView, error) {
	if err := access.Require(identity); err != nil {
		return view.PresentationView{}, guardError(err, true)
	}
	if input.State != nil {
		state, err := ParseState(*input.State)
		if err != nil {
			return view.PresentationView{}, err
		}
		if state != store.StateDraft {
			return view.PresentationView{}, validationError("presentations are created as Draft")
		}
	}

	p := store.Presentation{
		OwnerUserID:             identity.ID,
		State:                   store.StateDraft,
		ResponsibleContactName:  deref(input.ResponsibleContactName),
		ResponsibleContactTitle: deref(input.ResponsibleContactTitle),
		ResponsibleContactPhone: deref(input.ResponsibleContactPhone),
		ResponsibleContactEmail: deref(input.ResponsibleContactEmail),
		CompanyName:             deref(input.CompanyName),
	}
	if input.ValueAdded != nil {
		asset, err := s.resolveValueAdded(ctx, identity, *input.ValueAdded)
		if err != nil {
			return view.PresentationView{}, err
		}
		p.ValueAddedID = &asset.ID
		p.ValueAddedURL = &asset.PrivateFileURL
	}
	if input.Company != nil {
		if err := s.checkCompany(ctx, input.Company.ID); err != nil {
			return view.PresentationView{}, err
		}
		companyID := input.Company.ID
		p.CompanyID = &companyID
	}
	if input.Services != nil {
		ids, err := s.checkServices(ctx, *input.Services)
		if err != nil {
			return view.PresentationView{}, err
		}
		for _, id := range ids {
			p.Services = append(p.Services, store.Service{ID: id})
		}
	}

	id, err := s.store.CreatePresentation(ctx, p)
	if err != nil {
		return view.PresentationView{}, err
	}
	s.logger.InfoContext(ctx, "presentation created", "presentation_id", id, "owner_id", identity.ID)

	created, err := s.store.GetPresentation(ctx, id)
	if err != nil {
		return view.PresentationView{}, err
	}
	return s.singleView(ctx, created)
}

func (s *Service) DeletePresentation(ctx context.Context, identity *access.Identity, id int64) error {
	if _, err := s.loadOwned(ctx, identity, id, true); err != nil {
		return err
	}
	if err := s.store.DeletePresentation(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "presentation deleted", "presentation_id", id, "owner_id", identity.ID)
	return nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// UploadValueAdded writes the file to the private area, then records it for the caller.
func (s *Service) UploadValueAdded(ctx context.Context, identity *access.Identity, baseURL, filename string, body io.Reader, size int64) (view.ValueAddedNode, error) {
	if err := access.Require(identity); err != nil {
		return view.ValueAddedNode{}, guardError(err, true)
	}
	stored, err := s.assets.StoreValueAdded(ctx, baseURL, filename, body, size)
	if err != nil {
		return view.ValueAddedNode{}, err
	}
	asset, err := s.store.CreateValueAddedAsset(ctx, store.ValueAddedAsset{
		OwnerUserID:    identity.ID,
		Title:          stored.Name,
		PrivateFileURL: stored.URL,
	})
	if err != nil {
		return view.ValueAddedNode{}, err
	}
	return valueAddedNode(asset), nil
}

func (s *Service) ListMyValueAdded(ctx context.Context, identity *access.Identity) ([]view.ValueAddedNode, error) {
	if err := access.Require(identity); err != nil {
		return nil, guardError(err, false)
	}
	items, err := s.store.ListValueAddedAssetsByOwner(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	out := make([]view.ValueAddedNode, 0, len(items))
	for _, item := range items {
		out = append(out, valueAddedNode(item))
	}
	return out, nil
}

func valueAddedNode(a store.ValueAddedAsset) view.ValueAddedNode {
	return view.ValueAddedNode{
		ID:             a.ID,
		OwnerUserID:    a.OwnerUserID,
		Title:          a.Title,
		PrivateFileURL: a.PrivateFileURL,
		CreatedAt:      a.CreatedAt,
	}
}

func (s *Service) AudienceCatalog(ctx context.Context) (view.AudienceCatalog, error) {
	audiences, err := s.store.ListAudiences(ctx)
	if err != nil {
		return view.AudienceCatalog{}, err
	}
	return view.BuildAudienceCatalog(audiences), nil
}

func (s *Service) MotivatorCatalog(ctx context.Context) ([]view.CatalogMotivator, error) {
	motivators, err := s.store.ListMotivators(ctx)
	if err != nil {
		return nil, err
	}
	return view.BuildMotivatorCatalog(motivators), nil
}

// GeneratePresentationPDF renders the single view of a presentation to PDF, stores it in
// the public pdf area and returns its URL.
func (s *Service) GeneratePresentationPDF(ctx context.Context, baseURL string, id int64) (string, error) {
	p, err := s.store.GetPresentation(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domainError(http.StatusNotFound, "NOT_FOUND", "Presentation not found", nil)
	}
	if err != nil {
		return "", err
	}
	v, err := s.singleView(ctx, p)
	if err != nil {
		return "", err
	}
	result, err := s.exporter.PresentationPDF(ctx, v)
	if err != nil {
		return "", fmt.Errorf("render presentation %d: %w", id, err)
	}
	stored, err := s.assets.StoreGenerated(ctx, baseURL, id, result.Data)
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "presentation pdf generated", "presentation_id", id, "file", stored.Name)
	return stored.URL, nil
}

func (s *Service) OpenPublicFile(ctx context.Context, area, name string) (io.ReadCloser, error) {
	return s.assets.OpenPublic(ctx, area, name)
}
