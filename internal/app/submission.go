package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"showcase/api/internal/access"
	"showcase/api/internal/assets"
	"showcase/api/internal/email"
	"showcase/api/internal/store"
	"showcase/api/internal/telemetry"
	"showcase/api/internal/view"
)

// ParseState accepts the wire spellings of a presentation state, case-insensitively.
func ParseState(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "draft", "borrador":
		return store.StateDraft, nil
	case "submitted", "enviado":
		return store.StateSubmitted, nil
	default:
		return "", validationError(fmt.Sprintf("unknown state %q", raw))
	}
}

// change is one field of a changeSet. Unset fields keep the stored value.
type change[T any] struct {
	set   bool
	value T
}

func setTo[T any](v T) change[T] {
	return change[T]{set: true, value: v}
}

func (c change[T]) or(current T) T {
	if c.set {
		return c.value
	}
	return current
}

// changeSet accumulates every presentation field an update touches so the update
// lands in a single store write.
type changeSet struct {
	state         change[string]
	contactName   change[string]
	contactTitle  change[string]
	contactPhone  change[string]
	contactEmail  change[string]
	companyName   change[string]
	downloadURL   change[*string]
	valueAddedID  change[*int64]
	valueAddedURL change[*string]
	companyID     change[*int64]
	serviceIDs    change[[]int64]
}

func stringChange(v *string) change[string] {
	if v == nil {
		return change[string]{}
	}
	return setTo(*v)
}

// apply returns the presentation with the change set laid over it. Owner and
// creation time are never touched.
func (c changeSet) apply(p store.Presentation) store.Presentation {
	p.State = c.state.or(p.State)
	p.ResponsibleContactName = c.contactName.or(p.ResponsibleContactName)
	p.ResponsibleContactTitle = c.contactTitle.or(p.ResponsibleContactTitle)
	p.ResponsibleContactPhone = c.contactPhone.or(p.ResponsibleContactPhone)
	p.ResponsibleContactEmail = c.contactEmail.or(p.ResponsibleContactEmail)
	p.CompanyName = c.companyName.or(p.CompanyName)
	p.DownloadURL = c.downloadURL.or(p.DownloadURL)
	p.ValueAddedID = c.valueAddedID.or(p.ValueAddedID)
	p.ValueAddedURL = c.valueAddedURL.or(p.ValueAddedURL)
	p.CompanyID = c.companyID.or(p.CompanyID)
	if c.serviceIDs.set {
		services := make([]store.Service, 0, len(c.serviceIDs.value))
		for _, id := range c.serviceIDs.value {
			services = append(services, store.Service{ID: id})
		}
		p.Services = services
	}
	return p
}

// UpdatePresentation applies an update payload. A payload moving a Draft to Submitted
// runs the submission pipeline: document generation, value-added relocation, one write,
// then CRM forwarding and the advisor notice.
func (s *Service) UpdatePresentation(ctx context.Context, identity *access.Identity, id int64, baseURL string, input PresentationInput) (view.PresentationView, error) {
	current, err := s.loadOwned(ctx, identity, id, true)
	if err != nil {
		return view.PresentationView{}, err
	}

	target := current.State
	if input.State != nil {
		target, err = ParseState(*input.State)
		if err != nil {
			return view.PresentationView{}, err
		}
	}
	if current.State == store.StateSubmitted && target == store.StateDraft {
		return view.PresentationView{}, domainError(http.StatusConflict, "INVALID_TRANSITION", "A submitted presentation cannot go back to Draft", nil)
	}
	submitting := current.State == store.StateDraft && target == store.StateSubmitted

	var span trace.Span
	if submitting {
		ctx, span = telemetry.Tracer().Start(ctx, "presentation.submit",
			trace.WithAttributes(attribute.Int64("presentation.id", id)))
		defer span.End()
	}

	cs := changeSet{
		state:        setTo(target),
		contactName:  stringChange(input.ResponsibleContactName),
		contactTitle: stringChange(input.ResponsibleContactTitle),
		contactPhone: stringChange(input.ResponsibleContactPhone),
		contactEmail: stringChange(input.ResponsibleContactEmail),
		companyName:  stringChange(input.CompanyName),
	}
	if input.Company != nil {
		if err := s.checkCompany(ctx, input.Company.ID); err != nil {
			return view.PresentationView{}, err
		}
		companyID := input.Company.ID
		cs.companyID = setTo(&companyID)
	}
	if input.Services != nil {
		ids, err := s.checkServices(ctx, *input.Services)
		if err != nil {
			return view.PresentationView{}, err
		}
		cs.serviceIDs = setTo(ids)
	}

	var asset *store.ValueAddedAsset
	if input.ValueAdded != nil {
		resolved, err := s.resolveValueAdded(ctx, identity, *input.ValueAdded)
		if err != nil {
			return view.PresentationView{}, err
		}
		asset = &resolved
	}

	if submitting {
		cs.downloadURL = setTo[*string](nil)
		if documentURL, ok := s.generateDocument(ctx, id); ok {
			cs.downloadURL = setTo(&documentURL)
		}
	}

	if err := s.resolveValueAddedChange(ctx, current, asset, submitting, baseURL, &cs); err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "value-added relocation failed")
		}
		return view.PresentationView{}, err
	}

	if err := s.store.UpdatePresentation(ctx, cs.apply(current)); err != nil {
		return view.PresentationView{}, err
	}

	if !submitting {
		if err := s.cascade(ctx, input); err != nil {
			return view.PresentationView{}, err
		}
	}

	updated, err := s.store.GetPresentation(ctx, id)
	if err != nil {
		return view.PresentationView{}, err
	}

	if submitting {
		s.logger.InfoContext(ctx, "presentation submitted", "presentation_id", id, "owner_id", identity.ID)
		s.afterSubmit(ctx, updated)
	}
	return s.singleView(ctx, updated)
}

// generateDocument asks the PDF generator for the presentation document. A failure
// leaves the download URL empty and never fails the submission.
func (s *Service) generateDocument(ctx context.Context, id int64) (string, bool) {
	if s.generator == nil {
		return "", false
	}
	ctx, span := telemetry.Tracer().Start(ctx, "presentation.generate_pdf")
	defer span.End()

	documentURL, err := s.generator.Generate(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pdf generation failed")
		s.logger.WarnContext(ctx, "pdf generation failed", "presentation_id", id, "error", err)
		return "", false
	}
	return documentURL, true
}

// resolveValueAddedChange fills the value-added fields of cs for an already resolved
// asset. A nil asset clears them.
func (s *Service) resolveValueAddedChange(
	ctx context.Context,
	current store.Presentation,
	asset *store.ValueAddedAsset,
	submitting bool,
	baseURL string,
	cs *changeSet,
) error {
	if asset == nil {
		cs.valueAddedID = setTo[*int64](nil)
		cs.valueAddedURL = setTo[*string](nil)
		return nil
	}

	cs.valueAddedID = setTo(&asset.ID)

	hadValueAdded := current.ValueAddedID != nil
	switch {
	case submitting && hadValueAdded:
		publicURL, err := s.relocate(ctx, baseURL, current.ID, asset.PrivateFileURL)
		if err != nil {
			return err
		}
		cs.valueAddedURL = setTo(&publicURL)
	case !submitting && hadValueAdded && *current.ValueAddedID == asset.ID && current.ValueAddedURL != nil:
		// same asset as before: keep whatever URL it already resolved to
		cs.valueAddedURL = setTo(current.ValueAddedURL)
	default:
		privateURL := asset.PrivateFileURL
		cs.valueAddedURL = setTo(&privateURL)
	}
	return nil
}

func (s *Service) relocate(ctx context.Context, baseURL string, presentationID int64, privateURL string) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "presentation.relocate_value_added")
	defer span.End()

	publicURL, err := s.assets.Relocate(ctx, baseURL, privateURL)
	if errors.Is(err, assets.ErrAssetMissing) {
		span.RecordError(err)
		s.logger.WarnContext(ctx, "value-added file missing", "presentation_id", presentationID, "url", privateURL)
		return "", domainError(http.StatusBadRequest, "ASSET_MISSING", "The value-added file no longer exists", map[string]any{"privateFileUrl": privateURL})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "relocation failed")
		return "", fmt.Errorf("relocate value-added for presentation %d: %w", presentationID, err)
	}
	return publicURL, nil
}

// cascade writes the company and service field edits carried by the payload, one
// record at a time, after the presentation itself.
func (s *Service) cascade(ctx context.Context, input PresentationInput) error {
	if input.Company != nil {
		if patch, ok := input.Company.patch(); ok {
			if err := s.store.UpdateCompany(ctx, patch); err != nil {
				return fmt.Errorf("update company %d: %w", patch.ID, err)
			}
		}
	}
	if input.Services == nil {
		return nil
	}
	for _, item := range *input.Services {
		patch, ok := item.patch()
		if !ok {
			continue
		}
		if err := s.store.UpdateService(ctx, patch); err != nil {
			return fmt.Errorf("update service %d: %w", patch.ID, err)
		}
	}
	return nil
}

// afterSubmit runs the best-effort side effects of a submission. Neither one can
// change the response.
func (s *Service) afterSubmit(ctx context.Context, p store.Presentation) {
	advisor, err := s.store.GetAdvisor(ctx, p.OwnerUserID)
	if err != nil {
		s.logger.WarnContext(ctx, "load advisor for submission", "presentation_id", p.ID, "error", err)
		advisor = store.Advisor{ID: p.OwnerUserID}
	}

	if s.forwarder != nil {
		fctx, span := telemetry.Tracer().Start(ctx, "presentation.crm_forward")
		s.forwarder.Forward(fctx, p, advisor)
		span.End()
	}

	if s.mailer == nil || !s.mailer.IsConfigured() || advisor.Email == "" {
		return
	}
	notice := email.SubmissionNotice{
		AdvisorName:    advisorName(advisor),
		PresentationID: p.ID,
		CompanyName:    p.CompanyName,
		ContactName:    p.ResponsibleContactName,
		DownloadURL:    deref(p.DownloadURL),
		ValueAddedURL:  deref(p.ValueAddedURL),
	}
	if err := s.mailer.SendSubmissionNotice(advisor.Email, notice); err != nil {
		s.logger.WarnContext(ctx, "submission notice failed", "presentation_id", p.ID, "error", err)
	}
}
