package export

import (
	"context"
	"fmt"

	"showcase/api/internal/view"
)

type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

type Service struct {
	renderer PDFRenderer
}

func NewService(renderer PDFRenderer) *Service {
	return &Service{renderer: renderer}
}

// PresentationPDF renders the aggregated presentation view to a PDF document.
func (s *Service) PresentationPDF(ctx context.Context, v view.PresentationView) (*Result, error) {
	html, err := RenderPresentationHTML(v)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.RenderPDF(ctx, html)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     pdf,
		Filename: fmt.Sprintf("presentacion-%d-%s.pdf", v.ID, sanitizeFilename(v.CompanyName)),
		MimeType: "application/pdf",
	}, nil
}

func sanitizeFilename(title string) string {
	out := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '-')
		}
	}
	if len(out) > 50 {
		out = out[:50]
	}
	if len(out) == 0 {
		return "documento"
	}
	return string(out)
}
