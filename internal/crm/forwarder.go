// Package crm forwards submitted presentations to the external CRM as contacts.
package crm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"showcase/api/internal/store"
)

// Field carries one multipart form field, kept in send order.
type Field struct {
	Name  string
	Value string
}

type Forwarder struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewForwarder posts to <baseURL>/crear-contacto. An empty baseURL disables forwarding.
func NewForwarder(baseURL string, timeout time.Duration, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	endpoint := ""
	if baseURL != "" {
		endpoint = strings.TrimRight(baseURL, "/") + "/crear-contacto"
	}
	return &Forwarder{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// SplitName returns the first token as first name and the rest joined by one space.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ContactFields builds the flat contact record for a submitted presentation.
func ContactFields(p store.Presentation, advisor store.Advisor) []Field {
	first, last := SplitName(p.ResponsibleContactName)
	valueAdded := "0"
	if p.ValueAddedURL != nil && *p.ValueAddedURL != "" {
		valueAdded = *p.ValueAddedURL
	}
	return []Field{
		{"presentation_id", strconv.FormatInt(p.ID, 10)},
		{"created_at", p.CreatedAt.UTC().Format(time.RFC3339)},
		{"updated_at", p.UpdatedAt.UTC().Format(time.RFC3339)},
		{"first_name", first},
		{"last_name", last},
		{"title", p.ResponsibleContactTitle},
		{"phone", p.ResponsibleContactPhone},
		{"email", p.ResponsibleContactEmail},
		{"download_url", deref(p.DownloadURL)},
		{"value_added_url", valueAdded},
		{"company_name", p.CompanyName},
		{"advisor_id", strconv.FormatInt(advisor.ID, 10)},
		{"advisor_first_name", advisor.FirstName},
		{"advisor_last_name", advisor.LastName},
		{"advisor_role", advisor.Role},
		{"advisor_phone", advisor.Phone},
		{"advisor_email", advisor.Email},
	}
}

// Forward posts the contact once. Failures are logged and never returned.
func (f *Forwarder) Forward(ctx context.Context, p store.Presentation, advisor store.Advisor) {
	if f.endpoint == "" {
		return
	}
	if err := f.post(ctx, ContactFields(p, advisor)); err != nil {
		f.logger.WarnContext(ctx, "crm forward failed", "presentation_id", p.ID, "error", err)
		return
	}
	f.logger.InfoContext(ctx, "crm contact forwarded", "presentation_id", p.ID)
}

func (f *Forwarder) post(ctx context.Context, fields []Field) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, field := range fields {
		if err := w.WriteField(field.Name, field.Value); err != nil {
			return fmt.Errorf("write field %s: %w", field.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("post contact: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("crm responded %d", resp.StatusCode)
	}
	return nil
}
