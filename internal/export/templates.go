package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"regexp"
	"time"

	"showcase/api/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{3,8}$`)

var presentationTemplate = template.Must(template.New("presentation.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string { return t.Format("02/01/2006") },
	// Only hex colors reach the style attribute; anything else falls back to a neutral gray.
	"cssColor": func(c string) template.CSS {
		if hexColor.MatchString(c) {
			return template.CSS(c)
		}
		return template.CSS("#999999")
	},
}).ParseFS(templateFS, "templates/presentation.html"))

// RenderPresentationHTML renders the aggregated view as a standalone HTML page.
// Motivators without services are left out of the document.
func RenderPresentationHTML(v view.PresentationView) (string, error) {
	var buf bytes.Buffer
	if err := presentationTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render presentation: %w", err)
	}
	return buf.String(), nil
}
