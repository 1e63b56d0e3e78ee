// Package email sends transactional mail over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart/alternative message with a plain-text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct{ contentType, content string }{
		{"text/plain; charset=UTF-8", textBody},
		{"text/html; charset=UTF-8", htmlBody},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return fmt.Errorf("create mail part: %w", err)
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return fmt.Errorf("write mail part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close mail body: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type SubmissionNotice struct {
	AdvisorName    string
	PresentationID int64
	CompanyName    string
	ContactName    string
	DownloadURL    string
	ValueAddedURL  string
}

// SendSubmissionNotice tells the advisor a presentation was submitted.
func (s *Service) SendSubmissionNotice(to string, notice SubmissionNotice) error {
	html, err := renderTemplate(submissionTemplate, notice)
	if err != nil {
		return fmt.Errorf("render submission template: %w", err)
	}
	text := fmt.Sprintf("Presentacion %d para %s enviada.\r\n", notice.PresentationID, notice.CompanyName)
	if notice.DownloadURL != "" {
		text += "Documento: " + notice.DownloadURL + "\r\n"
	}
	subject := fmt.Sprintf("Presentacion enviada: %s", notice.CompanyName)
	return s.SendHTMLEmail([]string{to}, subject, text, html)
}

var submissionTemplate = template.Must(template.New("submission").Parse(submissionEmailTemplate))

func renderTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const submissionEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Presentacion enviada</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 8px 0; }
    </style>
</head>
<body>
    <div class="header"><h1>Showcase</h1></div>
    <p>Hola {{.AdvisorName}},</p>
    <p>La presentacion #{{.PresentationID}} para <strong>{{.CompanyName}}</strong> ({{.ContactName}}) fue enviada.</p>
    {{if .DownloadURL}}<p><a class="button" href="{{.DownloadURL}}">Descargar presentacion</a></p>{{end}}
    {{if .ValueAddedURL}}<p><a href="{{.ValueAddedURL}}">Valor agregado</a></p>{{end}}
</body>
</html>`
