package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"strings"
	"text/template"
	"time"

	"github.com/baraks/slotwatch/internal/catalog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templateNames = []string{
	"availability",
	"register_confirmation",
	"unregister_confirmation",
	"help",
	"admin_alert",
}

// Renderer renders outbound messages from templates. All output is
// Telegram HTML, so every user-controlled value goes through escapeHTML.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":      titleCase,
		"upper":      strings.ToUpper,
		"lower":      strings.ToLower,
		"formatDate": formatDate,
		"escapeHTML": html.EscapeString,
	}

	r := &Renderer{templates: make(map[string]*template.Template)}

	for _, name := range templateNames {
		filename := fmt.Sprintf("templates/%s.tmpl", name)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(name).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}

		r.templates[name] = tmpl
	}

	return r, nil
}

// ServiceDates is one offering's block in an availability message.
type ServiceDates struct {
	DisplayName string
	Dates       []string
}

// RenderAvailability renders the per-subscriber availability message. The
// caller passes only offerings the subscriber is registered for that have
// open dates, already in catalog order.
func (r *Renderer) RenderAvailability(services []ServiceDates) (string, error) {
	return r.render("availability", struct{ Services []ServiceDates }{services})
}

// RenderRegisterConfirmation renders the register reply echoing the
// subscriber's resulting service set.
func (r *Renderer) RenderRegisterConfirmation(displayNames []string) (string, error) {
	return r.render("register_confirmation", struct{ Services []string }{displayNames})
}

// RenderUnregisterConfirmation renders the unregister reply echoing what is
// left of the subscriber's service set.
func (r *Renderer) RenderUnregisterConfirmation(displayNames []string) (string, error) {
	return r.render("unregister_confirmation", struct{ Services []string }{displayNames})
}

// RenderHelp renders the command overview with the current catalog.
func (r *Renderer) RenderHelp(entries []catalog.Entry) (string, error) {
	return r.render("help", struct{ Entries []catalog.Entry }{entries})
}

// RenderAdminAlert renders an operator alert.
func (r *Renderer) RenderAdminAlert(reason string, chatID int64, cause error) (string, error) {
	data := struct {
		Reason string
		ChatID int64
		Cause  string
	}{Reason: reason, ChatID: chatID}
	if cause != nil {
		data.Cause = cause.Error()
	}
	return r.render("admin_alert", data)
}

func (r *Renderer) render(name string, data any) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// Template functions

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

// formatDate turns a provider calendar date into a human-readable line.
// Unparseable values pass through verbatim rather than break a message.
func formatDate(s string) string {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Mon, Jan 2 2006")
		}
	}
	return s
}
