// Package render turns documents and public gate pages into HTML. Documents
// are printed to PDF by the browser.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diewo77/briefly/internal/i18n"
	"github.com/diewo77/briefly/internal/models"
	"github.com/diewo77/briefly/internal/money"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	PagePassword = "password"
	PageLocked   = "locked"
	PageMessage  = "message"
)

// DocumentView is the input of Renderer.Document.
type DocumentView struct {
	Doc   *models.Document
	Theme TemplateTheme
	Lang  string
	// Token enables the approve/reject forms of the public page.
	Token   string
	Actions []string
	Notice  string
	// UIMode is the visitor's light/dark preference.
	UIMode string
}

// PageView is the input of Renderer.Page.
type PageView struct {
	Lang         string
	Token        string
	Title        string
	Message      string
	Error        string
	RetryMinutes int
	UIMode       string
}

type documentData struct {
	DocumentView
	Totals   money.Totals
	Client   *models.Client
	KindCode string
}

// Renderer executes the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

func New() (*Renderer, error) {
	t, err := template.New("").Funcs(funcs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for _, name := range []string{string(LayoutClassic), string(LayoutModern), string(LayoutCompact), PagePassword, PageLocked, PageMessage} {
		if t.Lookup(name) == nil {
			return nil, fmt.Errorf("missing template %q", name)
		}
	}
	return &Renderer{tmpl: t}, nil
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"t": i18n.T,
		"money": func(d decimal.Decimal, currency string) string {
			return money.Format(d) + " " + currency
		},
		"num": func(d decimal.Decimal) string { return d.String() },
		"date": formatDate,
		"lineTotal": func(it models.LineItem) decimal.Decimal { return it.Total() },
		"inc":       func(i int) int { return i + 1 },
		"has": func(list []string, s string) bool {
			for _, v := range list {
				if v == s {
					return true
				}
			}
			return false
		},
	}
}

func formatDate(v any) string {
	var t time.Time
	switch d := v.(type) {
	case time.Time:
		t = d
	case *time.Time:
		if d == nil {
			return ""
		}
		t = *d
	}
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// Document renders a document with its theme's layout. Totals are rounded
// here and only here.
func (r *Renderer) Document(w io.Writer, v DocumentView) error {
	if v.Doc == nil {
		return fmt.Errorf("render: nil document")
	}
	if v.Theme.Name == "" {
		v.Theme = ThemeFor(v.Doc.Theme)
	}
	data := documentData{
		DocumentView: v,
		Totals:       v.Doc.Totals().Rounded(),
		Client:       v.Doc.Client,
		KindCode:     "doc." + string(v.Doc.Kind),
	}
	if data.Client == nil {
		data.Client = &models.Client{}
	}
	return r.execute(w, string(v.Theme.Layout), data)
}

// Page renders one of the public gate pages.
func (r *Renderer) Page(w io.Writer, name string, v PageView) error {
	return r.execute(w, name, v)
}

// execute buffers the output so a template error never leaves a half page
// on the wire.
func (r *Renderer) execute(w io.Writer, name string, data any) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
