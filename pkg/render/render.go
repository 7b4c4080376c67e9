// Package render turns dashboard snapshots into HTML.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/hawky-4s-/energy-report-dashboard/pkg/dashboard"
)

//go:embed templates/*.html
var templateFS embed.FS

// Title is the page heading.
const Title = "Energy Meter Data Report"

// Renderer renders the dashboard page and the live view fragment.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	funcs := sprig.FuncMap()
	funcs["fixed3"] = Fixed3
	funcs["number"] = Number
	funcs["updatedAgo"] = updatedAgo
	funcs["heading"] = func() string { return Title }

	tmpl, err := template.New("dashboard").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Page renders the full HTML document with snap as initial content.
func (r *Renderer) Page(w io.Writer, snap dashboard.Snapshot) error {
	return r.tmpl.ExecuteTemplate(w, "page", snap)
}

// View renders the content of the #app element.
func (r *Renderer) View(w io.Writer, snap dashboard.Snapshot) error {
	return r.tmpl.ExecuteTemplate(w, "view", snap)
}

// ReportPane renders only the report pane.
func (r *Renderer) ReportPane(w io.Writer, state dashboard.ReportState) error {
	return r.tmpl.ExecuteTemplate(w, "report", state)
}

// Fixed3 formats an amount with exactly three decimals.
func Fixed3(d decimal.Decimal) string {
	return d.StringFixed(3)
}

// Number formats a kWh value with the shortest representation, e.g. 10 or 2.5.
func Number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func updatedAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
