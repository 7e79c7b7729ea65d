package presentation

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math"
	"regexp"
	"strings"
	"time"

	apperrors "software-quoter/internal/common/errors"
)

//go:embed templates/quote.html
var templateFS embed.FS

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case "", ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

type palette struct {
	Background string
	Surface    string
	Text       string
	Muted      string
	Grid       string
	Accent     string
	Bar        string
}

var themes = map[Theme]palette{
	ThemeLight: {Background: "#ffffff", Surface: "#f8fafc", Text: "#0f172a", Muted: "#64748b", Grid: "#e2e8f0", Accent: "#8b5cf6", Bar: "#cbd5e1"},
	ThemeDark:  {Background: "#0f172a", Surface: "#1e293b", Text: "#f8fafc", Muted: "#94a3b8", Grid: "#334155", Accent: "#8b5cf6", Bar: "#475569"},
}

type ExportOptions struct {
	Theme       Theme
	ProjectName string
	Brand       string
	GeneratedAt time.Time
}

// Document is a rendered export ready to be written or served.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

type Exporter interface {
	Export(v View, opts ExportOptions) (*Document, error)
}

// HTMLExporter renders a fixed A4 page layout with 10mm margins.
type HTMLExporter struct {
	tmpl *template.Template
}

func NewHTMLExporter() (*HTMLExporter, error) {
	tmpl, err := template.New("quote.html").ParseFS(templateFS, "templates/quote.html")
	if err != nil {
		return nil, fmt.Errorf("parse export template: %w", err)
	}
	return &HTMLExporter{tmpl: tmpl}, nil
}

type barData struct {
	Bar
	Style template.CSS
}

type templateData struct {
	View
	Brand       string
	Colors      palette
	PieStyle    template.CSS
	Bars        []barData
	GeneratedAt string
}

func (e *HTMLExporter) Export(v View, opts ExportOptions) (*Document, error) {
	theme := opts.Theme
	if theme == "" {
		theme = ThemeLight
	}
	colors, ok := themes[theme]
	if !ok {
		return nil, apperrors.NewExportFailedError(fmt.Errorf("unknown theme %q", theme))
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}
	brand := opts.Brand
	if brand == "" {
		brand = defaultBrand
	}

	data := templateData{
		View:        v,
		Brand:       brand,
		Colors:      colors,
		PieStyle:    pieStyle(v.Breakdown, colors),
		Bars:        barStyles(v.Comparison.Bars, colors),
		GeneratedAt: opts.GeneratedAt.Format("2006-01-02"),
	}

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return nil, apperrors.NewExportFailedError(err)
	}

	name := opts.ProjectName
	if strings.TrimSpace(name) == "" {
		name = v.Title
	}
	return &Document{
		Filename:    Filename(name),
		ContentType: "text/html; charset=utf-8",
		Body:        buf.Bytes(),
	}, nil
}

// pieStyle draws the breakdown as a conic gradient.
func pieStyle(slices []Slice, colors palette) template.CSS {
	var total float64
	for _, s := range slices {
		total += s.Amount.Value
	}
	if total <= 0 {
		return template.CSS("background: " + colors.Grid + ";")
	}

	stops := make([]string, 0, len(slices))
	var start float64
	for _, s := range slices {
		end := start + s.Amount.Value/total*100
		stops = append(stops, fmt.Sprintf("%s %.2f%% %.2f%%", s.Color, start, end))
		start = end
	}
	return template.CSS("background: conic-gradient(" + strings.Join(stops, ", ") + ");")
}

func barStyles(bars []Bar, colors palette) []barData {
	var max float64
	for _, b := range bars {
		max = math.Max(max, b.Amount.Value)
	}

	out := make([]barData, len(bars))
	for i, b := range bars {
		width := 0.0
		if max > 0 {
			width = b.Amount.Value / max * 100
		}
		color := colors.Bar
		if b.Highlight {
			color = colors.Accent
		}
		out[i] = barData{
			Bar:   b,
			Style: template.CSS(fmt.Sprintf("width: %.1f%%; background: %s;", width, color)),
		}
	}
	return out
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9-]+`)

// Filename derives quote-<slug>.html from the project name.
func Filename(projectName string) string {
	slug := strings.ToLower(strings.TrimSpace(projectName))
	slug = strings.Join(strings.Fields(slug), "-")
	slug = slugUnsafe.ReplaceAllString(slug, "")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "project"
	}
	return "quote-" + slug + ".html"
}
