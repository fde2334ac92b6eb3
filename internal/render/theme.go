package render

import (
	"fmt"
	"html/template"
	"sort"
)

// Layout is a template family. Each family has exactly one template; themes
// only change its colors, font and flags.
type Layout string

const (
	LayoutClassic Layout = "classic"
	LayoutModern  Layout = "modern"
	LayoutCompact Layout = "compact"
)

// TemplateTheme parameterizes a layout.
type TemplateTheme struct {
	Name         string `json:"name"`
	Layout       Layout `json:"layout"`
	PrimaryColor string `json:"primary_color"`
	AccentColor  string `json:"accent_color"`
	TextColor    string `json:"text_color"`
	FontFamily   string `json:"font_family"`

	ShowClientAddress bool `json:"show_client_address"`
	ShowPositions     bool `json:"show_positions"`
	ShowTaxBreakdown  bool `json:"show_tax_breakdown"`
}

// CSS returns the theme as custom properties for the page stylesheet.
// Values come from the built-in theme table only.
func (t TemplateTheme) CSS() template.CSS {
	return template.CSS(fmt.Sprintf(
		":root{--primary:%s;--accent:%s;--text:%s;--font:%s}",
		t.PrimaryColor, t.AccentColor, t.TextColor, t.FontFamily,
	))
}

// DefaultThemeName is used for documents without a theme.
const DefaultThemeName = "classic"

var themes = map[string]TemplateTheme{
	"classic": {
		Name: "classic", Layout: LayoutClassic,
		PrimaryColor: "#1f2937", AccentColor: "#2563eb", TextColor: "#111827",
		FontFamily:        "Georgia, serif",
		ShowClientAddress: true, ShowTaxBreakdown: true,
	},
	"elegant": {
		Name: "elegant", Layout: LayoutClassic,
		PrimaryColor: "#4c1d95", AccentColor: "#a16207", TextColor: "#1c1917",
		FontFamily:        "Garamond, serif",
		ShowClientAddress: true, ShowTaxBreakdown: true,
	},
	"modern": {
		Name: "modern", Layout: LayoutModern,
		PrimaryColor: "#0f766e", AccentColor: "#f97316", TextColor: "#0f172a",
		FontFamily:        "Helvetica, Arial, sans-serif",
		ShowClientAddress: true, ShowPositions: true, ShowTaxBreakdown: true,
	},
	"bold": {
		Name: "bold", Layout: LayoutModern,
		PrimaryColor: "#b91c1c", AccentColor: "#111827", TextColor: "#111827",
		FontFamily:    "Verdana, sans-serif",
		ShowPositions: true, ShowTaxBreakdown: true,
	},
	"compact": {
		Name: "compact", Layout: LayoutCompact,
		PrimaryColor: "#374151", AccentColor: "#374151", TextColor: "#111827",
		FontFamily: "Arial, sans-serif",
	},
	"minimal": {
		Name: "minimal", Layout: LayoutCompact,
		PrimaryColor: "#000000", AccentColor: "#6b7280", TextColor: "#000000",
		FontFamily:       "monospace",
		ShowTaxBreakdown: true,
	},
}

// LookupTheme returns the named theme. An empty name yields the default.
func LookupTheme(name string) (TemplateTheme, bool) {
	if name == "" {
		name = DefaultThemeName
	}
	t, ok := themes[name]
	return t, ok
}

// ThemeFor returns the named theme or the default one.
func ThemeFor(name string) TemplateTheme {
	if t, ok := LookupTheme(name); ok {
		return t
	}
	return themes[DefaultThemeName]
}

// Themes lists the built-in themes by name.
func Themes() []TemplateTheme {
	out := make([]TemplateTheme, 0, len(themes))
	for _, t := range themes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
