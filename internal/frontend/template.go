package frontend

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kgarg2468/Skintel/internal/types"
)

var templateFuncs = template.FuncMap{
	"riskClass": func(level types.RiskLevel) string {
		return "risk-" + strings.ToLower(string(level))
	},
	"inc": func(i int) int { return i + 1 },
	"mb": func(bytes int64) string {
		return fmt.Sprintf("%.1f", float64(bytes)/(1024*1024))
	},
}

// Renderer executes the embedded page templates
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses every embedded template. Each page defines its own
// "content" block inside the shared layout.
func NewRenderer() (*Renderer, error) {
	fsys, err := templatesFS()
	if err != nil {
		return nil, fmt.Errorf("failed to open templates: %w", err)
	}
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	for _, page := range []string{"index", "results", "error"} {
		if tmpl.Lookup(page) == nil {
			return nil, fmt.Errorf("template %q not defined", page)
		}
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes name into a buffer first so a template error never leaves
// a half-written page.
func (r *Renderer) Render(c *gin.Context, status int, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
	return nil
}
