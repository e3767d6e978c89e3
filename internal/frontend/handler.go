package frontend

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kgarg2468/Skintel/internal/analysis"
	apperrors "github.com/kgarg2468/Skintel/internal/errors"
	"github.com/kgarg2468/Skintel/internal/privacy"
	"github.com/kgarg2468/Skintel/internal/security"
)

// Pages renders the upload form, the results dashboard and the error page
type Pages struct {
	renderer       *Renderer
	notice         privacy.Notice
	maxUploadBytes int64
}

func NewPages(renderer *Renderer, notice privacy.Notice, maxUploadBytes int64) *Pages {
	return &Pages{renderer: renderer, notice: notice, maxUploadBytes: maxUploadBytes}
}

type indexData struct {
	Nonce          string
	Notice         privacy.Notice
	MaxUploadBytes int64
	UploadField    string
}

type resultsData struct {
	Nonce      string
	Notice     privacy.Notice
	Report     *analysis.Report
	Conditions analysis.Results
	Filename   string
}

type errorData struct {
	Nonce          string
	Notice         privacy.Notice
	Message        string
	RequestID      string
	MaxUploadBytes int64
	UploadField    string
}

// Index serves the upload form
func (p *Pages) Index(c *gin.Context) {
	p.render(c, http.StatusOK, "index", indexData{
		Nonce:          security.GetNonce(c),
		Notice:         p.notice,
		MaxUploadBytes: p.maxUploadBytes,
		UploadField:    security.UploadField,
	})
}

// Results renders the dashboard for a finished report. Conditions are shown
// highest confidence first.
func (p *Pages) Results(c *gin.Context, report *analysis.Report, filename string) {
	p.render(c, http.StatusOK, "results", resultsData{
		Nonce:      security.GetNonce(c),
		Notice:     p.notice,
		Report:     report,
		Conditions: report.AnalysisResults.ByConfidence(),
		Filename:   filename,
	})
}

// Error shows the user-facing message of err above a fresh upload form
func (p *Pages) Error(c *gin.Context, err *apperrors.AppError) {
	p.render(c, err.HTTPStatus, "error", errorData{
		Nonce:          security.GetNonce(c),
		Notice:         p.notice,
		Message:        err.UserMessage,
		RequestID:      err.RequestID,
		MaxUploadBytes: p.maxUploadBytes,
		UploadField:    security.UploadField,
	})
}

func (p *Pages) render(c *gin.Context, status int, name string, data interface{}) {
	if err := p.renderer.Render(c, status, name, data); err != nil {
		slog.Error("Failed to render page", "page", name, "error", err)
		apperrors.Abort(c, apperrors.NewInternalError("render "+name, err))
	}
}

// StaticHandler serves the embedded stylesheet and script
func StaticHandler(static fs.FS) gin.HandlerFunc {
	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(static)))
	return func(c *gin.Context) {
		c.Header("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}
