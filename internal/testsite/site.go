// Package testsite serves a small stand-in for the migrated WealthLog front end.
// It exposes the routes the migration checks visit (/login, /dashboard,
// /landing) so the verifier can be exercised without the real application.
//
// Page bodies are written in markdown and rendered the same way the static
// docs pages are: gomarkdown to HTML, then sanitized with bluemonday.
package testsite

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

const (
	DefaultLoginHeading   = "Welcome to WealthLog"
	DefaultLandingHeading = "Dashboard"
	DefaultRedirectDelay  = 200 * time.Millisecond
)

// Options changes how the fixture behaves. The zero value is a healthy site.
type Options struct {
	LoginHeading   string
	LandingHeading string

	// RedirectDelay is how long /dashboard shows its loading screen before
	// sending an unauthenticated visitor to /login.
	RedirectDelay time.Duration

	// NoRedirect leaves /dashboard on its loading screen forever.
	NoRedirect bool

	// DashboardHeading, when set, makes /dashboard render its own page with
	// this heading instead of redirecting.
	DashboardHeading string
}

// Site is an http.Handler serving the fixture pages.
type Site struct {
	opts   Options
	tmpl   *template.Template
	policy *bluemonday.Policy
	mux    *http.ServeMux
}

type pageData struct {
	Title   string
	Content template.HTML
	Loading bool
	DelayMS int64
}

const layoutTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}} - WealthLog</title>
    <style>body { font-family: sans-serif; margin: 3rem; } .spinner { color: #888; }</style>
</head>
<body>
    <main>
{{if .Loading}}        <p class="spinner" role="status">Loading...</p>
        <script>
            setTimeout(function () { window.location.replace("/login"); }, {{.DelayMS}});
        </script>
{{else}}{{.Content}}{{end}}
    </main>
</body>
</html>
`

// New creates a fixture site.
func New(opts Options) *Site {
	if opts.LoginHeading == "" {
		opts.LoginHeading = DefaultLoginHeading
	}
	if opts.LandingHeading == "" {
		opts.LandingHeading = DefaultLandingHeading
	}
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = DefaultRedirectDelay
	}
	s := &Site{
		opts:   opts,
		tmpl:   template.Must(template.New("layout").Parse(layoutTemplate)),
		policy: bluemonday.UGCPolicy(),
		mux:    http.NewServeMux(),
	}
	s.RegisterRoutes(s.mux)
	return s
}

// RegisterRoutes registers the fixture routes on mux.
func (s *Site) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("GET /landing", s.handleLanding)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
}

func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Site) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Site) handleLogin(w http.ResponseWriter, r *http.Request) {
	md := fmt.Sprintf("# %s\n\nSign in to keep track of your accounts, budgets and net worth.\n\n"+
		"[Continue with email](/login/email)\n", s.opts.LoginHeading)
	s.renderMarkdown(w, "Sign in", md)
}

func (s *Site) handleLanding(w http.ResponseWriter, r *http.Request) {
	md := fmt.Sprintf("# %s\n\n## Accounts\n\n- Checking\n- Savings\n- Brokerage\n\n"+
		"Your portfolio summary appears here once you connect an account.\n", s.opts.LandingHeading)
	s.renderMarkdown(w, "Dashboard", md)
}

func (s *Site) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.opts.DashboardHeading != "" {
		s.renderMarkdown(w, "Dashboard", fmt.Sprintf("# %s\n\nNet worth: $0.00\n", s.opts.DashboardHeading))
		return
	}

	delay := s.opts.RedirectDelay.Milliseconds()
	if s.opts.NoRedirect {
		// Far beyond any assertion timeout.
		delay = (24 * time.Hour).Milliseconds()
	}
	s.render(w, pageData{Title: "Loading", Loading: true, DelayMS: delay})
}

func (s *Site) renderMarkdown(w http.ResponseWriter, title, md string) {
	s.render(w, pageData{
		Title:   title,
		Content: template.HTML(s.markdownToHTML([]byte(md))),
	})
}

func (s *Site) render(w http.ResponseWriter, data pageData) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// markdownToHTML converts markdown to sanitized HTML.
func (s *Site) markdownToHTML(md []byte) []byte {
	// Parsers are single-use.
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock)
	doc := p.Parse(md)

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return s.policy.SanitizeBytes(markdown.Render(doc, renderer))
}

// Start serves the fixture on a local test server and returns its base URL.
// The server is closed when the test completes.
func Start(t testing.TB, opts Options) string {
	t.Helper()

	ts := httptest.NewServer(New(opts))
	t.Cleanup(ts.Close)
	return ts.URL
}
