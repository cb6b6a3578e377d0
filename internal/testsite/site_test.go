package testsite

import (
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var h1Pattern = regexp.MustCompile(`<h1[^>]*>([^<]*)</h1>`)

func get(t *testing.T, site http.Handler, path string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	site.ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func firstH1(body string) string {
	m := h1Pattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return m[1]
}

func TestSite_DefaultHeadings(t *testing.T) {
	site := New(Options{})

	code, body := get(t, site, "/login")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Welcome to WealthLog", firstH1(body))

	code, body = get(t, site, "/landing")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Dashboard", firstH1(body))
	assert.Contains(t, body, "<li>Brokerage</li>")
}

func TestSite_DashboardRedirectsToLogin(t *testing.T) {
	site := New(Options{})

	code, body := get(t, site, "/dashboard")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, firstH1(body), "loading screen must not render a heading")
	assert.Contains(t, body, "Loading...")
	assert.Contains(t, body, `window.location.replace("/login")`)
	assert.Contains(t, body, "200")
}

func TestSite_DashboardVariants(t *testing.T) {
	_, body := get(t, New(Options{NoRedirect: true}), "/dashboard")
	assert.Contains(t, body, "86400000")

	_, body = get(t, New(Options{DashboardHeading: "Welcome to WealthLog"}), "/dashboard")
	assert.Equal(t, "Welcome to WealthLog", firstH1(body))
	assert.NotContains(t, body, "location.replace")
}

func TestSite_MarkdownIsSanitized(t *testing.T) {
	site := New(Options{LoginHeading: `Welcome <script>alert("x")</script>`})
	_, body := get(t, site, "/login")
	assert.NotContains(t, body, `alert("x")`)
}

func TestSite_HealthAndUnknownRoutes(t *testing.T) {
	site := New(Options{})

	code, body := get(t, site, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"healthy"}`, body)

	code, _ = get(t, site, "/settings")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStart_ServesOverHTTP(t *testing.T) {
	baseURL := Start(t, Options{})

	resp, err := http.Get(baseURL + "/login")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}
