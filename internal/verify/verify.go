// Package verify runs the post-migration smoke checks against a WealthLog
// deployment: it visits a fixed list of pages in one browser page, waits for
// each page's heading, captures screenshots and prints a confirmation line
// per passing step. The first failure stops the run.
package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kuitang/wealthlog-verify/internal/errs"
	"github.com/kuitang/wealthlog-verify/internal/logutil"
	"github.com/kuitang/wealthlog-verify/internal/obs"
	"github.com/kuitang/wealthlog-verify/internal/urlutil"
)

const (
	LoginHeading   = "Welcome to WealthLog"
	LandingHeading = "Dashboard"

	LoginScreenshot   = "login-page.png"
	LandingScreenshot = "dashboard-page.png"

	snapshotPreviewChars = 500
)

// Check is one navigation and heading assertion.
type Check struct {
	Name    string
	Path    string
	Heading string

	// Screenshot is a file name under the run's screenshot directory.
	// Empty means no capture.
	Screenshot string

	// ExpectPath, when set, must equal the page's final URL path once the
	// heading is visible. Used to tell a redirect apart from a page that
	// happens to render the same heading.
	ExpectPath string

	Message string
}

// Plan is an ordered list of checks executed on a single page.
type Plan []Check

// DefaultPlan returns the three post-migration checks: the login page, the
// unauthenticated dashboard bouncing back to login, and the public landing page.
func DefaultPlan() Plan {
	return Plan{
		{
			Name:       "login",
			Path:       "/login",
			Heading:    LoginHeading,
			Screenshot: LoginScreenshot,
			Message:    "Screenshot of login page taken.",
		},
		{
			// MainLayout shows a loading screen before redirecting.
			Name:       "dashboard-redirect",
			Path:       "/dashboard",
			Heading:    LoginHeading,
			ExpectPath: "/login",
			Message:    "Redirected to login page from dashboard as expected.",
		},
		{
			Name:       "landing",
			Path:       "/landing",
			Heading:    LandingHeading,
			Screenshot: LandingScreenshot,
			Message:    "Screenshot of dashboard page taken.",
		},
	}
}

// Snapshot is a diagnostic view of a page, logged when a check fails.
type Snapshot struct {
	URL   string
	Title string
	HTML  string
}

// Page is the browser page the checks drive.
type Page interface {
	Goto(url string) error
	ExpectHeading(name string) error
	Screenshot(path string) ([]byte, error)
	URL() string
	Snapshot() Snapshot
	Close() error
}

// Browser opens pages. The caller owns the browser and closes it.
type Browser interface {
	NewPage() (Page, error)
	Close() error
}

// ArtifactSink receives each screenshot after it is written to disk.
// Publish returns a location string for logging.
type ArtifactSink interface {
	Publish(ctx context.Context, name string, png []byte) (string, error)
}

// Options configures a Runner.
type Options struct {
	BaseURL       string
	ScreenshotDir string
	Plan          Plan
	Sink          ArtifactSink

	// Out receives one confirmation line per passing check. Defaults to os.Stdout.
	Out io.Writer
}

// Result records a completed check.
type Result struct {
	Check          Check
	URL            string
	ScreenshotPath string
	ArtifactURL    string
	Duration       time.Duration
}

// Runner executes a Plan against a Browser.
type Runner struct {
	browser Browser
	opts    Options
}

// NewRunner creates a runner. An empty plan means DefaultPlan.
func NewRunner(browser Browser, opts Options) *Runner {
	if len(opts.Plan) == 0 {
		opts.Plan = DefaultPlan()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	opts.BaseURL = urlutil.NormalizeBaseURL(opts.BaseURL)
	return &Runner{browser: browser, opts: opts}
}

// Run executes every check in order on one page. It returns the results of
// the checks that passed and the first error, which stops the run.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	logger := obs.From(ctx).With("pkg", "verify")

	page, err := r.browser.NewPage()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "open page", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.Debug("page_close_failed", "error", cerr)
		}
	}()

	results := make([]Result, 0, len(r.opts.Plan))
	for _, check := range r.opts.Plan {
		if err := ctx.Err(); err != nil {
			return results, errs.Wrap(errs.Canceled, "run canceled before "+check.Name, err)
		}
		result, err := r.runCheck(obs.WithCheck(ctx, check.Name), page, check)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	logger.Info("verification_passed", "checks", len(results))
	return results, nil
}

func (r *Runner) runCheck(ctx context.Context, page Page, check Check) (Result, error) {
	logger := obs.From(ctx).With("pkg", "verify")
	start := time.Now()
	target := urlutil.BuildAbsolute(r.opts.BaseURL, check.Path)
	result := Result{Check: check, URL: target}

	logger.Debug("navigate", "url", logutil.RedactURL(target))
	if err := page.Goto(target); err != nil {
		r.logFailure(ctx, page, "navigation_failed", err)
		return result, errs.Wrap(errs.NavigationFailed, fmt.Sprintf("%s: navigate to %s", check.Name, logutil.RedactURL(target)), err)
	}

	if err := page.ExpectHeading(check.Heading); err != nil {
		r.logFailure(ctx, page, "assertion_failed", err)
		return result, errs.Wrap(errs.AssertionFailed, fmt.Sprintf("%s: heading %q not visible", check.Name, check.Heading), err)
	}

	if check.ExpectPath != "" {
		// ExpectPath is relative to the base URL, which may carry a path prefix.
		want := urlutil.PathOf(urlutil.BuildAbsolute(r.opts.BaseURL, check.ExpectPath))
		finalURL := page.URL()
		if got := urlutil.PathOf(finalURL); got != want {
			err := fmt.Errorf("ended on %s, want path %s", logutil.RedactURL(finalURL), want)
			r.logFailure(ctx, page, "assertion_failed", err)
			return result, errs.Wrap(errs.AssertionFailed, check.Name+": unexpected final URL", err)
		}
	}

	if check.Screenshot != "" {
		path := filepath.Join(r.opts.ScreenshotDir, check.Screenshot)
		png, err := page.Screenshot(path)
		if err != nil {
			return result, errs.Wrap(errs.Internal, check.Name+": screenshot "+path, err)
		}
		result.ScreenshotPath = path

		if r.opts.Sink != nil {
			location, err := r.opts.Sink.Publish(ctx, check.Screenshot, png)
			if err != nil {
				return result, errs.Wrap(errs.ArtifactFailed, check.Name+": publish "+check.Screenshot, err)
			}
			result.ArtifactURL = location
		}
	}

	result.Duration = time.Since(start)
	logger.Info("check_passed",
		"url", logutil.RedactURL(page.URL()),
		"heading", check.Heading,
		"screenshot", result.ScreenshotPath,
		"artifact", result.ArtifactURL,
		"dur_ms", float64(result.Duration.Microseconds())/1000.0,
	)
	if check.Message != "" {
		fmt.Fprintln(r.opts.Out, check.Message)
	}
	return result, nil
}

func (r *Runner) logFailure(ctx context.Context, page Page, event string, cause error) {
	snap := page.Snapshot()
	obs.From(ctx).With("pkg", "verify").Error(event,
		"error", cause,
		"current_url", logutil.RedactURL(snap.URL),
		"title", snap.Title,
		"content_preview", logutil.TextPreview(snap.HTML, snapshotPreviewChars),
	)
}
