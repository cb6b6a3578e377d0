package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/wealthlog-verify/internal/browser"
	"github.com/kuitang/wealthlog-verify/internal/errs"
	"github.com/kuitang/wealthlog-verify/internal/obs"
	"github.com/kuitang/wealthlog-verify/internal/verify"
)

// stubBrowser passes every heading check and lands on /login for /dashboard.
type stubBrowser struct {
	launched browser.Options
	closes   int
	failOn   string
}

func (b *stubBrowser) NewPage() (verify.Page, error) { return &stubPage{failOn: b.failOn}, nil }

func (b *stubBrowser) Close() error {
	b.closes++
	return nil
}

type stubPage struct {
	url    string
	failOn string
}

func (p *stubPage) Goto(url string) error {
	p.url = strings.Replace(url, "/dashboard", "/login", 1)
	return nil
}

func (p *stubPage) ExpectHeading(name string) error {
	if name == p.failOn {
		return errors.New("locator expected to be visible")
	}
	return nil
}

func (p *stubPage) Screenshot(path string) ([]byte, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	png := []byte("\x89PNG")
	return png, os.WriteFile(path, png, 0o644)
}

func (p *stubPage) URL() string               { return p.url }
func (p *stubPage) Snapshot() verify.Snapshot { return verify.Snapshot{URL: p.url} }
func (p *stubPage) Close() error              { return nil }

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VERIFY_BASE_URL", "VERIFY_SCREENSHOT_DIR", "VERIFY_TIMEOUT", "VERIFY_NAV_TIMEOUT",
		"VERIFY_HEADED", "VERIFY_INSTALL_BROWSERS", "VERIFY_ARTIFACT_BUCKET", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func withStubBrowser(t *testing.T, stub *stubBrowser, launchErr error) {
	t.Helper()
	prev := launchBrowser
	launchBrowser = func(opts browser.Options) (verify.Browser, error) {
		stub.launched = opts
		if launchErr != nil {
			return nil, launchErr
		}
		return stub, nil
	}
	t.Cleanup(func() { launchBrowser = prev })

	var logs bytes.Buffer
	t.Cleanup(obs.SetOutputForTests(&logs))
}

func TestRun_AllChecksPass(t *testing.T) {
	clearEnv(t)
	stub := &stubBrowser{}
	withStubBrowser(t, stub, nil)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-out", out, "-timeout", "2s"}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Equal(t,
		"Screenshot of login page taken.\n"+
			"Redirected to login page from dashboard as expected.\n"+
			"Screenshot of dashboard page taken.\n",
		stdout.String())
	assert.FileExists(t, filepath.Join(out, "login-page.png"))
	assert.FileExists(t, filepath.Join(out, "dashboard-page.png"))
	assert.Equal(t, 1, stub.closes, "browser closed exactly once")
	assert.True(t, stub.launched.Headless)
	assert.Contains(t, stderr.String(), "http://localhost:3000")
}

func TestRun_FailedCheckClosesBrowserAndExitsOne(t *testing.T) {
	clearEnv(t)
	stub := &stubBrowser{failOn: "Dashboard"}
	withStubBrowser(t, stub, nil)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-out", t.TempDir()}, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, errs.AssertionFailed, errs.CodeOf(err))
	assert.Equal(t, 1, errs.ExitCode(err))
	assert.Equal(t, 1, stub.closes)
	assert.NotContains(t, stdout.String(), "Screenshot of dashboard page taken.")
}

func TestRun_BadConfigExitsTwo(t *testing.T) {
	clearEnv(t)
	stub := &stubBrowser{}
	withStubBrowser(t, stub, nil)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-base-url", "localhost:3000"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, 2, errs.ExitCode(err))
	assert.Zero(t, stub.closes, "browser must not start on bad config")
}

func TestRun_BrowserUnavailable(t *testing.T) {
	clearEnv(t)
	withStubBrowser(t, &stubBrowser{}, errors.New("please install the driver"))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-headed", "-install"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, errs.Unavailable, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "-install")
}

func TestRun_HelpIsNotAnError(t *testing.T) {
	clearEnv(t)
	withStubBrowser(t, &stubBrowser{}, nil)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-h"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "-base-url")
}
