// Command verify-migration checks that a migrated WealthLog deployment still
// renders its key pages. It drives headless Chromium through the login page,
// the unauthenticated dashboard (which must bounce back to login) and the
// public landing page, saving screenshots for manual review.
//
// Usage:
//
//	go run ./cmd/verify-migration
//	go run ./cmd/verify-migration -base-url http://localhost:3000 -out jules-scratch/verification
//
// The process exits 0 when every check passes, 1 when a check fails, 2 on
// configuration errors and 130 when interrupted between checks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kuitang/wealthlog-verify/internal/artifacts"
	"github.com/kuitang/wealthlog-verify/internal/browser"
	"github.com/kuitang/wealthlog-verify/internal/config"
	"github.com/kuitang/wealthlog-verify/internal/errs"
	"github.com/kuitang/wealthlog-verify/internal/obs"
	"github.com/kuitang/wealthlog-verify/internal/verify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "verification failed: %v\n", err)
	}
	os.Exit(errs.ExitCode(err))
}

// launchBrowser is replaced in tests.
var launchBrowser = func(opts browser.Options) (verify.Browser, error) {
	return browser.Launch(opts)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("verify-migration", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags, err := config.ParseFlags(fs, args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "parse flags", err)
	}

	cfg, err := config.LoadConfig(flags)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "load configuration", err)
	}

	obs.Init()
	obs.SetLevel(cfg.LogLevel)
	cfg.PrintStartupSummary(stderr)

	ctx = obs.WithRunID(ctx, obs.NewRunID())
	logger := obs.From(ctx).With("pkg", "main")

	var sink verify.ArtifactSink
	if cfg.PublishArtifacts() {
		store, err := artifacts.New(ctx, artifacts.Config{
			Endpoint:        cfg.AWSEndpointS3,
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			BucketName:      cfg.ArtifactBucket,
			Prefix:          cfg.ArtifactPrefix,
			RunID:           obs.RunIDFromContext(ctx),
			UsePathStyle:    cfg.AWSEndpointS3 != "",
		})
		if err != nil {
			return errs.Wrap(errs.ArtifactFailed, "configure artifact store", err)
		}
		sink = store
	}

	session, err := launchBrowser(browser.Options{
		Headless:         !cfg.Headed,
		ExecutablePath:   cfg.ExecutablePath,
		InstallBrowsers:  cfg.InstallBrowsers,
		AssertionTimeout: cfg.AssertionTimeout,
		NavTimeout:       cfg.NavTimeout,
	})
	if err != nil {
		return errs.Wrap(errs.Unavailable, "start browser (run with -install to fetch Chromium)", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("browser_close_failed", "error", cerr)
		}
	}()

	runner := verify.NewRunner(session, verify.Options{
		BaseURL:       cfg.BaseURL,
		ScreenshotDir: cfg.ScreenshotDir,
		Out:           stdout,
		Sink:          sink,
	})
	results, err := runner.Run(ctx)
	if err != nil {
		logger.Error("verification_failed", "error", err, "passed", len(results), "code", errs.CodeOf(err))
		return err
	}
	return nil
}
