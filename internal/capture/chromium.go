package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	appLog "guardboard/internal/log"
)

// Board page viewport. A month grid of six weeks fits without scrolling.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 960
	DefaultTimeout = 30 * time.Second

	readySelector = `[data-ready="true"]`
)

// BoardOptions defines one snapshot of the /board page.
type BoardOptions struct {
	// BaseURL of a running guardboard server, e.g. "http://127.0.0.1:8080".
	BaseURL string
	// Month is "YYYY-MM"; empty lets the server pick the current month.
	Month string

	// Username and Password are sent as basic auth when set.
	Username string
	Password string

	Width   int
	Height  int
	Timeout time.Duration

	// ExecPath overrides the Chromium binary chromedp looks up.
	ExecPath string
}

// BoardURL builds the page address for opts.
func BoardURL(opts BoardOptions) (string, error) {
	if opts.BaseURL == "" {
		return "", fmt.Errorf("capture: base URL is required")
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("capture: invalid base URL %q", opts.BaseURL)
	}
	u = u.JoinPath("board")
	if opts.Month != "" {
		q := u.Query()
		q.Set("month", opts.Month)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// CaptureBoardPNG opens the board page in headless Chromium, waits until the
// grid reports data-ready="true" and returns a full-page PNG.
func CaptureBoardPNG(parentCtx context.Context, opts BoardOptions) ([]byte, error) {
	target, err := BoardURL(opts)
	if err != nil {
		return nil, err
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{network.Enable()}
	if opts.Username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + cred}))
	}
	tasks = append(tasks,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(target),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	)

	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	appLog.Info("board captured", "month", opts.Month, "bytes", len(png), "elapsed", time.Since(start).Round(time.Millisecond))
	return png, nil
}

// WritePNG stores a capture at path, creating the parent directory.
func WritePNG(path string, png []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}
