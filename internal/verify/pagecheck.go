// Package verify checks that link catalog targets still resolve to real
// pages. Target sites are client-rendered, so a plain HEAD request can return
// a 200 shell for a page that renders as a 404; headless Chrome sees what a
// visitor sees.
package verify

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ErrChromeMissing means no chromium binary is installed.
var ErrChromeMissing = fmt.Errorf("page verification requires chromium")

type Checker struct {
	baseURL string
	timeout time.Duration
}

func NewChecker(baseURL string, timeout time.Duration) *Checker {
	return &Checker{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// Available reports whether a chromium binary can be found.
func (c *Checker) Available() bool {
	if _, err := exec.LookPath("chromium-browser"); err == nil {
		return true
	}
	_, err := exec.LookPath("chromium")
	return err == nil
}

// PageExists loads target in headless Chrome and reports whether it resolves
// to a real page. Catalog URLs are usually site-relative; they are resolved
// against the configured site base URL.
func (c *Checker) PageExists(ctx context.Context, target string) (bool, error) {
	if !c.Available() {
		return false, ErrChromeMissing
	}

	absolute, err := c.resolve(target)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()
	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var response *network.Response
	response, err = chromedp.RunResponse(taskCtx,
		chromedp.Navigate(absolute),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", absolute, err)
	}

	var title string
	if err := chromedp.Run(taskCtx, chromedp.Title(&title)); err != nil {
		return false, fmt.Errorf("read title %s: %w", absolute, err)
	}

	if response != nil && response.Status >= 400 {
		return false, nil
	}
	return !LooksLikeNotFound(title), nil
}

func (c *Checker) resolve(target string) (string, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse target url: %w", err)
	}
	if parsed.IsAbs() {
		return target, nil
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return c.baseURL + target, nil
}

// LooksLikeNotFound flags soft-404 page titles that client-side routers
// produce behind a 200 response.
func LooksLikeNotFound(title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(lower, "404") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "page does not exist")
}
