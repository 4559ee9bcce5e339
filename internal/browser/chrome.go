package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeOptions configures a Chrome launcher.
type ChromeOptions struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	// Timeout bounds each individual browser operation.
	Timeout time.Duration
}

// Chrome launches Chrome/Chromium through the DevTools protocol.
type Chrome struct {
	opts ChromeOptions
}

// NewChrome creates a Chrome launcher.
func NewChrome(opts ChromeOptions) *Chrome {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Chrome{opts: opts}
}

// Launch starts a browser process and opens one tab.
func (c *Chrome) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
	)
	if c.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ExecPath))
	}
	if c.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(c.opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// The first Run starts the browser. It must use the tab context itself:
	// cancelling a derived context here would also kill the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &chromeSession{
		ctx:     tabCtx,
		timeout: c.opts.Timeout,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}, nil
}

type chromeSession struct {
	ctx     context.Context
	timeout time.Duration
	cancel  func()
}

func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(opCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) WaitReady(ctx context.Context) error {
	return s.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (s *chromeSession) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return s.run(ctx, chromedp.Sleep(d))
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page html: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}
