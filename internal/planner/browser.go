package planner

import (
	"context"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodBrowserProbe is the production BrowserProbe: it launches a headless
// chromium via go-rod, navigates to url, counts console errors emitted
// during load, and reports whether the rendered page is effectively blank.
type RodBrowserProbe struct {
	Bin     string // optional explicit chromium binary path
	Timeout time.Duration
}

// NewRodBrowserProbe constructs a probe with a default 20s navigation
// budget when timeout is left zero.
func NewRodBrowserProbe(bin string, timeout time.Duration) *RodBrowserProbe {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &RodBrowserProbe{Bin: bin, Timeout: timeout}
}

var tagStripper = regexp.MustCompile(`(?s)<[^>]*>`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// isBlankPage applies a lightweight heuristic rather than a full HTML
// parse: strip tags, collapse whitespace, and treat anything under a
// handful of visible characters as blank.
func isBlankPage(html string) bool {
	stripped := tagStripper.ReplaceAllString(html, "")
	stripped = whitespaceRun.ReplaceAllString(stripped, "")
	return len(stripped) < 20
}

// SmokeCheck implements BrowserProbe.
func (p *RodBrowserProbe) SmokeCheck(ctx context.Context, url string) (BrowserSmokeResult, error) {
	l := launcher.New().Headless(true)
	if p.Bin != "" {
		l = l.Bin(p.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return BrowserSmokeResult{}, err
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return BrowserSmokeResult{}, err
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return BrowserSmokeResult{}, err
	}

	var consoleErrors int64
	waitConsole := page.Context(ctx).EachEvent(func(ev *proto.RuntimeConsoleAPICalled) {
		if ev.Type == proto.RuntimeConsoleAPICalledTypeError {
			atomic.AddInt64(&consoleErrors, 1)
		}
	})
	go waitConsole()

	timeout := p.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	if err := page.Context(ctx).Timeout(timeout).Navigate(url); err != nil {
		return BrowserSmokeResult{}, err
	}
	_ = page.Context(ctx).Timeout(timeout).WaitLoad()

	html, err := page.HTML()
	if err != nil {
		return BrowserSmokeResult{}, err
	}

	return BrowserSmokeResult{
		Blank:         isBlankPage(html),
		ConsoleErrors: int(atomic.LoadInt64(&consoleErrors)),
	}, nil
}
