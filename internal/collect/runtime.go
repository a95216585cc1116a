package collect

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// Session is one browser page. Navigate and Evaluate honor ctx; Close tears
// the page down and must be safe to call after a failed step.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, js string, out any) error
	Close()
}

// Runtime creates browser sessions. The production runtime is a headless
// Chrome allocator; tests substitute a fake.
type Runtime interface {
	NewSession(ctx context.Context) (Session, error)
}

// ChromeRuntime allocates headless Chrome pages via chromedp. One allocator
// is shared by all sessions; each session is an isolated tab.
type ChromeRuntime struct {
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewChromeRuntime starts a Chrome exec allocator. Close releases the browser
// processes.
func NewChromeRuntime(ctx context.Context) *ChromeRuntime {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	return &ChromeRuntime{allocCtx: allocCtx, cancel: cancel}
}

func (r *ChromeRuntime) NewSession(ctx context.Context) (Session, error) {
	tabCtx, cancel := chromedp.NewContext(r.allocCtx)
	// Spin the browser up eagerly so allocation failures surface here rather
	// than on the first Navigate.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("collect: start browser tab: %w", err)
	}
	return &chromeSession{ctx: tabCtx, cancel: cancel}, nil
}

func (r *ChromeRuntime) Close() {
	r.cancel()
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := mergeDeadline(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *chromeSession) Evaluate(ctx context.Context, js string, out any) error {
	runCtx, cancel := mergeDeadline(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Evaluate(js, out))
}

func (s *chromeSession) Close() {
	s.cancel()
}

// mergeDeadline bounds the tab context by the caller's deadline and
// cancellation without detaching from the tab's own lifetime.
func mergeDeadline(tab, call context.Context) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if dl, ok := call.Deadline(); ok {
		ctx, cancel = context.WithDeadline(tab, dl)
	} else {
		ctx, cancel = context.WithCancel(tab)
	}
	stop := context.AfterFunc(call, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
