package channel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTelegramWebURL = "https://web.telegram.org"
	defaultWindowWidth    = 1920
	defaultWindowHeight   = 1080
	selectorAttempt       = 5 * time.Second
	setupTimeout          = 45 * time.Second
	actionTimeout         = 15 * time.Second
	loginPollInterval     = 2 * time.Second
)

// Telegram Web ships several frontends, so every lookup walks a list of
// selectors and uses the first one that matches.
var (
	webSearchSelectors = []string{
		"input[placeholder*='Search']",
		".search-input input",
		"#telegram-search-input",
		"input.form-control",
	}
	webInputSelectors = []string{
		".input-message-input",
		".composer-input-wrapper input",
		".message-input-text",
		"div[contenteditable='true']",
		"textarea.form-control",
	}
	webSendSelectors = []string{
		".btn-send",
		".send-button",
		"button[title*='Send']",
		".composer-send-button",
	}
	webMessageSelectors = []string{
		".message-content-wrapper .text-content",
		".message .text",
		".im_message_text",
		".message-text",
	}
	webChatListSelectors = []string{
		".chat-list",
		".ChatList",
	}
)

// TelegramWeb drives the bot through web.telegram.org in a Chrome session.
type TelegramWeb struct {
	cfg      *TelegramConfig
	webURL   string
	headless bool
	log      *logrus.Logger

	// chromedp contexts drive a single tab, so operations are serialized.
	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	navigated     bool
	chatOpen      bool
	lastSent      string
}

// NewTelegramWeb creates a new Telegram Web UI channel.
func NewTelegramWeb(cfg *TelegramConfig, webURL string, headless bool, log *logrus.Logger) *TelegramWeb {
	if webURL == "" {
		webURL = DefaultTelegramWebURL
	}

	return &TelegramWeb{
		cfg:      cfg,
		webURL:   webURL,
		headless: headless,
		log:      log,
	}
}

// Kind returns the kind of the channel.
func (t *TelegramWeb) Kind() Kind {
	return KindTelegramWeb
}

// Send types a message into the bot chat and submits it.
func (t *TelegramWeb) Send(ctx context.Context, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureChat(ctx); err != nil {
		return err
	}

	inputSel, err := t.firstWorking(ctx, webInputSelectors, func(sel string) []chromedp.Action {
		return []chromedp.Action{
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Click(sel, chromedp.ByQuery),
			chromedp.SendKeys(sel, text, chromedp.ByQuery),
		}
	})
	if err != nil {
		return fmt.Errorf("could not find message input: %w", err)
	}

	// Prefer the send button, fall back to the Enter key.
	if _, err := t.firstWorking(ctx, webSendSelectors, func(sel string) []chromedp.Action {
		return []chromedp.Action{chromedp.Click(sel, chromedp.ByQuery)}
	}); err != nil {
		if err := t.run(ctx, selectorAttempt, chromedp.SendKeys(inputSel, kb.Enter, chromedp.ByQuery)); err != nil {
			return fmt.Errorf("could not submit message: %w", err)
		}
	}

	t.lastSent = text

	return nil
}

// LatestReply returns the newest chat bubble that is not our own outgoing
// message. The DOM carries no usable timestamps, so freshness is left to
// the caller's polling.
func (t *TelegramWeb) LatestReply(ctx context.Context, _ time.Time) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureChat(ctx); err != nil {
		return "", err
	}

	for _, sel := range webMessageSelectors {
		var texts []string

		script := fmt.Sprintf(
			`Array.from(document.querySelectorAll(%q)).map(n => n.textContent.trim()).filter(t => t.length > 0)`,
			sel,
		)

		if err := t.run(ctx, selectorAttempt, chromedp.Evaluate(script, &texts)); err != nil {
			continue
		}

		if len(texts) == 0 {
			continue
		}

		// The last bubble may be the message we just sent.
		for i := len(texts) - 1; i >= 0; i-- {
			if texts[i] == t.lastSent {
				continue
			}

			return texts[i], nil
		}

		return "", nil
	}

	return "", nil
}

// Screenshot captures the current viewport to a PNG file.
func (t *TelegramWeb) Screenshot(ctx context.Context, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.browserCtx == nil {
		return fmt.Errorf("browser session not started")
	}

	var buf []byte
	if err := t.run(ctx, actionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}

	t.log.WithField("path", path).Info("Screenshot saved")

	return nil
}

// WaitForLogin blocks until Telegram Web shows a chat list, giving an
// interactive user time to scan the login QR code.
func (t *TelegramWeb) WaitForLogin(ctx context.Context, timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureBrowser(ctx); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)

	for {
		var loggedIn bool

		script := fmt.Sprintf(
			`document.querySelector(%q) !== null`,
			webChatListSelectors[0]+", "+webChatListSelectors[1],
		)

		if err := t.run(ctx, selectorAttempt, chromedp.Evaluate(script, &loggedIn)); err == nil && loggedIn {
			t.log.Info("Telegram Web login completed")

			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("login not completed within %s", timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(loginPollInterval):
		}
	}
}

// Close shuts down the browser session.
func (t *TelegramWeb) Close(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.teardown()

	return nil
}

// ensureBrowser starts Chrome and loads Telegram Web once.
func (t *TelegramWeb) ensureBrowser(ctx context.Context) error {
	if t.navigated {
		return nil
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), t.chromeOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	t.allocCancel = allocCancel
	t.browserCtx = browserCtx
	t.browserCancel = browserCancel

	if err := t.run(ctx, setupTimeout,
		chromedp.Navigate(t.webURL),
		chromedp.WaitReady("body"),
	); err != nil {
		t.teardown()

		return fmt.Errorf("failed to load %s: %w", t.webURL, err)
	}

	t.log.WithField("url", t.webURL).Info("Telegram Web loaded")
	t.navigated = true

	return nil
}

// ensureChat opens the chat with the configured bot once.
func (t *TelegramWeb) ensureChat(ctx context.Context) error {
	if t.chatOpen {
		return nil
	}

	if err := t.ensureBrowser(ctx); err != nil {
		return err
	}

	if _, err := t.firstWorking(ctx, webSearchSelectors, func(sel string) []chromedp.Action {
		return []chromedp.Action{
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Click(sel, chromedp.ByQuery),
			chromedp.SendKeys(sel, t.cfg.Username, chromedp.ByQuery),
		}
	}); err != nil {
		return fmt.Errorf("could not find search input: %w", err)
	}

	// Give the search results a moment to render.
	if err := t.run(ctx, actionTimeout, chromedp.Sleep(2*time.Second)); err != nil {
		return err
	}

	resultSelectors := []string{
		fmt.Sprintf("[title*='%s']", t.cfg.Username),
		fmt.Sprintf("a[href*='%s']", t.cfg.Username),
	}

	if _, err := t.firstWorking(ctx, resultSelectors, func(sel string) []chromedp.Action {
		return []chromedp.Action{
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Click(sel, chromedp.ByQuery),
		}
	}); err != nil {
		return fmt.Errorf("could not open chat with @%s: %w", t.cfg.Username, err)
	}

	t.log.WithField("bot", t.cfg.Username).Info("Opened bot chat in Telegram Web")
	t.chatOpen = true

	return nil
}

// firstWorking tries each selector in order and returns the first one
// whose actions all succeed.
func (t *TelegramWeb) firstWorking(ctx context.Context, selectors []string, build func(string) []chromedp.Action) (string, error) {
	var lastErr error

	for _, sel := range selectors {
		if err := t.run(ctx, selectorAttempt, build(sel)...); err != nil {
			lastErr = err

			continue
		}

		return sel, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no selectors provided")
	}

	return "", lastErr
}

// run executes chromedp actions against the browser context with a timeout,
// honoring the caller's cancellation.
func (t *TelegramWeb) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(t.browserCtx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return err
	}

	return nil
}

func (t *TelegramWeb) teardown() {
	if t.browserCancel != nil {
		t.browserCancel()
	}

	if t.allocCancel != nil {
		t.allocCancel()
	}

	t.browserCtx = nil
	t.browserCancel = nil
	t.allocCancel = nil
	t.navigated = false
	t.chatOpen = false
}

func (t *TelegramWeb) chromeOptions() []chromedp.ExecAllocatorOption {
	return append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("headless", t.headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		chromedp.WindowSize(defaultWindowWidth, defaultWindowHeight),
	)
}
