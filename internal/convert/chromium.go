package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

type ChromiumConfig struct {
	ViewportWidth  int
	ViewportHeight int

	// Delay waits after load before the screenshot, for SVGs that animate
	// or load external resources.
	Delay time.Duration

	Headless bool
}

func DefaultChromiumConfig() ChromiumConfig {
	return ChromiumConfig{
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Headless:       true,
	}
}

// chromiumConverter rasterizes an SVG by loading it as a file:// URL in a
// headless Chromium and taking a PNG screenshot. Slower than inkscape but
// available wherever a browser is.
type chromiumConverter struct {
	config ChromiumConfig
}

func NewChromium(config ChromiumConfig) Converter {
	return &chromiumConverter{
		config: config,
	}
}

func (c *chromiumConverter) Convert(ctx context.Context, src string, dst string) error {
	p, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	defer p.Stop()

	browser, err := p.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(c.config.Headless),
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return fmt.Errorf("failed to create new page: %w", err)
	}
	defer page.Close()

	if err := page.SetViewportSize(c.config.ViewportWidth, c.config.ViewportHeight); err != nil {
		return fmt.Errorf("failed to set viewport size: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			page.Close()
		case <-done:
		}
	}()
	defer close(done)

	abs, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", src, err)
	}

	if _, err := page.Goto("file://"+abs, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return fmt.Errorf("failed to load %s: %w", src, err)
	}

	if c.config.Delay > 0 {
		select {
		case <-time.After(c.config.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(dst),
		Type:     playwright.ScreenshotTypePng,
		FullPage: playwright.Bool(true),
	}); err != nil {
		return fmt.Errorf("failed to take screenshot: %w", err)
	}

	return nil
}
