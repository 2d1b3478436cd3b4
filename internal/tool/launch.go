package tool

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ProxyConfig routes browser traffic through a proxy server
type ProxyConfig struct {
	Server   string
	Username string
	Password string
}

// BrowserConfig is shared by the browser-backed tools. It is fixed when the
// tool is constructed.
type BrowserConfig struct {
	Headless  bool
	Proxy     ProxyConfig
	UserAgent string
	// Bin overrides browser discovery
	Bin string
}

// DefaultBrowserConfig returns a headless configuration without proxy
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{Headless: true, UserAgent: defaultUserAgent}
}

type browserSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// launchBrowser starts a browser process and connects to it
func launchBrowser(ctx context.Context, cfg BrowserConfig) (*browserSession, error) {
	bin := cfg.Bin
	if bin == "" {
		bin, _ = launcher.LookPath()
	}
	l := launcher.New().Context(ctx).Headless(cfg.Headless)
	if bin != "" {
		l = l.Bin(bin)
	}
	if cfg.Proxy.Server != "" {
		l = l.Proxy(cfg.Proxy.Server)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	if cfg.Proxy.Server != "" && cfg.Proxy.Username != "" {
		go func() {
			// each handler answers one challenge; stops once the browser closes
			for {
				if err := browser.HandleAuth(cfg.Proxy.Username, cfg.Proxy.Password)(); err != nil {
					return
				}
			}
		}()
	}

	return &browserSession{launcher: l, browser: browser}, nil
}

// newPage opens a blank page with the configured user agent
func (s *browserSession) newPage(cfg BrowserConfig) (*rod.Page, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		page.Close()
		return nil, err
	}
	return page, nil
}

func (s *browserSession) Close() {
	if s.browser != nil {
		s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
}
