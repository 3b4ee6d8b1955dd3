package browser

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Options configures a browser session.
type Options struct {
	Headless    bool
	ProfilePath string
}

// Session owns one launched browser and its single driven page.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// sessionState is the opaque-on-disk shape of a saved session.
type sessionState struct {
	SavedAt time.Time              `json:"saved_at"`
	Cookies []*proto.NetworkCookie `json:"cookies"`
}

// Open launches a browser and creates a stealth page. A non-nil state blob
// restores previously saved cookies before the first navigation.
func Open(opts Options, state []byte) (*Session, error) {
	// Leakless mode deadlocks on Windows, see go-rod/rod#853.
	useLeakless := runtime.GOOS != "windows"

	l := launcher.New().
		Leakless(useLeakless).
		Headless(opts.Headless)

	if opts.ProfilePath != "" {
		l = l.UserDataDir(opts.ProfilePath)
	}

	if chromePath, exists := launcher.LookPath(); exists {
		l = l.Bin(chromePath)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	if len(state) > 0 {
		if err := restoreCookies(browser, state); err != nil {
			browser.Close()
			l.Cleanup()
			return nil, err
		}
	}

	page, err := stealth.Page(browser)
	if err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}

	return &Session{launcher: l, browser: browser, page: page}, nil
}

func restoreCookies(browser *rod.Browser, state []byte) error {
	var st sessionState
	if err := json.Unmarshal(state, &st); err != nil {
		return fmt.Errorf("failed to parse session state: %w", err)
	}
	params := make([]*proto.NetworkCookieParam, 0, len(st.Cookies))
	for _, c := range st.Cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
			Expires:  c.Expires,
		})
	}
	if err := browser.SetCookies(params); err != nil {
		return fmt.Errorf("failed to restore cookies: %w", err)
	}
	return nil
}

// Page returns the session's driven page.
func (s *Session) Page() *RodPage {
	return NewRodPage(s.page)
}

// Export serializes the session's cookies into an opaque state blob.
func (s *Session) Export() ([]byte, error) {
	cookies, err := s.browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies: %w", err)
	}
	return json.Marshal(sessionState{SavedAt: time.Now(), Cookies: cookies})
}

// Alive reports whether the browser still answers.
func (s *Session) Alive() bool {
	if s.browser == nil {
		return false
	}
	_, err := s.browser.Version()
	return err == nil
}

func (s *Session) Close() {
	if s.page != nil {
		s.page.Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
}
