// Package evasion describes how a browser session should present itself to
// the target page: request headers, navigator overrides, viewport and the
// order in which browser launch variants are attempted.
package evasion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LaunchMode is one way of starting the browser.
type LaunchMode string

const (
	// LaunchHeadlessNew uses Chrome's "new" headless mode (--headless=new),
	// which shares the regular browser's code path and fingerprint.
	LaunchHeadlessNew LaunchMode = "headless-new"

	// LaunchWindowed starts a regular windowed browser. Needs a display.
	LaunchWindowed LaunchMode = "windowed"

	// LaunchHeadlessLegacy uses the old headless shell.
	LaunchHeadlessLegacy LaunchMode = "headless-legacy"
)

// Valid reports whether m is a known launch mode.
func (m LaunchMode) Valid() bool {
	switch m {
	case LaunchHeadlessNew, LaunchWindowed, LaunchHeadlessLegacy:
		return true
	}
	return false
}

// Viewport is the emulated window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// Navigator holds the navigator.* values reported to page scripts.
type Navigator struct {
	// Webdriver is the value of navigator.webdriver. Must stay false.
	Webdriver bool
	Languages []string
	// Plugins are the names reported by navigator.plugins. Headless Chrome
	// reports none, which is a well known automation tell.
	Plugins  []string
	Platform string
}

// Profile is applied to a session before the first navigation.
type Profile struct {
	UserAgent      string
	AcceptLanguage string
	Viewport       Viewport
	Navigator      Navigator

	// LaunchModes is tried in order; the first variant that starts wins.
	LaunchModes []LaunchMode

	// Stealth additionally installs the go-rod/stealth evasion bundle.
	Stealth bool

	// ExtraHeaders are sent with every request the page makes.
	ExtraHeaders map[string]string
}

// Default returns the profile used when nothing is overridden: a desktop
// Chrome on Linux with a French/English locale, matching the audience of
// the target page.
func Default() Profile {
	return Profile{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		AcceptLanguage: "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
		Viewport:       Viewport{Width: 1366, Height: 900},
		Navigator: Navigator{
			Webdriver: false,
			Languages: []string{"fr-FR", "fr", "en-US", "en"},
			Plugins:   []string{"PDF Viewer", "Chrome PDF Viewer", "Chromium PDF Viewer"},
			Platform:  "Linux x86_64",
		},
		LaunchModes: []LaunchMode{LaunchHeadlessNew, LaunchWindowed, LaunchHeadlessLegacy},
		Stealth:     true,
	}
}

// Validate checks the invariants the session driver relies on.
func (p Profile) Validate() error {
	if len(p.LaunchModes) == 0 {
		return fmt.Errorf("evasion: at least one launch mode is required")
	}
	for _, m := range p.LaunchModes {
		if !m.Valid() {
			return fmt.Errorf("evasion: unknown launch mode %q", m)
		}
	}
	if p.Navigator.Webdriver {
		return fmt.Errorf("evasion: navigator.webdriver must be false")
	}
	if len(p.Navigator.Plugins) == 0 {
		return fmt.Errorf("evasion: navigator.plugins must not be empty")
	}
	if p.Viewport.Width <= 0 || p.Viewport.Height <= 0 {
		return fmt.Errorf("evasion: invalid viewport %dx%d", p.Viewport.Width, p.Viewport.Height)
	}
	return nil
}

// ParseLaunchModes parses a comma separated list such as
// "headless-new,headless-legacy".
func ParseLaunchModes(s string) ([]LaunchMode, error) {
	var modes []LaunchMode
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := LaunchMode(part)
		if !m.Valid() {
			return nil, fmt.Errorf("evasion: unknown launch mode %q", part)
		}
		modes = append(modes, m)
	}
	if len(modes) == 0 {
		return nil, fmt.Errorf("evasion: no launch modes in %q", s)
	}
	return modes, nil
}

// navigatorTemplate is evaluated on every new document, before any page
// script. %s is a JSON object with the override values.
const navigatorTemplate = `(() => {
	const o = %s;
	const define = (obj, prop, value) => {
		try {
			Object.defineProperty(obj, prop, { get: () => value, configurable: true });
		} catch (e) {}
	};
	define(Navigator.prototype, 'webdriver', o.webdriver);
	define(Navigator.prototype, 'languages', Object.freeze(o.languages.slice()));
	define(Navigator.prototype, 'language', o.languages[0]);
	define(Navigator.prototype, 'platform', o.platform);
	const plugins = o.plugins.map((name) => ({ name, filename: 'internal-pdf-viewer', description: 'Portable Document Format', length: 1 }));
	plugins.item = (i) => plugins[i] || null;
	plugins.namedItem = (n) => plugins.find((p) => p.name === n) || null;
	plugins.refresh = () => {};
	define(Navigator.prototype, 'plugins', plugins);
})();`

// NavigatorScript renders the script that installs the navigator overrides.
func (p Profile) NavigatorScript() string {
	langs := p.Navigator.Languages
	if len(langs) == 0 {
		langs = []string{"en-US"}
	}
	overrides := struct {
		Webdriver bool     `json:"webdriver"`
		Languages []string `json:"languages"`
		Plugins   []string `json:"plugins"`
		Platform  string   `json:"platform"`
	}{
		Webdriver: p.Navigator.Webdriver,
		Languages: langs,
		Plugins:   p.Navigator.Plugins,
		Platform:  p.Navigator.Platform,
	}
	// Marshalling plain strings and bools cannot fail.
	b, _ := json.Marshal(overrides)
	return fmt.Sprintf(navigatorTemplate, b)
}

// Headers returns the extra request headers, with Accept-Language taken
// from the profile unless explicitly overridden.
func (p Profile) Headers() map[string]string {
	h := make(map[string]string, len(p.ExtraHeaders)+1)
	if p.AcceptLanguage != "" {
		h["Accept-Language"] = p.AcceptLanguage
	}
	for k, v := range p.ExtraHeaders {
		h[k] = v
	}
	return h
}
