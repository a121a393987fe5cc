// Package i18n serves the user-facing messages from embedded JSON packs.
// Chinese is the default language; lookups fall back to it, then to the key.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed zh/*.json en/*.json
var fs embed.FS

const (
	LangZH = "zh"
	LangEN = "en"

	Default = LangZH
)

// Message keys
const (
	Unauthorized  = "error.unauthorized"
	RequestFailed = "error.request_failed"
	AuthRequired  = "auth.required"
	AuthBadScheme = "auth.bad_scheme"
	AuthBadEncode = "auth.bad_encoding"
	AuthBadFormat = "auth.bad_format"
	AuthBadCreds  = "auth.bad_credentials"
	LoginRequired = "cli.login_required"
	AlreadyLogged = "cli.already_logged_in"
	LoggedIn      = "cli.logged_in"
	LoggedOut     = "cli.logged_out"
)

var (
	once    sync.Once
	packs   map[string]map[string]string
	loadErr error
)

func load() {
	packs = make(map[string]map[string]string)
	for _, lang := range []string{LangZH, LangEN} {
		data, err := fs.ReadFile(lang + "/messages.json")
		if err != nil {
			loadErr = fmt.Errorf("read %s messages: %w", lang, err)
			continue
		}
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			loadErr = fmt.Errorf("parse %s messages: %w", lang, err)
			continue
		}
		packs[lang] = m
	}
}

// Load parses the embedded packs. T calls it lazily; calling it up front
// surfaces a broken pack at start-up.
func Load() error {
	once.Do(load)
	return loadErr
}

// T returns the message for key in lang.
func T(lang, key string) string {
	once.Do(load)

	if m, ok := packs[Normalize(lang)]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := packs[Default][key]; ok {
		return s
	}
	return key
}

// Normalize maps a language tag or Accept-Language value ("en-US,en;q=0.9")
// to a supported language, defaulting to Chinese.
func Normalize(lang string) string {
	for _, part := range strings.Split(lang, ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		base, _, _ := strings.Cut(strings.ToLower(tag), "-")
		base, _, _ = strings.Cut(base, "_")
		switch base {
		case LangZH, LangEN:
			return base
		}
	}
	return Default
}
