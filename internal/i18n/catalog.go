// Package i18n holds the bot's message catalogs and picks a locale for a
// user from the configured supported set.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"

	"birthdaybot/internal/domain"
)

//go:embed locales/*.yaml
var embedded embed.FS

// Message keys.
const (
	KeyOnTheDay       = "reminder.on_the_day"
	KeyOneDayAhead    = "reminder.one_day_ahead"
	KeyStart          = "start"
	KeyHelp           = "help"
	KeyLangCurrent    = "language.current"
	KeyLangSet        = "language.set"
	KeyLangUnknown    = "language.unsupported"
	KeyAddUsage       = "add.usage"
	KeyAddBadDate     = "add.bad_date"
	KeyAddDuplicate   = "add.duplicate"
	KeyAddDone        = "add.done"
	KeyListEmpty      = "list.empty"
	KeyListHeader     = "list.header"
	KeyListItem       = "list.item"
	KeyListItemToday  = "list.item_today"
	KeyDeleteUsage    = "delete.usage"
	KeyDeleteNotFound = "delete.not_found"
	KeyDeleteDone     = "delete.done"
	KeyStats          = "stats"
	KeyErrGeneric     = "error.generic"
	KeyErrNoUser      = "error.not_registered"
	KeyErrForbidden   = "error.forbidden"
	KeyErrUnknownCmd  = "error.unknown_command"
	KeyErrBusy        = "error.busy"

	// MenuPrefix + command name is the menu description of that command.
	MenuPrefix = "menu."
)

// Catalog is immutable after Load and safe for concurrent use.
type Catalog struct {
	def       string
	supported []string
	matcher   language.Matcher
	msgs      map[string]map[string]string
}

// Load reads the embedded catalogs for supported locales. def must be one of
// them; it is the fallback for unknown locales and missing keys.
func Load(def string, supported []string) (*Catalog, error) {
	return LoadFS(embedded, "locales", def, supported)
}

func LoadFS(fsys fs.FS, dir, def string, supported []string) (*Catalog, error) {
	def = strings.TrimSpace(def)
	if def == "" {
		return nil, fmt.Errorf("i18n: default locale is empty")
	}
	codes := []string{def}
	for _, s := range supported {
		s = strings.TrimSpace(s)
		if s != "" && s != def && !contains(codes, s) {
			codes = append(codes, s)
		}
	}

	c := &Catalog{def: def, msgs: make(map[string]map[string]string, len(codes))}
	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("i18n: locale %q: %w", code, err)
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, code+".yaml"))
		if err != nil {
			return nil, fmt.Errorf("i18n: locale %q: %w", code, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("i18n: locale %q: %w", code, err)
		}
		flat := map[string]string{}
		flatten("", tree, flat)
		c.msgs[code] = flat
		tags = append(tags, tag)
	}
	for _, code := range codes[1:] {
		for k := range c.msgs[def] {
			if _, ok := c.msgs[code][k]; !ok {
				return nil, fmt.Errorf("i18n: locale %q lacks key %q", code, k)
			}
		}
	}

	// The first tag is the matcher's fallback.
	c.matcher = language.NewMatcher(tags)
	c.supported = codes
	return c, nil
}

func flatten(prefix string, v any, out map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, sub := range t {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flatten(key, sub, out)
		}
	case string:
		out[prefix] = t
	case nil:
	default:
		out[prefix] = fmt.Sprint(t)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (c *Catalog) Default() string { return c.def }

// Supported returns the locale codes, default first.
func (c *Catalog) Supported() []string { return append([]string(nil), c.supported...) }

// IsSupported reports whether code names a loaded catalog exactly.
func (c *Catalog) IsSupported(code string) bool { return contains(c.supported, code) }

// Match maps any BCP 47 tag (a Telegram language_code, "en-US", "") to a
// supported code, falling back to the default.
func (c *Catalog) Match(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return c.def
	}
	if c.IsSupported(locale) {
		return locale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return c.def
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No || idx < 0 || idx >= len(c.supported) {
		return c.def
	}
	return c.supported[idx]
}

// T renders key for locale, replacing {name} placeholders from kv pairs.
func (c *Catalog) T(locale, key string, kv ...any) string {
	code := c.Match(locale)
	msg, ok := c.msgs[code][key]
	if !ok {
		if msg, ok = c.msgs[c.def][key]; !ok {
			return key
		}
	}
	if len(kv) < 2 {
		return msg
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+fmt.Sprint(kv[i])+"}", fmt.Sprint(kv[i+1]))
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// Reminder renders the notification text for a classified event.
func (c *Catalog) Reminder(locale string, cls domain.Classification, label string) string {
	key := KeyOneDayAhead
	if cls == domain.OnTheDay {
		key = KeyOnTheDay
	}
	return c.T(locale, key, "name", label)
}

// Keys lists the keys of the default catalog, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.msgs[c.def]))
	for k := range c.msgs[c.def] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
