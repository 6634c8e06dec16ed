// Package locale hosts the localization worker: a stateful invoker that
// owns a table of locale files and answers translation lookups with
// locale inheritance.
package locale

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrMissingLocale is returned when a requested locale has no file
	// in the locale directory.
	ErrMissingLocale = errors.New("locale: missing locale")
)

// Op selects a localization operation.
type Op uint8

const (
	// OpClear drops all loaded locales.
	OpClear Op = iota + 1
	// OpList returns the loaded locale names.
	OpList
	// OpLocalize resolves a translation key.
	OpLocalize
	// OpLoad reloads the locale directory.
	OpLoad
)

// Request is a message for the localization worker.
type Request struct {
	Op       Op
	Locale   string // OpLocalize; empty means the default locale
	Category string // OpLocalize
	Key      string // OpLocalize
}

// Response is the localization worker's reply.
type Response struct {
	Loaded  int      // OpLoad: number of locales loaded
	Locales []string // OpList
	Text    string   // OpLocalize
	Missing bool     // OpLocalize: no translation found, Text is the raw key
	Err     error
}

// entry is one loaded locale file. The JSON document is kept raw and
// queried with gjson; the optional "inherit" member names the parent
// locale consulted when a key is absent.
type entry struct {
	inherit string
	raw     []byte
}

// table is the worker's state: the loaded locale files plus the
// settings needed to (re)load them.
type table struct {
	dir     string
	def     string
	locales map[string]entry
}

func newTable(dir, defaultLocale string) *table {
	return &table{
		dir:     dir,
		def:     defaultLocale,
		locales: make(map[string]entry),
	}
}

// handle processes one request against the table. It runs on the worker
// goroutine, so the table needs no locking.
func handle(t *table, req Request) Response {
	switch req.Op {
	case OpClear:
		t.locales = make(map[string]entry)
		return Response{}
	case OpList:
		names := make([]string, 0, len(t.locales))
		for name := range t.locales {
			names = append(names, name)
		}
		sort.Strings(names)
		return Response{Locales: names}
	case OpLocalize:
		text, missing := t.localize(req.Locale, req.Category, req.Key)
		return Response{Text: text, Missing: missing}
	case OpLoad:
		n, err := t.load()
		return Response{Loaded: n, Err: err}
	default:
		return Response{Err: fmt.Errorf("locale: unknown op %d", req.Op)}
	}
}

// load replaces the table's contents with the locale directory's
// <name>.json files.
func (t *table) load() (int, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: directory %s", ErrMissingLocale, t.dir)
		}
		return 0, fmt.Errorf("read locale directory: %w", err)
	}

	loaded := make(map[string]entry, len(entries))
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(de.Name(), ".json")
		raw, err := os.ReadFile(filepath.Join(t.dir, de.Name()))
		if err != nil {
			return 0, fmt.Errorf("read locale %s: %w", name, err)
		}
		if !gjson.ValidBytes(raw) {
			return 0, fmt.Errorf("locale %s: invalid JSON", name)
		}
		loaded[name] = entry{
			inherit: gjson.GetBytes(raw, "inherit").String(),
			raw:     raw,
		}
	}

	t.locales = loaded
	return len(loaded), nil
}

// localize resolves category.key starting at the requested locale and
// walking the inheritance chain, with the default locale as the final
// fallback. A miss yields the raw "category.key" text so callers always
// get something printable.
func (t *table) localize(locale, category, key string) (string, bool) {
	if locale == "" {
		locale = t.def
	}
	path := escapePath(category) + "." + escapePath(key)

	seen := make(map[string]bool)
	for name := locale; name != "" && !seen[name]; {
		seen[name] = true
		e, ok := t.locales[name]
		if !ok {
			break
		}
		if v := gjson.GetBytes(e.raw, path); v.Exists() {
			return v.String(), false
		}
		name = e.inherit
	}

	// Inheritance exhausted; try the default locale unless it was
	// already part of the chain.
	if !seen[t.def] {
		if e, ok := t.locales[t.def]; ok {
			if v := gjson.GetBytes(e.raw, path); v.Exists() {
				return v.String(), false
			}
		}
	}

	return category + "." + key, true
}

// escapePath escapes gjson path syntax so literal category and key
// names survive the lookup.
func escapePath(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '.', '*', '?', '\\', '|', '#', '@':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
