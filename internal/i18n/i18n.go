// Package i18n holds the translation bundle. A Bundle is built once at
// startup and passed to whatever needs it.
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/qri-io/jsonschema"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const schemaFile = "schema.json"

// Bundle maps language -> dotted key -> text.
type Bundle struct {
	def     string
	langs   []string
	texts   map[string]map[string]string
	labels  map[string]map[string]bool // key -> labels in every language
	matcher language.Matcher
}

// Load reads every <lang>.yaml in fsys. When fsys contains schema.json each
// file is validated against it. def must be one of the loaded languages.
func Load(ctx context.Context, fsys fs.FS, def string) (*Bundle, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	var schema *jsonschema.Schema
	if b, err := fs.ReadFile(fsys, schemaFile); err == nil {
		schema = &jsonschema.Schema{}
		if err := json.Unmarshal(b, schema); err != nil {
			return nil, fmt.Errorf("compile locale schema: %w", err)
		}
	}

	b := &Bundle{
		def:    def,
		texts:  make(map[string]map[string]string),
		labels: make(map[string]map[string]bool),
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".yaml" {
			continue
		}
		lang := strings.TrimSuffix(name, ".yaml")
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if schema != nil {
			if err := validateTree(ctx, schema, tree); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
		flat := make(map[string]string)
		flatten("", tree, flat)
		b.texts[lang] = flat
		b.langs = append(b.langs, lang)
	}
	if _, ok := b.texts[def]; !ok {
		return nil, fmt.Errorf("default language %q not loaded", def)
	}
	sort.Strings(b.langs)

	// reverse index for buttons typed or tapped in any language
	for _, flat := range b.texts {
		for k, v := range flat {
			if !isLabelKey(k) {
				continue
			}
			if b.labels[k] == nil {
				b.labels[k] = make(map[string]bool)
			}
			b.labels[k][v] = true
		}
	}

	tags := []language.Tag{language.Make(def)}
	for _, l := range b.langs {
		if l != def {
			tags = append(tags, language.Make(l))
		}
	}
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

func validateTree(ctx context.Context, schema *jsonschema.Schema, tree map[string]any) error {
	j, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode for validation: %w", err)
	}
	verrs, err := schema.ValidateBytes(ctx, j)
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for _, v := range verrs {
			sb.WriteString(v.PropertyPath)
			sb.WriteString(": ")
			sb.WriteString(v.Message)
			sb.WriteString("; ")
		}
		return fmt.Errorf("locale does not match schema: %s", sb.String())
	}
	return nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch x := v.(type) {
		case map[string]any:
			flatten(key, x, out)
		case string:
			out[key] = x
		default:
			out[key] = fmt.Sprint(x)
		}
	}
}

func isLabelKey(k string) bool {
	return strings.HasPrefix(k, "buttons.") || strings.HasPrefix(k, "levels.") || strings.HasPrefix(k, "proficiency.")
}

// Default returns the fallback language.
func (b *Bundle) Default() string { return b.def }

// Languages returns the loaded language codes, sorted.
func (b *Bundle) Languages() []string { return append([]string(nil), b.langs...) }

// Supports reports whether lang has a bundle.
func (b *Bundle) Supports(lang string) bool {
	_, ok := b.texts[lang]
	return ok
}

// Resolve maps a client language code such as "ru-RU" onto a loaded
// language, falling back to the default.
func (b *Bundle) Resolve(code string) string {
	if code == "" {
		return b.def
	}
	if b.Supports(code) {
		return code
	}
	tag, _, conf := b.matcher.Match(language.Make(code))
	if conf == language.No {
		return b.def
	}
	base, _ := tag.Base()
	if b.Supports(base.String()) {
		return base.String()
	}
	return b.def
}

// T returns the text for key in lang, with {name} placeholders replaced from
// the kv pairs. Missing keys fall back to the default language and then to
// the key itself.
func (b *Bundle) T(lang, key string, kv ...string) string {
	s, ok := b.texts[lang][key]
	if !ok {
		s, ok = b.texts[b.def][key]
	}
	if !ok {
		return key
	}
	if len(kv) < 2 {
		return s
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Button returns the label for buttons.<key>.
func (b *Bundle) Button(lang, key string) string {
	return b.T(lang, "buttons."+key)
}

// Is reports whether text is the label of key in any language.
func (b *Bundle) Is(text, key string) bool {
	return b.labels[key][strings.TrimSpace(text)]
}

// Match returns the first of keys whose label equals text in any language.
func (b *Bundle) Match(text string, keys ...string) (string, bool) {
	t := strings.TrimSpace(text)
	for _, k := range keys {
		if b.labels[k][t] {
			return k, true
		}
	}
	return "", false
}

// Missing lists keys present in the default language but absent in lang.
func (b *Bundle) Missing(lang string) []string {
	var out []string
	for k := range b.texts[b.def] {
		if _, ok := b.texts[lang][k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// MatchButton returns the buttons.* key whose label in any language equals
// label.
func (b *Bundle) MatchButton(label string) (string, bool) {
	t := strings.TrimSpace(label)
	keys := make([]string, 0, len(b.labels))
	for k := range b.labels {
		if strings.HasPrefix(k, "buttons.") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if b.labels[k][t] {
			return k, true
		}
	}
	return "", false
}
