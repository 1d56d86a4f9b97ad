package configs

import (
	"bytes"
	"fmt"
	"github.com/sardine-ai/go-installer-config/model"
	"gopkg.in/ini.v1"
	"strings"
)

var loadOptions = ini.LoadOptions{
	// Passwords and tokens routinely contain '#' and ';'.
	IgnoreInlineComment: true,
	// Windows paths end in '\'.
	IgnoreContinuation: true,
	// Quotes belong to the value, as for the Python services reading these files.
	PreserveSurroundedQuote: true,
}

const tripleQuote = `"""`

// Encode serializes doc as INI text. Sections and keys are emitted in sorted
// order so the same document always produces the same bytes. Documents that
// would not read back unchanged are rejected with ErrUnrepresentable.
func Encode(doc model.Document) ([]byte, error) {
	f := ini.Empty(loadOptions)
	for _, name := range doc.SectionNames() {
		section := doc[name]
		if name == ini.DefaultSection && len(section) == 0 {
			continue
		}
		if err := checkSectionName(name); err != nil {
			return nil, err
		}
		sec, err := f.NewSection(name)
		if err != nil {
			return nil, err
		}
		for _, key := range section.Keys() {
			if err := checkKey(key); err != nil {
				return nil, fmt.Errorf("section %q: %w", name, err)
			}
			if _, err := sec.NewKey(key, quoteValue(section[key])); err != nil {
				return nil, err
			}
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}

	decoded, err := Decode(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrepresentable, err)
	}
	if !sameDocument(doc, decoded) {
		return nil, fmt.Errorf("%w: content changes when read back", ErrUnrepresentable)
	}
	return buf.Bytes(), nil
}

// Decode parses INI text into a Document. Keys outside any section land in
// the DEFAULT section, which is omitted when empty.
func Decode(data []byte) (model.Document, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, err
	}
	doc := model.Document{}
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		section := model.Section{}
		for _, key := range sec.Keys() {
			section[key.Name()] = key.Value()
		}
		doc[sec.Name()] = section
	}
	return doc, nil
}

func checkSectionName(name string) error {
	if name == "" || strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: section name %q", ErrUnrepresentable, name)
	}
	return nil
}

// checkKey rejects key names the INI grammar reads as something else: comment
// and section lines, trimmed padding, the auto-increment key and names
// needing both quote styles.
func checkKey(key string) error {
	switch {
	case key == "", key == "-",
		strings.TrimSpace(key) != key,
		strings.ContainsAny(key[:1], "#;["),
		strings.ContainsAny(key, "\r\n"),
		strings.Contains(key, "`") && strings.ContainsAny(key, "\"=:"):
		return fmt.Errorf("%w: key %q", ErrUnrepresentable, key)
	}
	return nil
}

// quoteValue wraps in triple quotes the values the parser would otherwise
// trim or take as quoted. Values holding a backtick or newline are left for
// the writer, which triple-quotes them itself.
func quoteValue(v string) string {
	if strings.ContainsAny(v, "`\n") {
		return v
	}
	if strings.TrimSpace(v) != v || strings.HasPrefix(v, tripleQuote) {
		return tripleQuote + v + tripleQuote
	}
	return v
}

// sameDocument compares documents, ignoring an empty DEFAULT section.
func sameDocument(a, b model.Document) bool {
	count := func(d model.Document) int {
		n := len(d)
		if s, ok := d[ini.DefaultSection]; ok && len(s) == 0 {
			n--
		}
		return n
	}
	if count(a) != count(b) {
		return false
	}
	for name, sa := range a {
		sb, ok := b[name]
		if !ok {
			if len(sa) == 0 && name == ini.DefaultSection {
				continue
			}
			return false
		}
		if len(sa) != len(sb) {
			return false
		}
		for k, v := range sa {
			if w, ok := sb[k]; !ok || w != v {
				return false
			}
		}
	}
	return true
}
