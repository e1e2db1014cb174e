package domain

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

// NormalizeLanguage reduces a BCP 47 tag to its lowercase base language
// ("ES" and "es-MX" both become "es").
func NormalizeLanguage(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", false
	}
	return base.String(), true
}

// Languages is the supported language set and the platform base language.
type Languages struct {
	base      string
	ordered   []string
	supported map[string]struct{}
}

func NewLanguages(base string, codes []string) (*Languages, error) {
	b, ok := NormalizeLanguage(base)
	if !ok {
		return nil, fmt.Errorf("%w: base %q", ErrUnsupportedLanguage, base)
	}
	l := &Languages{base: b, supported: make(map[string]struct{}, len(codes)+1)}
	for _, c := range append([]string{b}, codes...) {
		n, ok := NormalizeLanguage(c)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, c)
		}
		if _, dup := l.supported[n]; dup {
			continue
		}
		l.supported[n] = struct{}{}
		l.ordered = append(l.ordered, n)
	}
	return l, nil
}

func (l *Languages) Base() string { return l.base }

func (l *Languages) List() []string { return slices.Clone(l.ordered) }

// Supported normalizes code and reports whether it is in the set.
func (l *Languages) Supported(code string) (string, bool) {
	n, ok := NormalizeLanguage(code)
	if !ok {
		return "", false
	}
	_, ok = l.supported[n]
	return n, ok
}

// OrBase returns the supported form of code, or the base language.
func (l *Languages) OrBase(code string) string {
	if n, ok := l.Supported(code); ok {
		return n
	}
	return l.base
}
