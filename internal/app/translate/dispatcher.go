// Package translate wraps the machine-translation provider with caching,
// input validation and a fallback to the original text.
package translate

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dkeye/liveshow/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// AutoSource asks the provider to detect the source language.
const AutoSource = "auto"

const (
	DefaultMaxTextLength = 1000
	DefaultTimeout       = 5 * time.Second
	DefaultCacheSize     = 10_000
)

type Options struct {
	MaxTextLength int
	Timeout       time.Duration
}

// Dispatcher never fails: every problem degrades to returning the input.
type Dispatcher struct {
	provider Provider
	cache    Cache
	langs    *domain.Languages
	maxLen   int
	timeout  time.Duration
	group    singleflight.Group
}

// NewDispatcher builds a dispatcher. A nil provider disables translation and
// a nil cache falls back to an LRU of default size without expiry.
func NewDispatcher(p Provider, c Cache, langs *domain.Languages, opts Options) *Dispatcher {
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = DefaultMaxTextLength
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if c == nil {
		c = NewLRUCache(DefaultCacheSize, 0)
	}
	return &Dispatcher{
		provider: p,
		cache:    c,
		langs:    langs,
		maxLen:   opts.MaxTextLength,
		timeout:  opts.Timeout,
	}
}

func (d *Dispatcher) Languages() *domain.Languages { return d.langs }

// Enabled reports whether a provider is configured.
func (d *Dispatcher) Enabled() bool { return d.provider != nil }

// Translate returns text in target, or text itself when it is empty, too
// long, already in target, addressed to an unsupported language, or when the
// provider fails. An empty source means auto-detect.
func (d *Dispatcher) Translate(ctx context.Context, text, target, source string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}
	if n := utf8.RuneCountInString(trimmed); n > d.maxLen {
		log.Warn().Str("module", "translate").Int("length", n).Int("max", d.maxLen).Msg("text too long, not translated")
		return text
	}
	tgt, ok := d.langs.Supported(target)
	if !ok {
		log.Debug().Str("module", "translate").Str("target", target).Msg("unsupported target language")
		return text
	}
	src := AutoSource
	if source != "" {
		if n, ok := domain.NormalizeLanguage(source); ok {
			src = n
		}
	}
	if src == tgt || d.provider == nil {
		return text
	}

	key := Key{Text: trimmed, Target: tgt, Source: src}
	if v, ok := d.cache.Get(ctx, key); ok {
		return v
	}

	v, err, shared := d.group.Do(key.String(), func() (any, error) {
		if v, ok := d.cache.Get(ctx, key); ok {
			return v, nil
		}
		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		out, err := d.provider.Translate(cctx, trimmed, tgt, src)
		if err != nil {
			return "", err
		}
		d.cache.Set(ctx, key, out)
		return out, nil
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "translate").
			Str("source", src).Str("target", tgt).Bool("shared", shared).
			Msg("translation failed, using original text")
		return text
	}
	return v.(string)
}
