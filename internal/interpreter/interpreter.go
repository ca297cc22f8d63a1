// Package interpreter turns one line of text into a structured intent context.
//
// The interpretation itself is opaque to the rest of the system: a Parser either
// returns a context, returns nil for text it could not interpret, or fails with a
// transport error. Three Parsers are provided: HTTPClient (a remote interpreter
// speaking the message protocol), Matcher (a local phrase-pattern catalog) and
// Cached (an expiring LRU in front of either).
package interpreter

import (
	"context"
	"time"

	"github.com/hpungsan/routines/internal/config"
	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/routine"
)

// Parser interprets a single trimmed, non-empty line.
//
// A nil context with a nil error means the text did not parse. Errors are
// reserved for transport failures and never signal an interpretation miss.
type Parser interface {
	Parse(ctx context.Context, req protocol.ParseUtterance) (*routine.IntentContext, error)
}

// New builds the Parser described by cfg: a remote HTTPClient when an
// interpreter URL is configured, otherwise a local Matcher. A positive
// ParseCacheSize puts a Cached layer in front.
func New(cfg *config.Config) (Parser, error) {
	var p Parser
	if cfg.InterpreterURL != "" {
		p = NewHTTPClient(cfg.InterpreterURL, cfg.InterpreterTimeout(), cfg.InterpreterRatePerMinute)
	} else {
		catalog := cfg.Intents
		if len(catalog) == 0 {
			catalog = DefaultCatalog()
		}
		m, err := NewMatcher(catalog)
		if err != nil {
			return nil, err
		}
		p = m
	}

	if cfg.ParseCacheSize > 0 {
		ttl := cfg.ParseCacheTTL()
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		p = NewCached(p, cfg.ParseCacheSize, ttl)
	}
	return p, nil
}
