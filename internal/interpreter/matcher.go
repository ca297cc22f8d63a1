package interpreter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/routine"
)

// FallbackIntent is produced for unmatched text when fallback is allowed.
const FallbackIntent = "search.search"

// DefaultCatalog returns the built-in intent phrases used when config has none.
func DefaultCatalog() map[string][]string {
	return map[string][]string{
		"self.cancelIntent":     {"cancel timer", "stop timer", "cancel"},
		"self.openOptions":      {"open options", "open settings"},
		"self.openIntentViewer": {"open intent viewer"},
		"self.openLexicon":      {"hello"},
		"self.tellJoke":         {"tell me a joke"},
		"self.simpleTest":       {"run simple test"},
		"timer.set":             {"set a timer for [time]", "set timer for [time]"},
		"music.play":            {"play [query] on youtube", "play [query] on spotify", "play [query]"},
		"music.pause":           {"pause", "pause music"},
		"tabs.open":             {"open [query]", "go to [query]"},
		"tabs.close":            {"close tab", "close this tab", "close all tabs"},
		"navigation.goBack":     {"go back"},
		"audio.mute":            {"mute", "mute tab"},
		"audio.unmute":          {"unmute", "unmute tab"},
		"search.search":         {"search for [query]", "search [query]", "look up [query]"},
	}
}

// token is either a literal word or a [slot] capturing one or more words.
type token struct {
	literal string
	slot    string
}

// pattern is a compiled phrase for one intent.
type pattern struct {
	intent   string
	phrase   string
	order    int
	literals int
	tokens   []token
}

// Matcher is a local Parser over a catalog of phrase patterns.
// More specific patterns (more literal words) are tried first; ties are
// broken by intent name, then by the order phrases were listed.
type Matcher struct {
	patterns []pattern
}

// NewMatcher compiles a catalog mapping intent names to phrase patterns.
func NewMatcher(catalog map[string][]string) (*Matcher, error) {
	m := &Matcher{}
	for intent, phrases := range catalog {
		intent = strings.TrimSpace(intent)
		if intent == "" {
			return nil, fmt.Errorf("intent name must not be empty")
		}
		for i, phrase := range phrases {
			p, err := compile(intent, phrase, i)
			if err != nil {
				return nil, err
			}
			m.patterns = append(m.patterns, p)
		}
	}

	sort.SliceStable(m.patterns, func(i, j int) bool {
		a, b := m.patterns[i], m.patterns[j]
		if a.literals != b.literals {
			return a.literals > b.literals
		}
		if a.intent != b.intent {
			return a.intent < b.intent
		}
		return a.order < b.order
	})
	return m, nil
}

func compile(intent, phrase string, order int) (pattern, error) {
	words := strings.Fields(routine.Normalize(phrase))
	if len(words) == 0 {
		return pattern{}, fmt.Errorf("intent %s: empty phrase", intent)
	}

	p := pattern{intent: intent, phrase: phrase, order: order}
	prevSlot := false
	for _, w := range words {
		if strings.HasPrefix(w, "[") && strings.HasSuffix(w, "]") {
			name := strings.TrimSuffix(strings.TrimPrefix(w, "["), "]")
			if name == "" {
				return pattern{}, fmt.Errorf("intent %s: empty slot in %q", intent, phrase)
			}
			if prevSlot {
				return pattern{}, fmt.Errorf("intent %s: adjacent slots in %q", intent, phrase)
			}
			p.tokens = append(p.tokens, token{slot: name})
			prevSlot = true
			continue
		}
		p.tokens = append(p.tokens, token{literal: w})
		p.literals++
		prevSlot = false
	}
	return p, nil
}

// Parse implements Parser.
func (m *Matcher) Parse(ctx context.Context, req protocol.ParseUtterance) (*routine.IntentContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := routine.Normalize(req.Utterance)
	if text == "" {
		return nil, nil
	}
	words := strings.Fields(text)

	for _, p := range m.patterns {
		slots := map[string]string{}
		if matchTokens(p.tokens, words, slots) {
			ic := &routine.IntentContext{Name: p.intent, Utterance: text}
			if len(slots) > 0 {
				ic.Slots = slots
			}
			return ic, nil
		}
	}

	if req.DisableFallback {
		return nil, nil
	}
	return &routine.IntentContext{
		Name:      FallbackIntent,
		Utterance: text,
		Slots:     map[string]string{"query": text},
		Fallback:  true,
	}, nil
}

// matchTokens reports whether tokens consume all of words, filling slots.
func matchTokens(tokens []token, words []string, slots map[string]string) bool {
	if len(tokens) == 0 {
		return len(words) == 0
	}
	if len(words) == 0 {
		return false
	}

	t := tokens[0]
	if t.slot == "" {
		return t.literal == words[0] && matchTokens(tokens[1:], words[1:], slots)
	}

	// Slot: capture the shortest span that lets the rest match.
	for n := 1; n <= len(words); n++ {
		if matchTokens(tokens[1:], words[n:], slots) {
			slots[t.slot] = strings.Join(words[:n], " ")
			return true
		}
	}
	return false
}
