package routine

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple lowercase", "Play Music", "play music"},
		{"trim whitespace", "  stop  ", "stop"},
		{"collapse internal whitespace", "close    tab", "close tab"},
		{"tabs and newlines", "next\t\n  slide", "next slide"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplitIntents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"only blank lines", "\n\n", []string{}},
		{"single line", "open options", []string{"open options"}},
		{"skips blank lines", "foo\n\nbar\n", []string{"foo", "bar"}},
		{"trims each line", "  foo  \n\t bar", []string{"foo", "bar"}},
		{"windows line endings", "foo\r\nbar\r\n", []string{"foo", "bar"}},
		{"whitespace only lines", "foo\n   \n\t\nbar", []string{"foo", "bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitIntents(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitIntents(%q) = %q, want %q", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewDefinition(t *testing.T) {
	def := NewDefinition("morning", []IntentContext{{Name: "music.play", Utterance: "play jazz"}})

	if def.Utterance != "Combined actions named morning" {
		t.Errorf("Utterance = %q", def.Utterance)
	}
	if def.Slots == nil || len(def.Slots) != 0 {
		t.Errorf("Slots = %v, want empty map", def.Slots)
	}
	if def.Parameters == nil || len(def.Parameters) != 0 {
		t.Errorf("Parameters = %v, want empty map", def.Parameters)
	}
	if len(def.Contexts) != 1 {
		t.Errorf("len(Contexts) = %d, want 1", len(def.Contexts))
	}
}

func TestDraftFromDefinition_RoundTripsThroughSplit(t *testing.T) {
	def := NewDefinition("evening", []IntentContext{
		{Utterance: "close all tabs"},
		{Utterance: "play lofi"},
	})

	draft := DraftFromDefinition(def)

	if draft.Nickname != "evening" {
		t.Errorf("Nickname = %q, want %q", draft.Nickname, "evening")
	}
	if draft.Intents != "close all tabs\nplay lofi\n" {
		t.Errorf("Intents = %q", draft.Intents)
	}
	lines := SplitIntents(draft.Intents)
	if len(lines) != 2 || lines[0] != "close all tabs" || lines[1] != "play lofi" {
		t.Errorf("SplitIntents(draft) = %q", lines)
	}
}

func TestClone_IsDeep(t *testing.T) {
	def := NewDefinition("x", []IntentContext{{Utterance: "a", Slots: map[string]string{"k": "v"}}})
	c := def.Clone()

	c.Contexts[0].Slots["k"] = "changed"
	c.Slots["new"] = "1"

	if def.Contexts[0].Slots["k"] != "v" {
		t.Error("clone shares context slots with original")
	}
	if _, ok := def.Slots["new"]; ok {
		t.Error("clone shares slots with original")
	}
}

func TestMarkdown(t *testing.T) {
	def := NewDefinition("focus", []IntentContext{
		{Name: "tabs.close", Utterance: "close tab"},
		{Utterance: "mute"},
	})

	md := Markdown(def)

	for _, want := range []string{"## focus", "_Combined actions named focus_", "1. close tab (`tabs.close`)", "2. mute\n"} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q:\n%s", want, md)
		}
	}
}

func TestIsKey(t *testing.T) {
	for name, want := range map[string]bool{
		"morning":      true,
		"good morning": true,
		"":             false,
		" ":            false,
		" morning":     false,
		"morning\t":    false,
	} {
		if got := IsKey(name); got != want {
			t.Errorf("IsKey(%q) = %v, want %v", name, got, want)
		}
	}
}
