package routine

import "fmt"

// IntentContext is the structured result of interpreting one line of text.
type IntentContext struct {
	// Name is the intent identifier (e.g., "timer.set")
	Name string `json:"name,omitempty"`

	// Utterance is the normalized command text. A context without one is unusable.
	Utterance string `json:"utterance,omitempty"`

	// Slots holds values captured from the utterance
	Slots map[string]string `json:"slots,omitempty"`

	// Parameters holds fixed values attached to the matched phrase
	Parameters map[string]string `json:"parameters,omitempty"`

	// Fallback is set when only the fallback handler produced this context
	Fallback bool `json:"fallback,omitempty"`
}

// Definition is the persisted unit: a named, ordered list of intent contexts.
type Definition struct {
	// Nickname is the unique registry key
	Nickname string `json:"nickname"`

	// Contexts is the ordered list of commands. Never empty for a valid routine.
	Contexts []IntentContext `json:"contexts"`

	Slots      map[string]string `json:"slots"`
	Parameters map[string]string `json:"parameters"`

	// Utterance is a synthetic description generated from the nickname
	Utterance string `json:"utterance"`
}

// Draft is the unvalidated, user-edited form of a routine.
type Draft struct {
	Nickname string `json:"nickname"`

	// Intents is raw multi-line text, one candidate command per line
	Intents string `json:"intents"`
}

// DescribeNickname returns the synthetic utterance stored with a routine.
func DescribeNickname(nickname string) string {
	return fmt.Sprintf("Combined actions named %s", nickname)
}

// NewDefinition builds the canonical definition for nickname and contexts.
// The same value is written to the registry and to the local cache.
func NewDefinition(nickname string, contexts []IntentContext) Definition {
	return Definition{
		Nickname:   nickname,
		Contexts:   contexts,
		Slots:      map[string]string{},
		Parameters: map[string]string{},
		Utterance:  DescribeNickname(nickname),
	}
}

// Utterances returns the utterance of every context, in order.
func (d Definition) Utterances() []string {
	out := make([]string, 0, len(d.Contexts))
	for _, c := range d.Contexts {
		out = append(out, c.Utterance)
	}
	return out
}

// Clone returns a copy of the context that shares no maps with c.
func (c IntentContext) Clone() IntentContext {
	c.Slots = cloneMap(c.Slots)
	c.Parameters = cloneMap(c.Parameters)
	return c
}

// Clone returns a deep copy of the definition.
func (d Definition) Clone() Definition {
	out := d
	out.Slots = cloneMap(d.Slots)
	out.Parameters = cloneMap(d.Parameters)
	if d.Contexts != nil {
		out.Contexts = make([]IntentContext, len(d.Contexts))
		for i, c := range d.Contexts {
			out.Contexts[i] = c.Clone()
		}
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
