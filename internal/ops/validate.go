package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/routines/internal/errors"
	"github.com/hpungsan/routines/internal/interpreter"
	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/routine"
)

// Validate turns a draft into a definition ready to be written.
//
// previousName is the name the routine was opened under ("" for a new routine).
// Keeping that name is allowed; taking any other existing name is not.
// Lines are parsed in order with fallback disabled and the first line that does
// not yield a usable context fails the whole draft.
func Validate(ctx context.Context, parser interpreter.Parser, draft routine.Draft, existingNames map[string]bool, previousName string) (*routine.Definition, error) {
	nickname := strings.TrimSpace(draft.Nickname)
	if nickname == "" {
		return nil, errors.NewInvalidRequest("nickname must not be empty")
	}

	if existingNames[nickname] && (previousName == "" || previousName != nickname) {
		return nil, errors.NewDuplicateName(nickname)
	}

	lines := routine.SplitIntents(draft.Intents)
	contexts := make([]routine.IntentContext, 0, len(lines))
	for i, line := range lines {
		ic, err := parser.Parse(ctx, protocol.ParseUtterance{Utterance: line, DisableFallback: true})
		if err != nil {
			return nil, errors.NewInterpreterUnavailable(err)
		}
		if ic == nil || ic.Utterance == "" || ic.Fallback {
			return nil, errors.NewInvalidIntent(i+1, line)
		}
		contexts = append(contexts, *ic)
	}

	if len(contexts) == 0 {
		return nil, errors.NewEmptyRoutine()
	}

	def := routine.NewDefinition(nickname, contexts)
	return &def, nil
}

// nameSet returns the keys of m as a set.
func nameSet(m map[string]routine.Definition) map[string]bool {
	names := make(map[string]bool, len(m))
	for name := range m {
		names[name] = true
	}
	return names
}
