// Package ops holds the routine operations shared by the CLI, MCP and web surfaces:
// draft validation, the local cache and the synchronizer that keeps both in step
// with the registry.
package ops

import (
	"context"

	"github.com/hpungsan/routines/internal/errors"
	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/routine"
)

// Registry is the authoritative routine store as seen by the synchronizer.
// *registry.Client implements it.
type Registry interface {
	FetchAll(ctx context.Context) (map[string]routine.Definition, error)
	Upsert(ctx context.Context, name string, def routine.Definition) (protocol.Ack, error)
	Remove(ctx context.Context, name string) (protocol.Ack, error)
}

// UpdateOutput is the result of UpdateNickname and of a dry-run validation.
// Allowed is false when the draft was rejected; nothing was written in that case.
type UpdateOutput struct {
	Allowed bool `json:"allowed"`

	// Rejection
	Error    string           `json:"error,omitempty"`
	Code     errors.ErrorCode `json:"code,omitempty"`
	Position int              `json:"position,omitempty"`

	// Success
	Saved    string `json:"saved,omitempty"`
	Removed  string `json:"removed,omitempty"`
	Revision string `json:"revision,omitempty"`

	// Definition is the definition that was (or would be) written
	Definition *routine.Definition `json:"definition,omitempty"`
}

// rejected converts a validation error into a rejection output.
// Errors that are not validation failures are returned unchanged.
func rejected(err error) (*UpdateOutput, error) {
	rErr, ok := errors.As(err)
	if !ok || !isValidationCode(rErr.Code) {
		return nil, err
	}
	out := &UpdateOutput{
		Allowed: false,
		Error:   rErr.Message,
		Code:    rErr.Code,
	}
	if pos, ok := rErr.Details["position"].(int); ok {
		out.Position = pos
	}
	return out, nil
}

func isValidationCode(code errors.ErrorCode) bool {
	switch code {
	case errors.ErrInvalidRequest, errors.ErrDuplicateName, errors.ErrInvalidIntent, errors.ErrEmptyRoutine:
		return true
	}
	return false
}
