package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hpungsan/routines/internal/errors"
	"github.com/hpungsan/routines/internal/routine"
)

// jsonNull is the literal written for a deleting RegisterNickname.
var jsonNull = json.RawMessage("null")

// requestEnvelope is the wire form shared by all requests.
type requestEnvelope struct {
	Type            Type            `json:"type"`
	Utterance       string          `json:"utterance,omitempty"`
	DisableFallback bool            `json:"disableFallback,omitempty"`
	Name            string          `json:"name,omitempty"`
	Context         json.RawMessage `json:"context,omitempty"`
}

// responseEnvelope is the wire form shared by all responses.
type responseEnvelope struct {
	Type     Type                          `json:"type"`
	Context  *routine.IntentContext        `json:"context,omitempty"`
	Routines map[string]routine.Definition `json:"routines,omitempty"`
	Name     string                        `json:"name,omitempty"`
	Revision string                        `json:"revision,omitempty"`
	Deleted  bool                          `json:"deleted,omitempty"`
}

// errorEnvelope is the wire form of a failed exchange.
type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Status  int            `json:"status"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// EncodeRequest marshals a request into its tagged envelope.
func EncodeRequest(req Request) ([]byte, error) {
	env := requestEnvelope{Type: req.RequestType()}

	switch r := req.(type) {
	case ParseUtterance:
		env.Utterance = r.Utterance
		env.DisableFallback = r.DisableFallback
	case GetRegisteredNicknames:
	case RegisterNickname:
		env.Name = r.Name
		env.Context = jsonNull
		if r.Context != nil {
			data, err := json.Marshal(r.Context)
			if err != nil {
				return nil, fmt.Errorf("marshal context: %w", err)
			}
			env.Context = data
		}
	default:
		return nil, fmt.Errorf("unsupported request %T", req)
	}

	return json.Marshal(env)
}

// DecodeRequest parses a tagged envelope into a request.
// Malformed or unknown messages yield an INVALID_REQUEST error.
func DecodeRequest(data []byte) (Request, error) {
	var env requestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid message: %v", err))
	}

	switch env.Type {
	case TypeParseUtterance:
		if strings.TrimSpace(env.Utterance) == "" {
			return nil, errors.NewInvalidRequest("utterance is required")
		}
		return ParseUtterance{Utterance: env.Utterance, DisableFallback: env.DisableFallback}, nil
	case TypeGetRegisteredNicknames:
		return GetRegisteredNicknames{}, nil
	case TypeRegisterNickname:
		if strings.TrimSpace(env.Name) == "" {
			return nil, errors.NewInvalidRequest("name is required")
		}
		if len(env.Context) == 0 {
			return nil, errors.NewInvalidRequest("context is required (use null to delete)")
		}
		req := RegisterNickname{Name: env.Name}
		if !bytes.Equal(bytes.TrimSpace(env.Context), jsonNull) {
			var def routine.Definition
			if err := json.Unmarshal(env.Context, &def); err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid context: %v", err))
			}
			req.Context = &def
			if !routine.IsKey(env.Name) {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("name %q has surrounding whitespace", env.Name))
			}
		}
		return req, nil
	case "":
		return nil, errors.NewInvalidRequest("message type is required")
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown message type %q", env.Type))
	}
}

// EncodeResponse marshals a response into its tagged envelope.
func EncodeResponse(resp Response) ([]byte, error) {
	env := responseEnvelope{Type: resp.ResponseType()}

	switch r := resp.(type) {
	case Parsed:
		env.Context = r.Context
	case Routines:
		env.Routines = r.Routines
	case Ack:
		env.Name = r.Name
		env.Revision = r.Revision
		env.Deleted = r.Deleted
	default:
		return nil, fmt.Errorf("unsupported response %T", resp)
	}

	return json.Marshal(env)
}

// DecodeResponse parses a tagged envelope into a response.
func DecodeResponse(data []byte) (Response, error) {
	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	switch env.Type {
	case TypeParsed:
		return Parsed{Context: env.Context}, nil
	case TypeRoutines:
		if env.Routines == nil {
			env.Routines = map[string]routine.Definition{}
		}
		return Routines{Routines: env.Routines}, nil
	case TypeAck:
		return Ack{Name: env.Name, Revision: env.Revision, Deleted: env.Deleted}, nil
	default:
		return nil, fmt.Errorf("unknown response type %q", env.Type)
	}
}

// EncodeError marshals err as an error envelope. Internal details are not exposed.
func EncodeError(err error) ([]byte, int) {
	var env errorEnvelope
	rErr, ok := errors.As(err)
	if !ok || rErr.Code == errors.ErrInternal {
		env.Error.Code = string(errors.ErrInternal)
		env.Error.Message = "an internal error occurred"
		env.Error.Status = 500
	} else {
		env.Error.Code = string(rErr.Code)
		env.Error.Message = rErr.Message
		env.Error.Status = rErr.Status
		env.Error.Details = rErr.Details
	}
	data, _ := json.Marshal(env)
	return data, env.Error.Status
}

// DecodeError rebuilds a RoutineError from an error envelope returned with status.
func DecodeError(status int, body []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Code == "" {
		return errors.NewInternal(fmt.Errorf("remote error %d: %s", status, strings.TrimSpace(string(body))))
	}
	if env.Error.Status == 0 {
		env.Error.Status = status
	}
	return &errors.RoutineError{
		Code:    errors.ErrorCode(env.Error.Code),
		Status:  env.Error.Status,
		Message: env.Error.Message,
		Details: env.Error.Details,
	}
}
