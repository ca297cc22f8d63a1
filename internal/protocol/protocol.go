// Package protocol defines the closed set of request/response messages exchanged
// with the interpreter and the routine registry, and their JSON envelope.
package protocol

import (
	"github.com/hpungsan/routines/internal/routine"
)

// Type is the envelope tag of a message.
type Type string

const (
	TypeParseUtterance         Type = "parseUtterance"
	TypeGetRegisteredNicknames Type = "getRegisteredNicknames"
	TypeRegisterNickname       Type = "registerNickname"

	TypeParsed   Type = "parsed"
	TypeRoutines Type = "routines"
	TypeAck      Type = "ack"
)

// Request is implemented only by the request types of this package.
type Request interface {
	RequestType() Type
	isRequest()
}

// Response is implemented only by the response types of this package.
type Response interface {
	ResponseType() Type
	isResponse()
}

// ParseUtterance asks the interpreter to parse one line of text.
type ParseUtterance struct {
	Utterance       string
	DisableFallback bool
}

// GetRegisteredNicknames asks the registry for a full snapshot.
type GetRegisteredNicknames struct{}

// RegisterNickname writes Context under Name. A nil Context deletes the entry.
type RegisterNickname struct {
	Name    string
	Context *routine.Definition
}

func (ParseUtterance) RequestType() Type         { return TypeParseUtterance }
func (GetRegisteredNicknames) RequestType() Type { return TypeGetRegisteredNicknames }
func (RegisterNickname) RequestType() Type       { return TypeRegisterNickname }

func (ParseUtterance) isRequest()         {}
func (GetRegisteredNicknames) isRequest() {}
func (RegisterNickname) isRequest()       {}

// Parsed answers ParseUtterance. A nil Context means the text did not parse.
type Parsed struct {
	Context *routine.IntentContext
}

// Routines answers GetRegisteredNicknames.
type Routines struct {
	Routines map[string]routine.Definition
}

// Ack answers RegisterNickname.
type Ack struct {
	Name     string `json:"name"`
	Revision string `json:"revision,omitempty"`
	// Deleted is true when a delete removed an existing entry.
	Deleted bool `json:"deleted"`
}

func (Parsed) ResponseType() Type   { return TypeParsed }
func (Routines) ResponseType() Type { return TypeRoutines }
func (Ack) ResponseType() Type      { return TypeAck }

func (Parsed) isResponse()   {}
func (Routines) isResponse() {}
func (Ack) isResponse()      {}
