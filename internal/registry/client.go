// Package registry is the client side of the authoritative routine store.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/routines/internal/errors"
	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/routine"
)

// Transport delivers one request and returns its response.
type Transport interface {
	Send(ctx context.Context, req protocol.Request) (protocol.Response, error)
}

// Client wraps a Transport with the three registry operations.
// Calls are at-most-once; nothing is retried.
type Client struct {
	transport Transport
}

// NewClient creates a registry client over t.
func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

// FetchAll returns a full snapshot of the registry.
func (c *Client) FetchAll(ctx context.Context) (map[string]routine.Definition, error) {
	resp, err := c.transport.Send(ctx, protocol.GetRegisteredNicknames{})
	if err != nil {
		return nil, fmt.Errorf("fetch routines: %w", err)
	}
	r, ok := resp.(protocol.Routines)
	if !ok {
		return nil, unexpected(protocol.TypeGetRegisteredNicknames, resp)
	}
	if r.Routines == nil {
		return map[string]routine.Definition{}, nil
	}
	return r.Routines, nil
}

// Upsert writes or overwrites the entry keyed by name. Names with
// surrounding whitespace are rejected so every stored key is one the
// synchronizer can address again.
func (c *Client) Upsert(ctx context.Context, name string, def routine.Definition) (protocol.Ack, error) {
	if strings.TrimSpace(name) == "" {
		return protocol.Ack{}, errors.NewInvalidRequest("name must not be empty")
	}
	if !routine.IsKey(name) {
		return protocol.Ack{}, errors.NewInvalidRequest(fmt.Sprintf("name %q has surrounding whitespace", name))
	}
	return c.register(ctx, protocol.RegisterNickname{Name: name, Context: &def})
}

// Remove deletes the entry keyed by name by writing a null context.
// Removing an absent name succeeds with Ack.Deleted == false. The name is
// used exactly as given.
func (c *Client) Remove(ctx context.Context, name string) (protocol.Ack, error) {
	if strings.TrimSpace(name) == "" {
		return protocol.Ack{}, errors.NewInvalidRequest("name must not be empty")
	}
	return c.register(ctx, protocol.RegisterNickname{Name: name})
}

func (c *Client) register(ctx context.Context, req protocol.RegisterNickname) (protocol.Ack, error) {
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return protocol.Ack{}, fmt.Errorf("register %q: %w", req.Name, err)
	}
	ack, ok := resp.(protocol.Ack)
	if !ok {
		return protocol.Ack{}, unexpected(protocol.TypeRegisterNickname, resp)
	}
	return ack, nil
}

func unexpected(req protocol.Type, resp protocol.Response) error {
	got := "nil"
	if resp != nil {
		got = string(resp.ResponseType())
	}
	return errors.NewInternal(fmt.Errorf("unexpected %s response to %s", got, req))
}
