package ops

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/routines/internal/db"
	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/registry"
	"github.com/hpungsan/routines/internal/routine"
)

// fakeParser parses the lines listed in known, lowercased, and nothing else.
// Lines listed in fallback come back as fallback contexts.
type fakeParser struct {
	known    map[string]string
	fallback map[string]bool
	err      error
	calls    []string
}

func newFakeParser(lines ...string) *fakeParser {
	p := &fakeParser{known: map[string]string{}, fallback: map[string]bool{}}
	for _, l := range lines {
		p.known[l] = "test." + strings.ReplaceAll(l, " ", "_")
	}
	return p
}

func (p *fakeParser) Parse(_ context.Context, req protocol.ParseUtterance) (*routine.IntentContext, error) {
	p.calls = append(p.calls, req.Utterance)
	if p.err != nil {
		return nil, p.err
	}
	if p.fallback[req.Utterance] {
		return &routine.IntentContext{Name: "search.search", Utterance: req.Utterance, Fallback: true}, nil
	}
	name, ok := p.known[req.Utterance]
	if !ok {
		return nil, nil
	}
	return &routine.IntentContext{Name: name, Utterance: req.Utterance}, nil
}

type parserFunc func(context.Context, protocol.ParseUtterance) (*routine.IntentContext, error)

func (f parserFunc) Parse(ctx context.Context, req protocol.ParseUtterance) (*routine.IntentContext, error) {
	return f(ctx, req)
}

// flakyTransport forwards to a Store but fails requests selected by failOn.
type flakyTransport struct {
	next   registry.Transport
	failOn func(protocol.Request) bool
}

func (t *flakyTransport) Send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if t.failOn != nil && t.failOn(req) {
		return nil, fmt.Errorf("connection refused")
	}
	return t.next.Send(ctx, req)
}

func failUpserts(req protocol.Request) bool {
	r, ok := req.(protocol.RegisterNickname)
	return ok && r.Context != nil
}

func failRemoves(req protocol.Request) bool {
	r, ok := req.(protocol.RegisterNickname)
	return ok && r.Context == nil
}

type fixture struct {
	store     *registry.Store
	transport *flakyTransport
	client    *registry.Client
	parser    *fakeParser
	sync      *Synchronizer
}

func newFixture(t *testing.T, lines ...string) *fixture {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	f := &fixture{store: registry.NewStore(database), parser: newFakeParser(lines...)}
	f.transport = &flakyTransport{next: f.store}
	f.client = registry.NewClient(f.transport)
	f.sync = NewSynchronizer(f.client, f.parser, NewCache(), nil)
	return f
}

// registryContents reads the registry directly, bypassing the cache.
func (f *fixture) registryContents(t *testing.T) map[string]routine.Definition {
	t.Helper()
	all, err := registry.NewClient(f.store).FetchAll(context.Background())
	require.NoError(t, err)
	return all
}

// seed saves a routine through the synchronizer.
func (f *fixture) seed(t *testing.T, name, intents string) {
	t.Helper()
	out, err := f.sync.UpdateNickname(context.Background(), &routine.Draft{Nickname: name, Intents: intents}, "")
	require.NoError(t, err)
	require.True(t, out.Allowed, "seed %s rejected: %s", name, out.Error)
}

func draft(name, intents string) *routine.Draft {
	return &routine.Draft{Nickname: name, Intents: intents}
}
