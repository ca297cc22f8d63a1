package registry

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/routines/internal/db"
	"github.com/hpungsan/routines/internal/errors"
	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/routine"
)

// Store is a Transport backed by the local SQLite registry.
// Each write is applied atomically per key; last write wins.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an initialized database.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

// Send implements Transport. Parse requests are not handled by the registry.
func (s *Store) Send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	switch r := req.(type) {
	case protocol.GetRegisteredNicknames:
		return s.getAll(ctx)
	case protocol.RegisterNickname:
		if r.Context == nil {
			return s.remove(ctx, r.Name)
		}
		return s.upsert(ctx, r.Name, *r.Context)
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("registry cannot handle %s", req.RequestType()))
	}
}

// Get returns one stored routine with its bookkeeping columns.
func (s *Store) Get(ctx context.Context, name string) (*db.Row, error) {
	return db.GetByName(ctx, s.db, name)
}

func (s *Store) getAll(ctx context.Context) (protocol.Response, error) {
	rows, err := db.GetAll(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make(map[string]routine.Definition, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Definition
	}
	return protocol.Routines{Routines: out}, nil
}

func (s *Store) upsert(ctx context.Context, name string, def routine.Definition) (protocol.Response, error) {
	revision, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := db.Upsert(ctx, s.db, name, def, revision); err != nil {
		return nil, err
	}
	return protocol.Ack{Name: name, Revision: revision}, nil
}

func (s *Store) remove(ctx context.Context, name string) (protocol.Response, error) {
	deleted, err := db.Delete(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	return protocol.Ack{Name: name, Deleted: deleted}, nil
}

// generateULID generates a new ULID used as a write revision.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
