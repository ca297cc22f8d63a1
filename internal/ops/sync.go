package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/routines/internal/errors"
	"github.com/hpungsan/routines/internal/interpreter"
	"github.com/hpungsan/routines/internal/routine"
)

// Synchronizer applies save, rename and delete requests to the registry and
// mirrors each acknowledged write into the local cache.
type Synchronizer struct {
	registry Registry
	parser   interpreter.Parser
	cache    *Cache
	logger   *zap.Logger
}

// NewSynchronizer wires a synchronizer for one session. A nil cache gets a fresh
// one and a nil logger discards output.
func NewSynchronizer(registry Registry, parser interpreter.Parser, cache *Cache, logger *zap.Logger) *Synchronizer {
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		registry: registry,
		parser:   parser,
		cache:    cache,
		logger:   logger,
	}
}

// Cache returns the cache this synchronizer maintains.
func (s *Synchronizer) Cache() *Cache {
	return s.cache
}

// Parser returns the parser used for validation.
func (s *Synchronizer) Parser() interpreter.Parser {
	return s.parser
}

// Load replaces the cache contents with a fresh registry snapshot.
func (s *Synchronizer) Load(ctx context.Context) error {
	all, err := s.registry.FetchAll(ctx)
	if err != nil {
		s.logger.Error("load routines failed", zap.Error(err))
		return err
	}
	s.cache.replace(all)
	s.logger.Debug("routines loaded", zap.Int("count", len(all)))
	return nil
}

// Snapshot returns a copy of the cached routines.
func (s *Synchronizer) Snapshot() map[string]routine.Definition {
	return s.cache.Snapshot()
}

// Draft reopens a cached routine as editable text.
func (s *Synchronizer) Draft(name string) (routine.Draft, error) {
	def, ok := s.cache.Get(name)
	if !ok {
		return routine.Draft{}, errors.NewNotFound(name)
	}
	return routine.DraftFromDefinition(def), nil
}

// Validate checks draft against fresh registry names without writing anything.
func (s *Synchronizer) Validate(ctx context.Context, draft routine.Draft, previousName string) (*UpdateOutput, error) {
	all, err := s.registry.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	def, err := Validate(ctx, s.parser, draft, nameSet(all), previousName)
	if err != nil {
		return rejected(err)
	}
	return &UpdateOutput{Allowed: true, Definition: def}, nil
}

// UpdateNickname is the single mutating entry point.
//
//   - candidate set, previousName empty: create.
//   - candidate set, previousName equal to its nickname: update in place.
//   - candidate set, previousName different: rename (save new, then remove old).
//   - candidate nil, previousName set: delete.
//
// The registry is always re-read for the name check; the cache is never trusted
// for it. A rejected candidate returns Allowed false and nothing is written.
// Transport failures are returned as errors; the failing step leaves the cache
// untouched and a failed save never removes the old entry.
func (s *Synchronizer) UpdateNickname(ctx context.Context, candidate *routine.Draft, previousName string) (*UpdateOutput, error) {
	// previousName is a registry key and is used verbatim; only a blank one
	// counts as absent.
	if strings.TrimSpace(previousName) == "" {
		previousName = ""
	}
	if candidate == nil && previousName == "" {
		return nil, errors.NewInvalidRequest("either a candidate or a previous name is required")
	}

	all, err := s.registry.FetchAll(ctx)
	if err != nil {
		s.logger.Error("fetch routines failed", zap.Error(err))
		return nil, err
	}

	out := &UpdateOutput{Allowed: true}

	if candidate != nil {
		def, err := Validate(ctx, s.parser, *candidate, nameSet(all), previousName)
		if err != nil {
			rej, rerr := rejected(err)
			if rerr != nil {
				s.logger.Error("validate routine failed",
					zap.String("nickname", candidate.Nickname),
					zap.Error(rerr))
				return nil, rerr
			}
			s.logger.Warn("routine rejected",
				zap.String("nickname", candidate.Nickname),
				zap.String("code", string(rej.Code)),
				zap.Int("position", rej.Position))
			return rej, nil
		}

		ack, err := s.registry.Upsert(ctx, def.Nickname, *def)
		if err != nil {
			s.logger.Error("save routine failed", zap.String("nickname", def.Nickname), zap.Error(err))
			return nil, err
		}
		s.cache.put(*def)
		s.logger.Info("routine saved",
			zap.String("nickname", def.Nickname),
			zap.String("revision", ack.Revision),
			zap.Int("intents", len(def.Contexts)))

		out.Saved = def.Nickname
		out.Revision = ack.Revision
		out.Definition = def
	}

	if previousName != "" && (candidate == nil || out.Saved != previousName) {
		ack, err := s.registry.Remove(ctx, previousName)
		if err != nil {
			s.logger.Error("remove routine failed", zap.String("nickname", previousName), zap.Error(err))
			return nil, err
		}
		s.cache.remove(previousName)
		s.logger.Info("routine removed",
			zap.String("nickname", previousName),
			zap.Bool("existed", ack.Deleted))

		out.Removed = previousName
	}

	return out, nil
}
