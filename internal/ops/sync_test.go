package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/routines/internal/errors"
	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/routine"
)

func TestUpdateNickname_Create(t *testing.T) {
	f := newFixture(t, "play jazz")
	ctx := context.Background()

	out, err := f.sync.UpdateNickname(ctx, draft("morning", "play jazz"), "")
	require.NoError(t, err)
	assert.True(t, out.Allowed)
	assert.Equal(t, "morning", out.Saved)
	assert.Empty(t, out.Removed)
	assert.Len(t, out.Revision, 26)

	reg := f.registryContents(t)
	require.Len(t, reg, 1)
	require.Len(t, reg["morning"].Contexts, 1)

	cached, ok := f.sync.Cache().Get("morning")
	require.True(t, ok)
	assert.Equal(t, reg["morning"], cached, "cache must hold exactly what the registry stores")
}

func TestUpdateNickname_DuplicateLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()
	f.seed(t, "taken", "a")
	f.seed(t, "other", "a")

	before := f.registryContents(t)
	snapshot := f.sync.Snapshot()

	for _, previous := range []string{"", "other"} {
		out, err := f.sync.UpdateNickname(ctx, draft("taken", "b"), previous)
		require.NoError(t, err)
		assert.False(t, out.Allowed)
		assert.Equal(t, errors.ErrDuplicateName, out.Code)
		assert.Equal(t, "There already is a routine with this name", out.Error)
	}

	assert.Equal(t, before, f.registryContents(t))
	assert.Equal(t, snapshot, f.sync.Snapshot())
}

func TestUpdateNickname_InvalidIntentPosition(t *testing.T) {
	f := newFixture(t, "foo")

	out, err := f.sync.UpdateNickname(context.Background(), draft("x", "foo\n\nbar\n"), "")
	require.NoError(t, err)
	assert.False(t, out.Allowed)
	assert.Equal(t, errors.ErrInvalidIntent, out.Code)
	assert.Equal(t, 2, out.Position)
	assert.Contains(t, out.Error, "2")
	assert.Empty(t, f.registryContents(t))
}

func TestUpdateNickname_EmptyRoutine(t *testing.T) {
	f := newFixture(t)

	out, err := f.sync.UpdateNickname(context.Background(), draft("x", "\n\n"), "")
	require.NoError(t, err)
	assert.False(t, out.Allowed)
	assert.Equal(t, errors.ErrEmptyRoutine, out.Code)
	assert.Equal(t, "No actions added for this routine", out.Error)
}

func TestUpdateNickname_Rename(t *testing.T) {
	f := newFixture(t, "a")
	f.seed(t, "A", "a")

	out, err := f.sync.UpdateNickname(context.Background(), draft("B", "a"), "A")
	require.NoError(t, err)
	assert.True(t, out.Allowed)
	assert.Equal(t, "B", out.Saved)
	assert.Equal(t, "A", out.Removed)

	reg := f.registryContents(t)
	assert.Contains(t, reg, "B")
	assert.NotContains(t, reg, "A")
	assert.Equal(t, []string{"B"}, f.sync.Cache().Names())
}

func TestUpdateNickname_RejectedRenameKeepsOld(t *testing.T) {
	f := newFixture(t, "a")
	f.seed(t, "A", "a")

	out, err := f.sync.UpdateNickname(context.Background(), draft("B", "nonsense"), "A")
	require.NoError(t, err)
	assert.False(t, out.Allowed)

	assert.Contains(t, f.registryContents(t), "A")
	assert.Equal(t, []string{"A"}, f.sync.Cache().Names())
}

func TestUpdateNickname_EditInPlaceIsIdempotent(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.seed(t, "X", "a")
	ctx := context.Background()

	var revisions []string
	for range 2 {
		out, err := f.sync.UpdateNickname(ctx, draft("X", "a\nb"), "X")
		require.NoError(t, err)
		require.True(t, out.Allowed)
		assert.Empty(t, out.Removed, "keeping the name must not delete")
		revisions = append(revisions, out.Revision)
	}
	assert.NotEqual(t, revisions[0], revisions[1], "every save is a full upsert")

	reg := f.registryContents(t)
	require.Len(t, reg, 1)
	assert.Equal(t, []string{"a", "b"}, reg["X"].Utterances())
	assert.Equal(t, reg, f.sync.Snapshot())
}

func TestUpdateNickname_Delete(t *testing.T) {
	f := newFixture(t, "a")
	f.seed(t, "X", "a")
	ctx := context.Background()

	out, err := f.sync.UpdateNickname(ctx, nil, "X")
	require.NoError(t, err)
	assert.True(t, out.Allowed)
	assert.Equal(t, "X", out.Removed)
	assert.Empty(t, out.Saved)
	assert.NotContains(t, f.registryContents(t), "X")
	assert.Zero(t, f.sync.Cache().Len())

	// Deleting again is a no-op success.
	out, err = f.sync.UpdateNickname(ctx, nil, "X")
	require.NoError(t, err)
	assert.True(t, out.Allowed)
	assert.Empty(t, f.registryContents(t))
}

func TestUpdateNickname_NothingToDo(t *testing.T) {
	f := newFixture(t)

	_, err := f.sync.UpdateNickname(context.Background(), nil, " ")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestUpdateNickname_NamesComeFromRegistryNotCache(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()

	// Written behind the synchronizer's back: the cache does not know it.
	_, err := f.client.Upsert(ctx, "remote", routine.NewDefinition("remote", []routine.IntentContext{{Name: "t", Utterance: "a"}}))
	require.NoError(t, err)
	require.Zero(t, f.sync.Cache().Len())

	out, err := f.sync.UpdateNickname(ctx, draft("remote", "a"), "")
	require.NoError(t, err)
	assert.False(t, out.Allowed)
	assert.Equal(t, errors.ErrDuplicateName, out.Code)
}

func TestUpdateNickname_UpsertFailure(t *testing.T) {
	f := newFixture(t, "a")
	f.seed(t, "A", "a")
	f.transport.failOn = failUpserts

	out, err := f.sync.UpdateNickname(context.Background(), draft("B", "a"), "A")
	require.Error(t, err)
	assert.Nil(t, out)

	// Save failed, so the old entry must survive everywhere.
	f.transport.failOn = nil
	reg := f.registryContents(t)
	assert.Contains(t, reg, "A")
	assert.NotContains(t, reg, "B")
	assert.Equal(t, []string{"A"}, f.sync.Cache().Names())
}

func TestUpdateNickname_RemoveFailure(t *testing.T) {
	f := newFixture(t, "a")
	f.seed(t, "A", "a")
	f.transport.failOn = failRemoves

	_, err := f.sync.UpdateNickname(context.Background(), draft("B", "a"), "A")
	require.Error(t, err)

	// Branch A completed; branch B left the cache alone.
	assert.Equal(t, []string{"A", "B"}, f.sync.Cache().Names())
}

func TestUpdateNickname_ParserFailure(t *testing.T) {
	f := newFixture(t, "a")
	f.parser.err = assert.AnError

	out, err := f.sync.UpdateNickname(context.Background(), draft("x", "a"), "")
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, errors.ErrInterpreterUnavailable))
	assert.Empty(t, f.registryContents(t))
}

func TestUpdateNickname_FetchFailure(t *testing.T) {
	f := newFixture(t, "a")
	f.transport.failOn = func(protocol.Request) bool { return true }

	_, err := f.sync.UpdateNickname(context.Background(), draft("x", "a"), "")
	assert.Error(t, err)
	assert.Empty(t, f.parser.calls, "nothing is parsed without a name snapshot")
}

func TestSynchronizer_Load(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()

	_, err := f.client.Upsert(ctx, "one", routine.NewDefinition("one", []routine.IntentContext{{Name: "t", Utterance: "a"}}))
	require.NoError(t, err)

	changes, cancel := f.sync.Cache().Subscribe()
	defer cancel()

	require.NoError(t, f.sync.Load(ctx))
	assert.Equal(t, []string{"one"}, f.sync.Cache().Names())
	assert.Equal(t, Change{Kind: ChangeReset}, <-changes)
}

func TestSynchronizer_Draft(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.seed(t, "X", "a\n\nb")

	d, err := f.sync.Draft("X")
	require.NoError(t, err)
	assert.Equal(t, routine.Draft{Nickname: "X", Intents: "a\nb\n"}, d)

	_, err = f.sync.Draft("missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSynchronizer_ValidateIsDryRun(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()

	out, err := f.sync.Validate(ctx, routine.Draft{Nickname: "x", Intents: "a"}, "")
	require.NoError(t, err)
	assert.True(t, out.Allowed)
	require.NotNil(t, out.Definition)
	assert.Equal(t, "Combined actions named x", out.Definition.Utterance)
	assert.Empty(t, f.registryContents(t))

	out, err = f.sync.Validate(ctx, routine.Draft{Nickname: "x", Intents: "zzz"}, "")
	require.NoError(t, err)
	assert.False(t, out.Allowed)
	assert.Equal(t, 1, out.Position)
}

func TestUpdateNickname_PreviousNameIsUsedVerbatim(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()

	// A key with surrounding whitespace left behind by an older writer.
	def := routine.NewDefinition(" X ", []routine.IntentContext{{Name: "t", Utterance: "a"}})
	_, err := f.store.Send(ctx, protocol.RegisterNickname{Name: " X ", Context: &def})
	require.NoError(t, err)
	f.seed(t, "X", "a")
	require.NoError(t, f.sync.Load(ctx))

	out, err := f.sync.UpdateNickname(ctx, nil, " X ")
	require.NoError(t, err)
	assert.True(t, out.Allowed)
	assert.Equal(t, " X ", out.Removed)

	reg := f.registryContents(t)
	assert.NotContains(t, reg, " X ")
	assert.Contains(t, reg, "X", "the trimmed name is a different routine")
	_, cached := f.sync.Cache().Get(" X ")
	assert.False(t, cached)
	_, cached = f.sync.Cache().Get("X")
	assert.True(t, cached)
}

func TestUpdateNickname_UntrimmedNamesCannotBeWritten(t *testing.T) {
	f := newFixture(t, "a")

	_, err := f.client.Upsert(context.Background(), " X ", routine.NewDefinition(" X ", []routine.IntentContext{{Name: "t", Utterance: "a"}}))
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	// Drafts are trimmed before they become keys.
	out, err := f.sync.UpdateNickname(context.Background(), draft(" X ", "a"), "")
	require.NoError(t, err)
	assert.Equal(t, "X", out.Saved)
	assert.Contains(t, f.registryContents(t), "X")
}
