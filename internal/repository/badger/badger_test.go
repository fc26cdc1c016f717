package badger

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nvdiff/internal/domain"
	"nvdiff/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(seq int64, nid domain.NID, effect domain.Effect, ts time.Time) domain.Entry {
	e := domain.Entry{
		Seq:       seq,
		NID:       nid,
		Kind:      domain.KindElement,
		Effect:    effect,
		Timestamp: ts,
		CycleID:   "c1",
	}
	if effect != domain.EffectRetirement {
		e.State = &domain.Feature{
			Kind:     domain.KindElement,
			NID:      nid,
			Geometry: domain.LineString{{X: 0, Y: 0}, {X: 1, Y: 1}},
		}
	}
	return e
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestAppendAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, []domain.Entry{
		entry(1, "aaaa", domain.EffectAddition, ts),
		entry(2, "bbbb", domain.EffectAddition, ts),
	}))
	require.NoError(t, s.Append(ctx, []domain.Entry{
		entry(3, "aaaa", domain.EffectRetirement, ts.AddDate(1, 0, 0)),
	}))

	entries, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, domain.NID("aaaa"), entries[2].NID)
	assert.Equal(t, domain.EffectRetirement, entries[2].Effect)
	assert.Nil(t, entries[2].State)
	assert.True(t, entries[0].Timestamp.Equal(ts))
	require.NotNil(t, entries[0].State)
	assert.Equal(t, domain.LineString{{X: 0, Y: 0}, {X: 1, Y: 1}}, entries[0].State.Geometry)
}

func TestAppendRejectsStoredSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, []domain.Entry{entry(1, "aaaa", domain.EffectAddition, ts)}))
	assert.Error(t, s.Append(ctx, []domain.Entry{entry(2, "bbbb", domain.EffectAddition, ts), entry(1, "cccc", domain.EffectAddition, ts)}))

	entries, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadIgnoresEntriesAboveHead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, []domain.Entry{entry(1, "aaaa", domain.EffectAddition, ts)}))

	// simulate an interrupted batch: the entry is written, the head is not
	orphan := entry(2, "bbbb", domain.EffectAddition, ts)
	data := []byte(`{"seq":2,"nid":"bbbb","kind":"element","effect":"addition","timestamp":"2022-01-01T00:00:00Z"}`)
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(orphan.Seq), data)
	}))

	entries, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// the sequence number is free to be written again
	require.NoError(t, s.Append(ctx, []domain.Entry{orphan}))
	entries, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetMeta(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.PutMeta(ctx, "last_cycle:nb", "c1"))
	v, err := s.GetMeta(ctx, "last_cycle:nb")
	require.NoError(t, err)
	assert.Equal(t, "c1", v)
}

func TestLoadCancelled(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
