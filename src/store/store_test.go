package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/finboard/backend/src/database"
	"github.com/username/finboard/backend/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Init(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestPutGetRoundtrip(t *testing.T) {
	s := newTestStore(t)

	type payload struct {
		Name  string  `json:"name"`
		Count int     `json:"count"`
		Ratio float64 `json:"ratio"`
	}

	require.NoError(t, s.Put("k1", payload{Name: "alpha", Count: 3, Ratio: 0.5}))

	var got payload
	require.NoError(t, s.Get("k1", &got))
	assert.Equal(t, payload{Name: "alpha", Count: 3, Ratio: 0.5}, got)
}

func TestPutOverwrites(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("k1", "first"))
	require.NoError(t, s.Put("k1", "second"))

	var got string
	require.NoError(t, s.Get("k1", &got))
	assert.Equal(t, "second", got)
}

func TestGetMissingKey(t *testing.T) {
	s := newTestStore(t)
	var got string
	assert.ErrorIs(t, s.Get("absent", &got), ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("k1", "v"))
	require.NoError(t, s.Delete("k1"))
	require.NoError(t, s.Delete("k1"))

	var got string
	assert.ErrorIs(t, s.Get("k1", &got), ErrNotFound)
}

func TestKeysByPrefix(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("a::b::1", 1))
	require.NoError(t, s.Put("a::b::2", 2))
	require.NoError(t, s.Put("a::c::1", 3))

	keys, err := s.Keys("a::b::")
	require.NoError(t, err)
	assert.Equal(t, []string{"a::b::1", "a::b::2"}, keys)
}

func TestKeysEscapesLikeMetacharacters(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("x%y::1", 1))
	require.NoError(t, s.Put("xAy::1", 2))
	require.NoError(t, s.Put("x_y::1", 3))

	// '%' and '_' in the prefix must match literally, not as wildcards.
	keys, err := s.Keys("x%y")
	require.NoError(t, err)
	assert.Equal(t, []string{"x%y::1"}, keys)

	keys, err = s.Keys("x_y")
	require.NoError(t, err)
	assert.Equal(t, []string{"x_y::1"}, keys)
}

func TestDeleteByPrefix(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("a::b::1", 1))
	require.NoError(t, s.Put("a::b::2", 2))
	require.NoError(t, s.Put("a::c::1", 3))

	require.NoError(t, s.DeleteByPrefix("a::b::"))

	keys, err := s.Keys("a::")
	require.NoError(t, err)
	assert.Equal(t, []string{"a::c::1"}, keys)
}
