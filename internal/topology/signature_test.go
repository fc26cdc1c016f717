package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nvdiff/internal/domain"
)

func identity(k string) (string, bool) {
	return k, true
}

func TestLinkSignature(t *testing.T) {
	t.Run("orientation independent", func(t *testing.T) {
		fwd, err := Build([]domain.LinearElement{
			line("x", p(0, 0), p(1, 0)),
			line("l", p(-1, 0), p(0, 0)),
			line("r", p(1, 0), p(2, 0)),
		}, nil, tol)
		require.NoError(t, err)
		rev, err := Build([]domain.LinearElement{
			line("x", p(1, 0), p(0, 0)),
			line("l", p(-1, 0), p(0, 0)),
			line("r", p(1, 0), p(2, 0)),
		}, nil, tol)
		require.NoError(t, err)

		a, err := fwd.LinkSignature("x", identity)
		require.NoError(t, err)
		b, err := rev.LinkSignature("x", identity)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, string(a), 64)
	})

	t.Run("reshaping keeps the signature", func(t *testing.T) {
		before, err := Build([]domain.LinearElement{
			line("x", p(0, 0), p(1, 0)),
			line("l", p(-1, 0), p(0, 0)),
		}, nil, tol)
		require.NoError(t, err)
		after, err := Build([]domain.LinearElement{
			line("x", p(0, 0), p(0.5, 0.5), p(1, 0)),
			line("l", p(-1, 0), p(0, 0)),
		}, nil, tol)
		require.NoError(t, err)

		a, _ := before.LinkSignature("x", identity)
		b, _ := after.LinkSignature("x", identity)
		assert.Equal(t, a, b)
	})

	t.Run("new connection changes the signature", func(t *testing.T) {
		before := star(t)
		after, err := Build([]domain.LinearElement{
			line("a", p(0, 0), p(1, 0)),
			line("b", p(0, 0), p(0, 1)),
			line("c", p(-1, 0), p(0, 0)),
			line("d", p(1, 0), p(2, 0)),
		}, nil, tol)
		require.NoError(t, err)

		a, _ := before.LinkSignature("a", identity)
		b, _ := after.LinkSignature("a", identity)
		assert.NotEqual(t, a, b)
	})

	t.Run("unidentified neighbor is ambiguous", func(t *testing.T) {
		n := star(t)
		_, err := n.LinkSignature("a", func(k string) (string, bool) {
			return k, k != "b"
		})
		assert.ErrorIs(t, err, domain.ErrAmbiguousCorrespondence)
	})

	t.Run("isolated element", func(t *testing.T) {
		n, err := Build([]domain.LinearElement{line("a", p(0, 0), p(1, 0))}, nil, tol)
		require.NoError(t, err)
		_, err = n.LinkSignature("a", func(string) (string, bool) { return "", false })
		assert.NoError(t, err)
	})

	t.Run("unknown element", func(t *testing.T) {
		n := star(t)
		_, err := n.LinkSignature("zz", identity)
		assert.Error(t, err)
	})
}
