package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nvdiff/internal/domain"
)

const (
	add     = domain.EffectAddition
	retire  = domain.EffectRetirement
	geom    = domain.EffectGeometricModification
	descr   = domain.EffectDescriptiveModification
	confirm = domain.EffectConfirmation
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		effects []domain.Effect
		want    domain.Effect
	}{
		{"descriptive outranks confirmation", []domain.Effect{confirm, descr, confirm}, descr},
		{"all confirmed", []domain.Effect{confirm, confirm}, confirm},
		{"addition wins", []domain.Effect{confirm, add, descr}, add},
		{"geometric outranks descriptive", []domain.Effect{descr, geom}, geom},
		{"all retired", []domain.Effect{retire, retire}, retire},
		{"partial retirement is lost extent", []domain.Effect{confirm, retire}, geom},
		{"partial retirement does not hide addition", []domain.Effect{add, retire}, add},
		{"single segment", []domain.Effect{descr}, descr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.effects)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("empty input", func(t *testing.T) {
		_, err := Resolve(nil)
		assert.ErrorIs(t, err, ErrNoSegments)
	})

	t.Run("unknown effect", func(t *testing.T) {
		_, err := Resolve([]domain.Effect{"deleted"})
		assert.Error(t, err)
	})
}

func TestResolveElement(t *testing.T) {
	segs := []domain.Segment{
		{Index: 0, NID: "aaaa", Effect: confirm},
		{Index: 1, NID: "aaaa", Effect: descr},
		{Index: 2, NID: "aaaa", Effect: confirm},
	}
	nid, effect, err := ResolveElement(segs)
	require.NoError(t, err)
	assert.Equal(t, domain.NID("aaaa"), nid)
	assert.Equal(t, descr, effect)

	segs[1].NID = "bbbb"
	_, _, err = ResolveElement(segs)
	assert.Error(t, err)

	_, _, err = ResolveElement(nil)
	assert.ErrorIs(t, err, ErrNoSegments)
}

func TestMax(t *testing.T) {
	assert.Equal(t, geom, Max(descr, geom))
	assert.Equal(t, add, Max(add, confirm))
	assert.Equal(t, confirm, Max("", confirm))
	assert.Equal(t, confirm, Max(confirm, ""))
}
