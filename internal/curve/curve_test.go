package curve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateClampsDomain(t *testing.T) {
	c := Linear(0, 2, 1, 4)

	assert.Equal(t, 2.0, c.Evaluate(-5))
	assert.Equal(t, 4.0, c.Evaluate(5))
	assert.Equal(t, 2.0, c.Evaluate(math.NaN()))
	assert.InDelta(t, 3.0, c.Evaluate(0.5), 1e-12)
}

func TestEvaluateModes(t *testing.T) {
	keys := []Key{{Time: 0, Value: 0}, {Time: 1, Value: 10}}

	t.Run("Linear", func(t *testing.T) {
		c := New(ModeLinear, keys...)
		assert.InDelta(t, 2.5, c.Evaluate(0.25), 1e-12)
	})

	t.Run("Smooth", func(t *testing.T) {
		c := New(ModeSmooth, keys...)
		// smoothstep(0.25) = 0.15625
		assert.InDelta(t, 1.5625, c.Evaluate(0.25), 1e-12)
		assert.InDelta(t, 5.0, c.Evaluate(0.5), 1e-12)
	})

	t.Run("Constant", func(t *testing.T) {
		c := New(ModeConstant, keys...)
		assert.Equal(t, 0.0, c.Evaluate(0.99))
		assert.Equal(t, 10.0, c.Evaluate(1))
	})

	t.Run("HermiteWithLinearTangentsIsLinear", func(t *testing.T) {
		c := New(ModeHermite,
			Key{Time: 0, Value: 0, OutTangent: 10},
			Key{Time: 1, Value: 10, InTangent: 10},
		)
		for _, x := range []float64{0.1, 0.33, 0.5, 0.9} {
			assert.InDelta(t, 10*x, c.Evaluate(x), 1e-9)
		}
	})

	t.Run("HermiteFlatTangentsEase", func(t *testing.T) {
		c := New(ModeHermite, keys...)
		assert.InDelta(t, 5.0, c.Evaluate(0.5), 1e-12)
		assert.Less(t, c.Evaluate(0.1), 1.0)
	})
}

func TestNewSortsKeys(t *testing.T) {
	c := New(ModeLinear,
		Key{Time: 1, Value: 1},
		Key{Time: math.NaN(), Value: 99},
		Key{Time: 0, Value: 0},
		Key{Time: 0.5, Value: 3},
	)
	assert.Equal(t, 3, c.Len())
	lo, hi := c.Domain()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
	assert.InDelta(t, 3.0, c.Evaluate(0.5), 1e-12)
	assert.InDelta(t, 2.0, c.Evaluate(0.75), 1e-12)
}

func TestDegenerateCurves(t *testing.T) {
	var empty Curve
	assert.Equal(t, 0.0, empty.Evaluate(0.3))

	single := New(ModeSmooth, Key{Time: 0.4, Value: 7})
	assert.Equal(t, 7.0, single.Evaluate(0))
	assert.Equal(t, 7.0, single.Evaluate(1))

	assert.Equal(t, 0.8, Flat(0.8).Evaluate(0.37))
}

func TestBell(t *testing.T) {
	b := Bell()
	assert.Equal(t, 0.0, b.Evaluate(0))
	assert.Equal(t, 1.0, b.Evaluate(0.5))
	assert.Equal(t, 0.0, b.Evaluate(1))
	assert.Greater(t, b.Evaluate(0.02), 0.0)
}

func TestKeysIsACopy(t *testing.T) {
	c := Linear(0, 0, 1, 1)
	ks := c.Keys()
	ks[0].Value = 42
	assert.Equal(t, 0.0, c.Evaluate(0))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeLinear, ParseMode("Linear"))
	assert.Equal(t, ModeHermite, ParseMode("hermite"))
	assert.Equal(t, ModeConstant, ParseMode("step"))
	assert.Equal(t, ModeSmooth, ParseMode(""))
	assert.Equal(t, "constant", ModeConstant.String())
}
