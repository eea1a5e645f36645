package seqnum

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAhead(t *testing.T) {
	tests := []struct {
		name string
		a, b Number
		bits uint
		want bool
	}{
		{"equal", 5, 5, DefaultToleranceBits, false},
		{"one ahead", 6, 5, DefaultToleranceBits, true},
		{"one behind", 5, 6, DefaultToleranceBits, false},
		{"across wrap", 2, math.MaxUint32 - 1, DefaultToleranceBits, true},
		{"behind across wrap", math.MaxUint32 - 1, 2, DefaultToleranceBits, false},
		{"at tolerance edge", 1 << 30, 0, DefaultToleranceBits, true},
		{"past tolerance edge", 1<<30 + 1, 0, DefaultToleranceBits, false},
		{"full space half", 1 << 31, 0, SpaceBits, true},
		{"full space past half", 1<<31 + 1, 0, SpaceBits, false},
		{"narrow tolerance", 9, 0, 4, false},
		{"narrow tolerance edge", 8, 0, 4, true},
		{"zero bits clamps to one", 1, 0, 0, true},
		{"zero bits clamps to one, distance two", 2, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAhead(tt.a, tt.b, tt.bits))
		})
	}
}

func TestIsAheadIrreflexive(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		a := Number(rng.Uint32())
		for bits := uint(1); bits <= SpaceBits; bits++ {
			assert.False(t, IsAhead(a, a, bits), "a=%d bits=%d", a, bits)
		}
	}
}

func TestIsAheadAntisymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 10000; i++ {
		bits := uint(rng.Intn(SpaceBits-1) + 1)
		half := HalfWindow(bits)
		b := Number(rng.Uint32())
		// d in (0, half], strictly inside the unambiguous region
		d := uint32(rng.Int63n(int64(half))) + 1
		a := Add(b, d)

		ahead := IsAhead(a, b, bits)
		behind := IsAhead(b, a, bits)
		assert.True(t, ahead != behind, "a=%d b=%d bits=%d", a, b, bits)
		assert.True(t, ahead)
	}
}

func TestIsAheadHalfRangeBoundary(t *testing.T) {
	// with the full 32-bit tolerance both directions are ahead at exactly 2^31
	assert.True(t, IsAhead(1<<31, 0, SpaceBits))
	assert.True(t, IsAhead(0, 1<<31, SpaceBits))
}

func TestDistanceAndAdd(t *testing.T) {
	assert.Equal(t, uint32(0), Distance(7, 7))
	assert.Equal(t, uint32(3), Distance(7, 10))
	assert.Equal(t, uint32(5), Distance(math.MaxUint32-1, 3))
	assert.Equal(t, uint32(math.MaxUint32), Distance(10, 9))

	assert.Equal(t, Number(3), Add(math.MaxUint32-1, 5))
	assert.Equal(t, Number(1005), Add(1000, 5))
}

func TestInWindow(t *testing.T) {
	first := Number(math.MaxUint32 - 3)
	for i := uint32(0); i < 8; i++ {
		assert.True(t, InWindow(Add(first, i), first, 8))
	}
	assert.False(t, InWindow(Add(first, 8), first, 8))
	assert.False(t, InWindow(first-1, first, 8))
	assert.False(t, InWindow(5, 5, 0))
}

func TestHalfWindowClamp(t *testing.T) {
	assert.Equal(t, uint64(1), HalfWindow(0))
	assert.Equal(t, uint64(1)<<30, HalfWindow(DefaultToleranceBits))
	assert.Equal(t, uint64(1)<<31, HalfWindow(SpaceBits))
	assert.Equal(t, uint64(1)<<31, HalfWindow(64))
}
