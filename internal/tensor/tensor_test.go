package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_NumElements(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, Shape{1, 3, 32, 32}.Validate())
	assert.Error(t, Shape{2, 0}.Validate())
	assert.Error(t, Shape{-1}.Validate())
}

func TestNew_RejectsMismatchedData(t *testing.T) {
	_, err := New(Shape{2, 2}, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestView_SharesStorage(t *testing.T) {
	x := MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	v := x.View(3, 2)

	assert.True(t, v.Shape().Equal(Shape{3, 2}))
	v.Data()[0] = 42
	assert.Equal(t, 42.0, x.Data()[0])
}

func TestView_PanicsOnWrongSize(t *testing.T) {
	x := Zeros(Shape{2, 3})
	assert.Panics(t, func() { x.View(4, 2) })
}

func TestClone_IsIndependent(t *testing.T) {
	x := Full(Shape{3}, 1.5)
	c := x.Clone()
	c.Data()[1] = 0

	assert.Equal(t, []float64{1.5, 1.5, 1.5}, x.Data())
}

func TestCopyFrom(t *testing.T) {
	dst := Zeros(Shape{2})
	require.NoError(t, dst.CopyFrom(MustFromSlice([]float64{7, 8}, Shape{2})))
	assert.Equal(t, []float64{7, 8}, dst.Data())

	assert.Error(t, dst.CopyFrom(Zeros(Shape{3})))
}

func TestUniform_Range(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := Uniform(Shape{1000}, -0.5, 0.5, rng)
	for _, v := range x.Data() {
		assert.GreaterOrEqual(t, v, -0.5)
		assert.Less(t, v, 0.5)
	}
}

func TestTo(t *testing.T) {
	x := Zeros(Shape{1})
	moved, err := x.To(CPU)
	require.NoError(t, err)
	assert.Same(t, x, moved)

	_, err = x.To(CUDA)
	assert.Error(t, err)
}

func TestParseDevice(t *testing.T) {
	d, err := ParseDevice("CPU")
	require.NoError(t, err)
	assert.Equal(t, CPU, d)

	d, err = ParseDevice("gpu")
	require.NoError(t, err)
	assert.Equal(t, CUDA, d)

	_, err = ParseDevice("tpu")
	assert.Error(t, err)
}
