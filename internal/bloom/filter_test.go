package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddThenMaybeContains(t *testing.T) {
	assert := assert.New(t)
	f := New(1000, 0.01)

	f.Add([]byte("present"))
	assert.True(f.MaybeContains([]byte("present")))
}

func TestMaybeContainsFalsePositiveRateIsLow(t *testing.T) {
	assert := assert.New(t)
	f := New(1000, 0.01)

	for i := 0; i < 1000; i++ {
		f.Add([]byte(fmt.Sprintf("key-%d", i)))
	}

	falsePositives := 0
	for i := 1000; i < 2000; i++ {
		if f.MaybeContains([]byte(fmt.Sprintf("key-%d", i))) {
			falsePositives++
		}
	}

	// Loose bound: 50 of 1000 probes is five times the configured 1% rate,
	// so the filter would have to be wildly off for this to fail.
	assert.Less(falsePositives, 50)
}

func TestReset(t *testing.T) {
	assert := assert.New(t)
	f := New(100, 0.01)

	f.Add([]byte("k"))
	assert.True(f.MaybeContains([]byte("k")))

	f.Reset()
	assert.False(f.MaybeContains([]byte("k")))
}

func TestNewHandlesDegenerateInputs(t *testing.T) {
	assert := assert.New(t)
	f := New(0, 0)
	assert.NotNil(f)
	f.Add([]byte("x"))
	assert.True(f.MaybeContains([]byte("x")))
}
