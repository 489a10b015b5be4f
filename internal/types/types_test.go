package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoveryKeyCompare(t *testing.T) {
	testCases := []struct {
		name string
		a, b DiscoveryKey
		want int
	}{
		{"seed before child", DiscoveryKey{}, DiscoveryKey{0}, -1},
		{"equal", DiscoveryKey{1, 2}, DiscoveryKey{1, 2}, 0},
		{"shallower wins over smaller index", DiscoveryKey{9}, DiscoveryKey{0, 0}, -1},
		{"same depth compares indexes", DiscoveryKey{0, 3}, DiscoveryKey{0, 1}, 1},
		{"nil is the seed", nil, DiscoveryKey{}, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Compare(tc.b))
			assert.Equal(t, -tc.want, tc.b.Compare(tc.a))
		})
	}
}

func TestDiscoveryKeyChildDoesNotAlias(t *testing.T) {
	parent := make(DiscoveryKey, 1, 4)
	a := parent.Child(0)
	b := parent.Child(1)

	assert.Equal(t, DiscoveryKey{0, 0}, a)
	assert.Equal(t, DiscoveryKey{0, 1}, b)
	assert.Equal(t, DiscoveryKey{0}, parent)
}
