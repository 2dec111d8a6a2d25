package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_OrderedIDs(t *testing.T) {
	c := Default()

	ids := c.OrderedIDs()
	require.NotEmpty(t, ids)

	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i], "ids must be ascending")
	}
}

func TestDisplayName(t *testing.T) {
	c := Default()

	name, ok := c.DisplayName(6142)
	require.True(t, ok)
	assert.Equal(t, "Skipper license exam", name)

	_, ok = c.DisplayName(9999)
	assert.False(t, ok)
}

func TestFilter(t *testing.T) {
	c := Default()

	tests := []struct {
		name     string
		input    []int64
		expected []int64
	}{
		{
			name:     "unknown ids dropped silently",
			input:    []int64{6142, 9999, 1},
			expected: []int64{6142},
		},
		{
			name:     "duplicates collapse",
			input:    []int64{6140, 6140, 6142},
			expected: []int64{6140, 6142},
		},
		{
			name:     "result in catalog order regardless of input order",
			input:    []int64{6143, 6140},
			expected: []int64{6140, 6143},
		},
		{
			name:     "empty input",
			input:    nil,
			expected: []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Filter(tt.input))
		})
	}
}

func TestOffering(t *testing.T) {
	c := Default()

	off, ok := c.Offering(6140)
	require.True(t, ok)
	assert.Equal(t, int64(6140), off.ID)
	assert.Equal(t, "Passport renewal", off.DisplayName)
}

func TestNew_DuplicateIDsIgnored(t *testing.T) {
	c := New([]Entry{
		{ID: 1, DisplayName: "first"},
		{ID: 1, DisplayName: "second"},
	})

	name, ok := c.DisplayName(1)
	require.True(t, ok)
	assert.Equal(t, "first", name)
	assert.Len(t, c.OrderedIDs(), 1)
}
