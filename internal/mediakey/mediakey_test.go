package mediakey

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		key      Type
		expected string
	}{
		{Unknown, "UNKNOWN"},
		{Stop, "STOP"},
		{Play, "PLAY"},
		{Pause, "PAUSE"},
		{Previous, "PREVIOUS"},
		{Next, "NEXT"},
		{VolumeLower, "VOLUME_LOWER"},
		{VolumeHigher, "VOLUME_HIGHER"},
		{Type(42), "UNKNOWN"},
		{Type(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.key.String())
		})
	}
}

func TestIntegerProjection(t *testing.T) {
	// External consumers depend on these values
	assert.Equal(t, 0, int(Unknown))
	assert.Equal(t, 1, int(Stop))
	assert.Equal(t, 2, int(Play))
	assert.Equal(t, 3, int(Pause))
	assert.Equal(t, 4, int(Previous))
	assert.Equal(t, 5, int(Next))
	assert.Equal(t, 6, int(VolumeLower))
	assert.Equal(t, 7, int(VolumeHigher))
}

func TestValid(t *testing.T) {
	for _, k := range All() {
		assert.True(t, k.Valid(), k.String())
	}
	assert.True(t, Unknown.Valid())
	assert.False(t, Type(8).Valid())
	assert.False(t, Type(-3).Valid())
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Type
	}{
		{"play", Play},
		{"PLAY", Play},
		{" Pause ", Pause},
		{"prev", Previous},
		{"previous", Previous},
		{"next", Next},
		{"stop", Stop},
		{"volume_lower", VolumeLower},
		{"volume-higher", VolumeHigher},
		{"vol-down", VolumeLower},
		{"volup", VolumeHigher},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	t.Run("rejects unknown names", func(t *testing.T) {
		got, err := Parse("fastforward")
		assert.True(t, errors.Is(err, ErrUnknownKey))
		assert.Equal(t, Unknown, got)

		_, err = Parse("unknown")
		assert.Error(t, err)
	})
}
