package tickfsm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameDuration(t *testing.T) {
	tests := []struct {
		fps  int
		want time.Duration
	}{
		{60, 16666666 * time.Nanosecond},
		{30, 33333333 * time.Nanosecond},
		{1, time.Second},
		{0, 0},
		{-5, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FrameDuration(tt.fps), "fps=%d", tt.fps)
	}
}
