package tickfsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_Empty(t *testing.T) {
	assert.True(t, NoPayload.IsEmpty())
	assert.True(t, NewPayload(nil).IsEmpty())
	assert.Nil(t, NoPayload.Value())
	assert.Equal(t, "none", NoPayload.TypeName())
	assert.Equal(t, "<no payload>", NoPayload.String())
}

func TestPayload_Value(t *testing.T) {
	p := NewPayload(timer{T: 5})

	assert.False(t, p.IsEmpty())
	assert.Equal(t, timer{T: 5}, p.Value())
	assert.Equal(t, "tickfsm.timer", p.TypeName())
	assert.Equal(t, "{5}", p.String())
}

func TestPayloadAs(t *testing.T) {
	got, err := PayloadAs[timer](NewPayload(timer{T: 5}))
	require.NoError(t, err)
	assert.Equal(t, 5, got.T)

	tests := []struct {
		name    string
		payload Payload
		actual  string
	}{
		{"empty", NoPayload, "none"},
		{"other type", NewPayload("five"), "string"},
		{"pointer", NewPayload(&timer{T: 5}), "*tickfsm.timer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PayloadAs[timer](tt.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPayloadMismatch)
			assert.Equal(t, ErrCodePayloadMismatch, GetErrorCode(err))

			var perr *PayloadError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "tickfsm.timer", perr.Expected)
			assert.Equal(t, tt.actual, perr.Actual)
		})
	}
}

func TestPayloadAs_Interface(t *testing.T) {
	var s fmtStringer = NewPayload(3)
	got, err := PayloadAs[fmtStringer](NewPayload(s))
	require.NoError(t, err)
	assert.Equal(t, "3", got.String())
}

type fmtStringer interface {
	String() string
}

func TestMustPayloadAs(t *testing.T) {
	assert.Equal(t, 7, MustPayloadAs[int](NewPayload(7)))
	assert.Panics(t, func() { MustPayloadAs[int](NewPayload("7")) })
}

func TestPayload_Matches(t *testing.T) {
	m := NewMachine("match")
	m.MustAddState("A", RecordingFactory(NewCallLog()), nil)
	m.MustAddState("B", RecordingFactory(NewCallLog()), nil)
	m.MustAddTransition("A", "B", ExpectPayload[fmtStringer]())
	require.NoError(t, m.Activate("A", NoPayload))

	assert.ErrorIs(t, m.FireTransition("B", NewPayload(1)), ErrPayloadMismatch)
	require.NoError(t, m.FireTransition("B", NewPayload(NewPayload(1))))
}
