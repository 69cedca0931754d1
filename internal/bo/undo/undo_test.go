package undo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParticipant struct {
	level int
}

func (f *fakeParticipant) EditLevel() int { return f.level }
func (f *fakeParticipant) BeginEdit() error {
	f.level++
	return nil
}
func (f *fakeParticipant) CancelEdit() error {
	if f.level > 0 {
		f.level--
	}
	return nil
}
func (f *fakeParticipant) ApplyEdit() error { return f.CancelEdit() }

func TestStack_PushPop(t *testing.T) {
	var s Stack
	assert.Equal(t, 0, s.Level())

	s.Push("one")
	s.Push("two")
	assert.Equal(t, 2, s.Level())

	top, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, "two", top)

	v, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, "two", v)
	assert.Equal(t, 1, s.Level())

	s.Pop()
	_, ok = s.Pop()
	assert.False(t, ok, "pop on empty stack is a no-op")
	assert.Equal(t, 0, s.Level())
}

func TestStack_LevelNeverNegative(t *testing.T) {
	tests := []struct {
		name   string
		pushes int
		pops   int
		want   int
	}{
		{name: "balanced", pushes: 3, pops: 3, want: 0},
		{name: "partial", pushes: 5, pops: 2, want: 3},
		{name: "extra pops", pushes: 2, pops: 4, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Stack
			for i := 0; i < tt.pushes; i++ {
				s.Push(i)
			}
			for i := 0; i < tt.pops; i++ {
				s.Pop()
			}
			assert.Equal(t, tt.want, s.Level())
		})
	}
}

func TestCheckLevel(t *testing.T) {
	p := &fakeParticipant{level: 2}

	assert.NoError(t, CheckLevel("Order", "Lines", p, 2))

	err := CheckLevel("Order", "Lines", p, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLevelMismatch))

	var mismatch *LevelMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Actual)
}

func TestSync(t *testing.T) {
	p := &fakeParticipant{}
	require.NoError(t, Sync("Order", "Line", p, 3))
	assert.Equal(t, 3, p.level)

	err := Sync("Order", "Line", p, 1)
	assert.ErrorIs(t, err, ErrLevelMismatch)
}
