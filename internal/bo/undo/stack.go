// Package undo implements n-level undo: a stack of snapshots per instance and
// the recursive begin/cancel/apply protocol used across an object graph.
package undo

// Stack is an ordered sequence of snapshots, one per open edit scope.
// Its depth is the edit level of the owning object.
type Stack struct {
	frames []interface{}
}

// Push opens a new edit level holding snapshot
func (s *Stack) Push(snapshot interface{}) {
	s.frames = append(s.frames, snapshot)
}

// Pop removes the top snapshot. It reports false on an empty stack.
func (s *Stack) Pop() (interface{}, bool) {
	if len(s.frames) == 0 {
		return nil, false
	}
	top := s.frames[len(s.frames)-1]
	s.frames[len(s.frames)-1] = nil
	s.frames = s.frames[:len(s.frames)-1]
	return top, true
}

// Peek returns the top snapshot without removing it
func (s *Stack) Peek() (interface{}, bool) {
	if len(s.frames) == 0 {
		return nil, false
	}
	return s.frames[len(s.frames)-1], true
}

// Level returns the current edit level
func (s *Stack) Level() int {
	return len(s.frames)
}

// Reset drops every snapshot
func (s *Stack) Reset() {
	s.frames = nil
}
