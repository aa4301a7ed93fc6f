// Package syncvalue - a value of any type guarded for concurrent use.
package syncvalue

import "sync"

// Value - allow storing and loading of values while guarding against race conditions.
// The zero Value holds the zero T.
type Value[T any] struct {
	mu    sync.RWMutex
	value T
}

// Load - loads current value.
func (l *Value[T]) Load() T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value
}

// Store - stores new value.
func (l *Value[T]) Store(v T) {
	l.mu.Lock()
	l.value = v
	l.mu.Unlock()
}

// Swap - stores v and returns the previous value.
func (l *Value[T]) Swap(v T) (old T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	old, l.value = l.value, v
	return old
}
