package batch

import (
	"fmt"
	"slices"
	"sync"
)

// List is the ordered, duplicate-free set of input paths.
// Order is both display order and processing order.
type List struct {
	mu    sync.RWMutex
	files []string
}

// NewList creates a list holding paths, skipping duplicates.
func NewList(paths ...string) *List {
	l := &List{}
	l.Add(paths...)
	return l
}

// Add appends paths that are not already present and returns the ones added.
func (l *List) Add(paths ...string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var added []string
	for _, p := range paths {
		if p == "" || slices.Contains(l.files, p) {
			continue
		}
		l.files = append(l.files, p)
		added = append(added, p)
	}
	return added
}

// Remove drops the path at index i and returns it.
func (l *List) Remove(i int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(i); err != nil {
		return "", err
	}
	p := l.files[i]
	l.files = slices.Delete(l.files, i, i+1)
	return p, nil
}

// Clear empties the list and returns what it held.
func (l *List) Clear() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	old := l.files
	l.files = nil
	return old
}

// MoveUp swaps the path at i with its predecessor. Moving the first entry is a no-op.
func (l *List) MoveUp(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(i); err != nil {
		return err
	}
	if i > 0 {
		l.files[i-1], l.files[i] = l.files[i], l.files[i-1]
	}
	return nil
}

// MoveDown swaps the path at i with its successor. Moving the last entry is a no-op.
func (l *List) MoveDown(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(i); err != nil {
		return err
	}
	if i < len(l.files)-1 {
		l.files[i+1], l.files[i] = l.files[i], l.files[i+1]
	}
	return nil
}

// At returns the path at index i.
func (l *List) At(i int) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.check(i); err != nil {
		return "", err
	}
	return l.files[i], nil
}

// Files returns a copy of the paths in order.
func (l *List) Files() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.files)
}

// Len returns the number of paths.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.files)
}

// check must be called with mu held.
func (l *List) check(i int) error {
	if i < 0 || i >= len(l.files) {
		return fmt.Errorf("%w: %d (have %d files)", ErrIndexOutOfRange, i, len(l.files))
	}
	return nil
}
