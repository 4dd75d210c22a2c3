// internal/gallery/gallery.go

// Package gallery maintains the ordered collection of stored product images
// and the primary-image designation handed to the product form.
package gallery

import (
	"errors"
	"fmt"
	"sync"

	"github.com/merchware/media-ingest/internal/deliver"
	"github.com/merchware/media-ingest/internal/upload"
)

// ErrFull is returned when an append would exceed the configured capacity.
var ErrFull = errors.New("gallery is full")

// DefaultMaxItems caps how many images one product carries.
const DefaultMaxItems = 10

// Item pairs a stored asset with its derived delivery URLs. Items exist only
// after a successful upload task, one per descriptor.
type Item struct {
	TaskID     string                 `json:"task_id"`
	Descriptor upload.AssetDescriptor `json:"descriptor"`
	URLs       deliver.URLSet         `json:"urls"`
}

// State is a point-in-time copy of the gallery, safe to hand to callers.
type State struct {
	Items        []Item `json:"items"`
	PrimaryIndex int    `json:"primary_index"`
}

// Gallery owns the item order and primary index. All operations are
// synchronous and keep the invariants: primary index always points inside a
// non-empty item list and resets to 0 when the list empties.
type Gallery struct {
	mu       sync.Mutex
	maxItems int
	items    []Item
	primary  int
}

// New returns an empty gallery holding at most maxItems entries;
// maxItems <= 0 selects DefaultMaxItems.
func New(maxItems int) *Gallery {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Gallery{maxItems: maxItems}
}

func (g *Gallery) MaxItems() int { return g.maxItems }

// Len returns the current item count.
func (g *Gallery) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.items)
}

// Snapshot copies the current state.
func (g *Gallery) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked()
}

// Append adds the item at the end. The first item becomes primary.
func (g *Gallery) Append(item Item) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.items) >= g.maxItems {
		return g.stateLocked(), ErrFull
	}
	g.items = append(g.items, item)
	if len(g.items) == 1 {
		g.primary = 0
	}
	return g.stateLocked(), nil
}

// Remove drops the item at index i and renumbers the primary index:
// unchanged when i is past it, decremented when i precedes it, reset to 0
// when the primary itself goes.
func (g *Gallery) Remove(i int) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i < 0 || i >= len(g.items) {
		return g.stateLocked(), fmt.Errorf("remove index %d out of range [0,%d)", i, len(g.items))
	}
	g.items = append(g.items[:i], g.items[i+1:]...)
	switch {
	case len(g.items) == 0:
		g.primary = 0
	case i == g.primary:
		g.primary = 0
	case i < g.primary:
		g.primary--
	}
	return g.stateLocked(), nil
}

// Move relocates the item at from to position to, preserving the relative
// order of everything else. The primary index follows the item it pointed at,
// not the numeric position.
func (g *Gallery) Move(from, to int) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.items)
	if from < 0 || from >= n {
		return g.stateLocked(), fmt.Errorf("move source index %d out of range [0,%d)", from, n)
	}
	if to < 0 || to >= n {
		return g.stateLocked(), fmt.Errorf("move target index %d out of range [0,%d)", to, n)
	}
	if from == to {
		return g.stateLocked(), nil
	}

	item := g.items[from]
	rest := append(g.items[:from:from], g.items[from+1:]...)
	g.items = append(rest[:to:to], append([]Item{item}, rest[to:]...)...)

	switch {
	case g.primary == from:
		g.primary = to
	case from < g.primary && to >= g.primary:
		g.primary--
	case from > g.primary && to <= g.primary:
		g.primary++
	}
	return g.stateLocked(), nil
}

// SetPrimary designates the item at index i as the featured image.
func (g *Gallery) SetPrimary(i int) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i < 0 || i >= len(g.items) {
		return g.stateLocked(), fmt.Errorf("primary index %d out of range [0,%d)", i, len(g.items))
	}
	g.primary = i
	return g.stateLocked(), nil
}

func (g *Gallery) stateLocked() State {
	items := make([]Item, len(g.items))
	copy(items, g.items)
	return State{Items: items, PrimaryIndex: g.primary}
}
