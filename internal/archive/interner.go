package archive

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Keyed values can produce a canonical string over their own content, used
// to hash and compare interned candidates. Two values are the same for
// interning purposes iff their InternKey results are equal.
type Keyed interface {
	InternKey() string
}

// Interner is a process-scoped, content-addressed cache mapping a value to
// a single shared handle. Reads (the common path: the value is already
// interned) take only a read lock; a miss promotes to a write lock to
// insert.
type Interner[T Keyed] struct {
	mu      sync.RWMutex
	buckets map[uint64][]*T
}

// NewInterner creates an empty interner.
func NewInterner[T Keyed]() *Interner[T] {
	return &Interner[T]{buckets: make(map[uint64][]*T)}
}

// Intern returns the existing handle for an equal value if one is present;
// otherwise it stores value and returns a handle to it. The stored value is
// never mutated after insertion.
func (in *Interner[T]) Intern(value T) *T {
	hash := xxhash.Sum64String(value.InternKey())

	in.mu.RLock()
	if existing := find(in.buckets[hash], value); existing != nil {
		in.mu.RUnlock()
		return existing
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()

	// Another writer may have inserted the same value while we waited for
	// the write lock.
	if existing := find(in.buckets[hash], value); existing != nil {
		return existing
	}

	handle := new(T)
	*handle = value
	in.buckets[hash] = append(in.buckets[hash], handle)
	return handle
}

// Clear drops all entries. Subsequent Intern calls begin repopulating.
func (in *Interner[T]) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.buckets = make(map[uint64][]*T)
}

// Len reports the number of distinct interned values, for diagnostics.
func (in *Interner[T]) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()

	n := 0
	for _, bucket := range in.buckets {
		n += len(bucket)
	}
	return n
}

func find[T Keyed](bucket []*T, value T) *T {
	key := value.InternKey()
	for _, candidate := range bucket {
		if (*candidate).InternKey() == key {
			return candidate
		}
	}
	return nil
}

// InternKey implements Keyed for Author. It is built from value fields only
// (never a pointer address), so two JSON author blocks with identical
// content always produce the same key.
func (a Author) InternKey() string {
	avatarKey := "-"
	if a.Avatar != nil {
		avatarKey = a.Avatar.InternKey()
	}

	return fmt.Sprintf(
		"%d|%q|%q|%q|%s|%s|%s|%s|%s",
		a.ID, a.Name, a.URL,
		derefString(a.BioHTML), derefTime(a.DateJoined),
		derefInt32(a.NumBlogPosts), derefInt32(a.NumFollowers), derefInt32(a.NumStories),
		avatarKey,
	)
}

// InternKey implements Keyed for Avatar.
func (av Avatar) InternKey() string {
	return fmt.Sprintf(
		"%q|%q|%q|%q|%q|%q|%q|%q|%q|%q|%q|%q",
		derefString(av.X16), derefString(av.X32), derefString(av.X48), derefString(av.X64),
		derefString(av.X96), derefString(av.X128), derefString(av.X160), derefString(av.X192),
		derefString(av.X256), derefString(av.X320), derefString(av.X384), derefString(av.X512),
	)
}

// InternKey implements Keyed for Tag.
func (t Tag) InternKey() string {
	return fmt.Sprintf("%d|%q|%q|%q|%q", t.ID, t.Name, t.URL, t.Kind, t.LegacyID)
}

func derefString(s *string) string {
	if s == nil {
		return "\x00"
	}
	return *s
}

func derefInt32(n *int32) string {
	if n == nil {
		return "\x00"
	}
	return fmt.Sprintf("%d", *n)
}

func derefTime(t *time.Time) string {
	if t == nil {
		return "\x00"
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Authors and Tags are the process-scoped interner pools; they outlive any
// single Fetcher. ResetInterners drops their contents.
var (
	Authors = NewInterner[Author]()
	Tags    = NewInterner[Tag]()
)

// ResetInterners clears the process-scoped Author and Tag pools.
func ResetInterners() {
	Authors.Clear()
	Tags.Clear()
}
