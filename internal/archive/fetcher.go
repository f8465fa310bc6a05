package archive

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/jocketf/storyquery/internal/applog"
	"github.com/jocketf/storyquery/internal/storyerrors"
)

const indexEntryName = "index.json"

// Fetcher is the public contract over a sorted story table and a container
// reader. It is safe for concurrent use by many goroutines.
type Fetcher struct {
	container *Container
	file      *os.File
	index     []*Story
	identity  string
}

// Open loads the container at path: it opens the ZIP-style container,
// decodes its index.json metadata index with LoadIndex, and returns a
// ready-to-query Fetcher.
func Open(path string) (*Fetcher, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storyerrors.NewArchiveError("open archive", fmt.Errorf("file not found: %s", path))
		}
		return nil, storyerrors.NewArchiveError("open archive", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, storyerrors.NewArchiveError("open archive", err)
	}

	fetcher, err := openContainer(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	fetcher.file = f
	return fetcher, nil
}

func openContainer(r *os.File, size int64) (*Fetcher, error) {
	container, err := OpenContainer(r, size)
	if err != nil {
		return nil, err
	}

	if !container.HasEntry(indexEntryName) {
		return nil, storyerrors.NewArchiveError("open archive", fmt.Errorf("missing story index"))
	}

	crc, err := container.CRCOf(indexEntryName)
	if err != nil {
		return nil, err
	}

	indexBytes, err := container.ReadEntry(indexEntryName)
	if err != nil {
		return nil, storyerrors.NewArchiveError("open archive", fmt.Errorf("could not open story index: %w", err))
	}

	stories, err := LoadIndex(bytes.NewReader(indexBytes), LoaderOptions{})
	if err != nil {
		return nil, err
	}

	return &Fetcher{
		container: container,
		index:     stories,
		identity:  strconv.FormatUint(uint64(crc), 10),
	}, nil
}

// Close releases the underlying file handle, if any.
func (ft *Fetcher) Close() error {
	if ft.file != nil {
		return ft.file.Close()
	}
	return nil
}

// Len reports the number of stories in the table.
func (ft *Fetcher) Len() int { return len(ft.index) }

// Iter returns the story table in id-ascending order. The slice must not
// be mutated by callers.
func (ft *Fetcher) Iter() []*Story { return ft.index }

// Fetch performs an O(log n) binary search for the story with the given
// id, returning nil if absent.
func (ft *Fetcher) Fetch(id int32) *Story {
	i := sort.Search(len(ft.index), func(i int) bool { return ft.index[i].ID >= id })
	if i < len(ft.index) && ft.index[i].ID == id {
		return ft.index[i]
	}
	return nil
}

// Read returns the byte contents of story's payload package.
func (ft *Fetcher) Read(story *Story) ([]byte, error) {
	data, err := ft.container.ReadEntry(story.Archive.Path)
	if err != nil {
		return nil, storyerrors.NewArchiveError("read story payload", err)
	}
	return data, nil
}

// OpenPayload reads story's payload package fully into memory and opens it
// as a nested ZIP-style Container.
func (ft *Fetcher) OpenPayload(story *Story) (*Container, error) {
	data, err := ft.Read(story)
	if err != nil {
		return nil, err
	}
	return OpenContainer(bytes.NewReader(data), int64(len(data)))
}

// Identity returns the stable container tag: the decimal 32-bit CRC of the
// embedded index entry.
func (ft *Fetcher) Identity() string { return ft.identity }

// Predicate is a thread-safe Story filter, reentrant across goroutines.
type Predicate func(*Story) bool

// Filter evaluates pred against the table in parallel and returns matches
// in id-ascending order. The table is split up front into one contiguous
// chunk per goroutine, with at most GOMAXPROCS goroutines; a goroutine that
// finishes early does not take over work from the others.
func (ft *Fetcher) Filter(pred Predicate) []*Story {
	n := len(ft.index)
	if n == 0 {
		return nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	chunk := (n + workers - 1) / workers
	results := make([][]*Story, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			var matches []*Story
			for _, story := range ft.index[start:end] {
				if pred(story) {
					matches = append(matches, story)
				}
			}
			results[w] = matches
		}(w, start, end)
	}
	wg.Wait()

	out := make([]*Story, 0, n)
	for _, part := range results {
		out = append(out, part...)
	}
	return out
}

// ParIter invokes fn for every story in the table in parallel, using a
// pool sized to GOMAXPROCS. Order of invocation is unspecified.
func (ft *Fetcher) ParIter(fn func(*Story)) {
	n := len(ft.index)
	if n == 0 {
		return
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for _, story := range ft.index[start:end] {
				fn(story)
			}
		}(start, end)
	}
	wg.Wait()

	applog.Debugf("fetcher", "par_iter visited %d stories with %d workers", n, workers)
}
