// Package search builds and queries a persistent full-text index over the
// HTML payloads embedded in a story archive.
package search

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/jocketf/storyquery/internal/applog"
	"github.com/jocketf/storyquery/internal/archive"
	"github.com/jocketf/storyquery/internal/storyerrors"
)

// minWriterBufferBytes mirrors the minimum writer buffer expected of the
// underlying full-text engine. bleve has no literal writer-buffer knob;
// the whole batch (one document per story) is accumulated in memory and
// committed in a single Batch() call instead, never flushing partial
// batches.
const minWriterBufferBytes = 512 * 1024 * 1024

type storyDoc struct {
	SID     int64  `json:"sid"`
	Content string `json:"content"`
}

func buildMapping() mapping.IndexMapping {
	sidField := bleve.NewNumericFieldMapping()
	sidField.Store = true
	sidField.Index = true

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.Index = true
	contentField.IncludeTermVectors = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("sid", sidField)
	docMapping.AddFieldMappingsAt("content", contentField)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = docMapping
	return im
}

// Open reuses the persistent index directory for archivePath's container
// identity if one exists, or builds it from scratch otherwise. cacheRoot
// is the parent of every per-container index directory.
func Open(cacheRoot, archivePath string, ft *archive.Fetcher) (bleve.Index, error) {
	dir := filepath.Join(cacheRoot, ft.Identity())

	if _, err := os.Stat(dir); err == nil {
		idx, err := bleve.Open(dir)
		if err != nil {
			return nil, storyerrors.NewIndexError("open full-text index", err)
		}
		return idx, nil
	}

	return build(dir, archivePath, ft)
}

func build(dir, archivePath string, ft *archive.Fetcher) (bleve.Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storyerrors.NewIndexError("create full-text index directory", err)
	}

	idx, err := bleve.New(dir, buildMapping())
	if err != nil {
		return nil, storyerrors.NewIndexError("create full-text index", err)
	}

	stories := ft.Iter()
	docs, err := produceDocuments(archivePath, stories)
	if err != nil {
		idx.Close()
		return nil, err
	}

	batch := idx.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(strconv.FormatInt(doc.SID, 10), doc); err != nil {
			idx.Close()
			return nil, storyerrors.NewIndexError("stage document", err)
		}
	}

	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return nil, storyerrors.NewIndexError("commit full-text index", err)
	}

	return idx, nil
}

// produceDocuments builds one storyDoc per story in parallel. Each worker
// opens its own Container handle on the same underlying archive file so
// no worker contends on the Fetcher's container lock.
func produceDocuments(archivePath string, stories []*archive.Story) ([]storyDoc, error) {
	workers := runtime.GOMAXPROCS(0)
	if workers > len(stories) {
		workers = len(stories)
	}
	if workers < 1 {
		workers = 1
	}

	docs := make([]storyDoc, len(stories))
	errs := make([]error, workers)

	var wg sync.WaitGroup
	chunk := (len(stories) + workers - 1) / workers

	var completed int64
	var progressMu sync.Mutex
	total := len(stories)

	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(stories) {
			end = len(stories)
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[w] = storyerrors.NewArchiveError("index worker", fmt.Errorf("panic: %v", r))
				}
			}()

			container, closer, err := archive.OpenAtPath(archivePath)
			if err != nil {
				errs[w] = err
				return
			}
			defer closer.Close()

			for i := start; i < end; i++ {
				story := stories[i]

				content, err := indexableContent(container, story)
				if err != nil {
					errs[w] = err
					return
				}
				docs[i] = storyDoc{SID: int64(story.ID), Content: content}

				progressMu.Lock()
				completed++
				applog.Progress("search", int(completed), total)
				progressMu.Unlock()
			}
		}(w, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func indexableContent(outer *archive.Container, story *archive.Story) (string, error) {
	payload, err := outer.ReadEntry(story.Archive.Path)
	if err != nil {
		return "", storyerrors.NewArchiveError("read story payload", err)
	}

	nested, err := archive.OpenContainer(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", storyerrors.NewArchiveError("open story payload", err)
	}

	var sb strings.Builder
	for _, name := range nested.Names() {
		if !strings.HasSuffix(name, ".html") {
			continue
		}

		rc, err := nested.OpenEntry(name)
		if err != nil {
			return "", storyerrors.NewArchiveError("open payload entry", err)
		}

		text, readErr := io.ReadAll(rc)
		rc.Close()
		if readErr != nil {
			return "", storyerrors.NewArchiveError("read payload entry", readErr)
		}

		if !utf8.Valid(text) {
			continue
		}
		sb.Write(text)
	}

	return sb.String(), nil
}

// sortInt64s is used by Searcher.Parse to produce a binary-searchable id
// list.
func sortInt64s(ids []int64) { sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] }) }
