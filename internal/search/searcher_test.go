package search

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/jocketf/storyquery/internal/archive"
)

func TestParseProducesIDSortedPredicate(t *testing.T) {
	dir := t.TempDir()

	archivePath := buildFixtureArchive(t, dir, "fixture.fimfarchive", map[int32]string{
		5: strings.Repeat("<p>heart of courage heart of courage heart of courage</p>", 40),
		7: "<p>nothing relevant here at all</p>",
	})

	ft, err := archive.Open(archivePath)
	if err != nil {
		t.Fatalf("archive.Open: %v", err)
	}
	defer ft.Close()

	idx, err := Open(filepath.Join(dir, "cache"), archivePath, ft)
	if err != nil {
		t.Fatalf("search.Open: %v", err)
	}
	defer idx.Close()

	searcher := New(idx, nil)

	pred, err := searcher.Parse(`"heart of courage"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	matched := ft.Filter(pred)

	foundFive := false
	for _, s := range matched {
		if s.ID == 7 {
			t.Fatal("expected story 7 to be filtered out by the score threshold")
		}
		if s.ID == 5 {
			foundFive = true
		}
	}
	if !foundFive {
		t.Fatal("expected story 5 to survive the score threshold")
	}
}
