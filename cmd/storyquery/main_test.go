package main

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jocketf/storyquery/internal/archive"
	"github.com/jocketf/storyquery/internal/config"
)

func buildFixture(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "fixture.fimfarchive")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	stories := []struct {
		id       int32
		title    string
		chapters int32
	}{
		{1, "Friendship is Magic", 20},
		{2, "An Unrelated Tale", 5},
	}

	var idx strings.Builder
	idx.WriteString("{\n")
	for _, s := range stories {
		idStr := strconv.FormatInt(int64(s.id), 10)
		idx.WriteString(`"` + idStr + `": {"id":` + idStr + `,"title":"` + s.title + `","description_html":"","short_description":"","url":"/s/` + idStr + `","color":null,"completion_status":"complete","content_rating":"everyone","status":"visible","chapters":[],"tags":[],"author":{"id":1,"name":"A","url":"/u/1"},"num_chapters":` + strconv.FormatInt(int64(s.chapters), 10) + `,"archive":{"path":"` + idStr + `.zip"}},` + "\n")
	}
	idx.WriteString("}")

	w, err := zw.Create("index.json")
	if err != nil {
		t.Fatalf("create index.json: %v", err)
	}
	if _, err := w.Write([]byte(idx.String())); err != nil {
		t.Fatalf("write index.json: %v", err)
	}

	for _, s := range stories {
		idStr := strconv.FormatInt(int64(s.id), 10)
		pw, err := zw.Create(idStr + ".zip")
		if err != nil {
			t.Fatalf("create payload: %v", err)
		}

		var nested bytes.Buffer
		nzw := zip.NewWriter(&nested)
		hw, err := nzw.Create("chapter1.html")
		if err != nil {
			t.Fatalf("create nested html: %v", err)
		}
		if _, err := hw.Write([]byte("<p>" + s.title + "</p>")); err != nil {
			t.Fatalf("write nested html: %v", err)
		}
		if err := nzw.Close(); err != nil {
			t.Fatalf("close nested zip: %v", err)
		}
		if _, err := pw.Write(nested.Bytes()); err != nil {
			t.Fatalf("write payload: %v", err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return path
}

func TestRunFiltersByMetadataQuery(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORYQUERY_CONFIG", filepath.Join(dir, "missing.kdl"))
	archivePath := buildFixture(t, dir)

	var out bytes.Buffer
	in := strings.NewReader("chapters > 10\n")

	if err := run(archivePath, in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "The archive contains 2 stories.") {
		t.Fatalf("missing load banner in output: %q", output)
	}
	if !strings.Contains(output, "[1] Friendship is Magic") {
		t.Fatalf("expected story 1 to match chapters > 10, got %q", output)
	}
	if strings.Contains(output, "[2]") {
		t.Fatalf("did not expect story 2 to match chapters > 10, got %q", output)
	}
}

func TestResolveFallsBackToSearchOnParseFailure(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORYQUERY_CONFIG", filepath.Join(dir, "missing.kdl"))
	archivePath := buildFixture(t, dir)

	var out bytes.Buffer
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	fetcher, err := archive.Open(archivePath)
	if err != nil {
		t.Fatalf("archive.Open: %v", err)
	}
	defer fetcher.Close()

	searcher, err := openSearcher(cfg, archivePath, fetcher)
	if err != nil {
		t.Fatalf("openSearcher: %v", err)
	}
	defer searcher.Close()

	pred, err := resolve(`"friendship is magic"`, searcher)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	matched := fetcher.Filter(pred)
	found := false
	for _, s := range matched {
		if s.ID == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected story 1 to be found via full-text fallback, got %v (out=%q)", matched, out.String())
	}
}
