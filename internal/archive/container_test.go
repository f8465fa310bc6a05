package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func buildTestZip(t *testing.T, files map[string]string) *bytes.Reader {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}

	data := buf.Bytes()
	return bytes.NewReader(data)
}

func TestContainerOpenEntryReadsContent(t *testing.T) {
	r := buildTestZip(t, map[string]string{"index.json": `{"hello":"world"}`})

	c, err := OpenContainer(r, int64(r.Len()))
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}

	data, err := c.ReadEntry("index.json")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if string(data) != `{"hello":"world"}` {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestContainerOpenEntryMissing(t *testing.T) {
	r := buildTestZip(t, map[string]string{"index.json": `{}`})

	c, err := OpenContainer(r, int64(r.Len()))
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}

	if _, err := c.OpenEntry("missing.json"); err == nil {
		t.Fatal("expected error for missing entry")
	}
}

func TestContainerCRCOf(t *testing.T) {
	r := buildTestZip(t, map[string]string{"index.json": `{"a":1}`})

	c, err := OpenContainer(r, int64(r.Len()))
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}

	crc, err := c.CRCOf("index.json")
	if err != nil {
		t.Fatalf("CRCOf: %v", err)
	}
	if crc != sumCRC32([]byte(`{"a":1}`)) {
		t.Fatalf("unexpected crc %d", crc)
	}
}

func TestContainerSerializesConcurrentReads(t *testing.T) {
	r := buildTestZip(t, map[string]string{
		"index.json": `{}`,
		"a/1.html":   "<p>one</p>",
		"a/2.html":   "<p>two</p>",
	})

	c, err := OpenContainer(r, int64(r.Len()))
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}

	rc1, err := c.OpenEntry("a/1.html")
	if err != nil {
		t.Fatalf("OpenEntry a/1.html: %v", err)
	}

	done := make(chan struct{})
	go func() {
		rc2, err := c.OpenEntry("a/2.html")
		if err != nil {
			t.Errorf("OpenEntry a/2.html: %v", err)
			close(done)
			return
		}
		defer rc2.Close()
		io.ReadAll(rc2)
		close(done)
	}()

	io.ReadAll(rc1)
	rc1.Close()
	<-done
}

func TestContainerNames(t *testing.T) {
	r := buildTestZip(t, map[string]string{"index.json": `{}`, "a/1.html": "x"})

	c, err := OpenContainer(r, int64(r.Len()))
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}

	names := c.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
}
