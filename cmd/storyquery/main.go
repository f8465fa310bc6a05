// Command storyquery is the thin shell adapter: it loads one archive,
// then repeatedly reads a line from stdin and evaluates it either as a
// metadata filter expression or, if that fails to parse or compile, as
// full-text search text.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jocketf/storyquery/internal/applog"
	"github.com/jocketf/storyquery/internal/archive"
	"github.com/jocketf/storyquery/internal/config"
	"github.com/jocketf/storyquery/internal/query"
	"github.com/jocketf/storyquery/internal/search"
	"github.com/jocketf/storyquery/internal/storyerrors"
	"github.com/jocketf/storyquery/internal/version"
)

const printThreshold = 32

func main() {
	if len(os.Args) == 2 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Fprintln(os.Stdout, version.FullInfo())
		return
	}

	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <ARCHIVE>\n", filepath.Base(os.Args[0]))
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(archivePath string, in io.Reader, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	start := time.Now()
	fetcher, err := archive.Open(archivePath)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	elapsed := time.Since(start).Milliseconds()
	fmt.Fprintf(out, "Finished loading in %d milliseconds.\n", elapsed)
	fmt.Fprintf(out, "The archive contains %d stories.\n", fetcher.Len())

	searcher, err := openSearcher(cfg, archivePath, fetcher)
	if err != nil {
		return err
	}
	defer searcher.Close()

	repl(fetcher, searcher, in, out)
	return nil
}

func openSearcher(cfg *config.Config, archivePath string, fetcher *archive.Fetcher) (*search.Searcher, error) {
	idx, err := search.Open(cfg.Search.CacheRoot, archivePath, fetcher)
	if err != nil {
		return nil, err
	}
	return search.New(idx, &cfg.Search), nil
}

func repl(fetcher *archive.Fetcher, searcher *search.Searcher, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, ">>> ")
		if !scanner.Scan() {
			return
		}

		line := scanner.Text()

		pred, err := resolve(line, searcher)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}

		start := time.Now()
		matches := fetcher.Filter(pred)
		elapsed := time.Since(start).Milliseconds()

		fmt.Fprintf(out, "Found %d stories in %d milliseconds!\n", len(matches), elapsed)

		if len(matches) > printThreshold {
			continue
		}
		for _, story := range matches {
			fmt.Fprintf(out, "[%d] %s\n", story.ID, story.Title)
		}
	}
}

// resolve tries the metadata filter grammar first; a line that fails to
// parse or compile as a filter expression is treated as full-text search
// text instead.
func resolve(line string, searcher *search.Searcher) (archive.Predicate, error) {
	pred, queryErr := query.ParseAndCompile(line)
	if queryErr == nil {
		return pred, nil
	}

	pred, searchErr := searcher.Parse(line)
	if searchErr == nil {
		return pred, nil
	}

	applog.Debugf("shell", "filter parse failed (%v), search parse failed (%v)", queryErr, searchErr)
	return nil, storyerrors.NewQueryError(queryErr.Error())
}
