package archive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jocketf/storyquery/internal/applog"
	"github.com/jocketf/storyquery/internal/storyerrors"
)

// LoaderOptions configures the streaming index-loader pipeline. A zero
// value is valid and selects sane defaults.
type LoaderOptions struct {
	// Workers is the number of decoder goroutines. 0 selects NumCPU().
	Workers int
	// ChannelCapacity bounds the line-reader-to-decoder channel.
	ChannelCapacity int
}

func (o LoaderOptions) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

func (o LoaderOptions) channelCapacity() int {
	if o.ChannelCapacity > 0 {
		return o.ChannelCapacity
	}
	return 4096
}

// LoadIndex streams the line-oriented metadata index from r, decodes every
// body line concurrently, and returns a sorted, deduplicated story table.
func LoadIndex(r io.Reader, opts LoaderOptions) ([]*Story, error) {
	lines := make(chan string, opts.channelCapacity())
	decoded := make(chan *Story, opts.channelCapacity())

	group, ctx := errgroup.WithContext(context.Background())

	for i := 0; i < opts.workers(); i++ {
		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = storyerrors.NewIndexError("decode worker", fmt.Errorf("panic: %v", r))
				}
			}()

			for line := range lines {
				story, err := DecodeLine(line)
				if err != nil {
					return err
				}
				select {
				case decoded <- story:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	var wrappers string
	var scanErr error

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

		for scanner.Scan() {
			line := scanner.Text()

			if len(line) == 1 {
				wrappers += line
				continue
			}

			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			scanErr = err
		}
	}()

	go func() {
		group.Wait()
		close(decoded)
	}()

	stories := make([]*Story, 0, 1<<18)
	for story := range decoded {
		stories = append(stories, story)
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, storyerrors.NewIndexError("read index", scanErr)
	}

	if wrappers != "{}" {
		return nil, storyerrors.NewIndexError("read index", fmt.Errorf("invalid file structure: wrappers were %q, want \"{}\"", wrappers))
	}

	sort.Slice(stories, func(i, j int) bool { return stories[i].ID < stories[j].ID })

	deduped := dedupeByID(stories)
	if len(deduped) != len(stories) {
		return nil, storyerrors.NewIndexError("read index", fmt.Errorf("found duplicate story id"))
	}

	applog.Infof("loader", "decoded %d stories", len(deduped))

	return deduped, nil
}

func dedupeByID(stories []*Story) []*Story {
	if len(stories) == 0 {
		return stories
	}

	out := stories[:1]
	for _, s := range stories[1:] {
		if s.ID != out[len(out)-1].ID {
			out = append(out, s)
		}
	}
	return out
}
