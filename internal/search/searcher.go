package search

import (
	"sort"

	"github.com/blevesearch/bleve/v2"

	"github.com/jocketf/storyquery/internal/archive"
	"github.com/jocketf/storyquery/internal/config"
	"github.com/jocketf/storyquery/internal/storyerrors"
)

// Hit is one scored search result.
type Hit struct {
	StoryID int64
	Score   float64
}

// Searcher wraps a persistent full-text index plus the tunables that
// govern result bounding, configurable per config.Search.
type Searcher struct {
	index          bleve.Index
	resultLimit    int
	scoreThreshold float64
}

// New wraps an already-open or newly-built bleve index, honoring cfg's
// ResultLimit and ScoreThreshold. A nil cfg selects config.Default().
func New(index bleve.Index, cfg *config.Search) *Searcher {
	if cfg == nil {
		d := config.Default()
		cfg = &d.Search
	}
	return &Searcher{index: index, resultLimit: cfg.ResultLimit, scoreThreshold: cfg.ScoreThreshold}
}

// Close releases the underlying index.
func (s *Searcher) Close() error { return s.index.Close() }

// Search runs text against the index's default query syntax and returns
// the top resultLimit hits sorted by descending score.
func (s *Searcher) Search(text string) ([]Hit, error) {
	query := bleve.NewQueryStringQuery(text)
	req := bleve.NewSearchRequestOptions(query, s.resultLimit, 0, false)
	req.Fields = []string{"sid"}

	result, err := s.index.Search(req)
	if err != nil {
		return nil, storyerrors.NewQueryError("invalid search query: " + err.Error())
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		sid, ok := h.Fields["sid"].(float64)
		if !ok {
			continue
		}
		hits = append(hits, Hit{StoryID: int64(sid), Score: h.Score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > s.resultLimit {
		hits = hits[:s.resultLimit]
	}
	return hits, nil
}

// Parse evaluates text once and returns a predicate suitable for
// Fetcher.Filter: ids whose score exceeds the configured score
// threshold, checked via O(log k) binary search over a sorted id list.
func (s *Searcher) Parse(text string) (archive.Predicate, error) {
	hits, err := s.Search(text)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		if h.Score > s.scoreThreshold {
			ids = append(ids, h.StoryID)
		}
	}
	sortInt64s(ids)

	return func(story *archive.Story) bool {
		id := int64(story.ID)
		i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
		return i < len(ids) && ids[i] == id
	}, nil
}
