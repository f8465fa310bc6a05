package query

import (
	"testing"
	"time"

	"github.com/jocketf/storyquery/internal/archive"
)

func mustStory(t *testing.T, id, chapters, likes int32, author string) *archive.Story {
	t.Helper()

	var a *archive.Author
	if author != "" {
		a = &archive.Author{ID: 1, Name: author}
	}

	return &archive.Story{
		ID:          id,
		Title:       "Story",
		NumChapters: chapters,
		NumLikes:    likes,
		Author:      a,
	}
}

func TestCompileEndToEndScenario(t *testing.T) {
	stories := []*archive.Story{
		mustStory(t, 1, 20, 500, ""),
		mustStory(t, 2, 5, 5000, "Fluttershy"),
		mustStory(t, 3, 20, 10, ""),
	}

	pred, err := ParseAndCompile("chapters > 10, likes > 100 | author = Fluttershy")
	if err != nil {
		t.Fatalf("ParseAndCompile: %v", err)
	}

	var matched []int32
	for _, s := range stories {
		if pred(s) {
			matched = append(matched, s.ID)
		}
	}

	if len(matched) != 2 || matched[0] != 1 || matched[1] != 2 {
		t.Fatalf("expected ids [1 2], got %v", matched)
	}
}

func TestCompileEndToEndScenarioStatusNegationAndWordCount(t *testing.T) {
	visibleShort := mustStory(t, 1, 0, 0, "")
	visibleShort.Status = archive.Visible
	visibleShort.NumWords = 500

	hiddenShort := mustStory(t, 2, 0, 0, "")
	hiddenShort.Status = archive.NotVisible
	hiddenShort.NumWords = 500

	visibleLong := mustStory(t, 3, 0, 0, "")
	visibleLong.Status = archive.Visible
	visibleLong.NumWords = 2000

	hiddenLong := mustStory(t, 4, 0, 0, "")
	hiddenLong.Status = archive.NotVisible
	hiddenLong.NumWords = 2000

	pred, err := ParseAndCompile("!(status = visible), words < 1000")
	if err != nil {
		t.Fatalf("ParseAndCompile: %v", err)
	}

	cases := []struct {
		story *archive.Story
		want  bool
	}{
		{visibleShort, false},
		{hiddenShort, true},
		{visibleLong, false},
		{hiddenLong, false},
	}
	for _, c := range cases {
		if got := pred(c.story); got != c.want {
			t.Errorf("story %d: got %v, want %v", c.story.ID, got, c.want)
		}
	}
}

func TestCompileStatusIsCaseSensitive(t *testing.T) {
	story := mustStory(t, 1, 0, 0, "")
	story.Status = archive.Visible

	pred, err := ParseAndCompile("status = Visible")
	if err != nil {
		t.Fatalf("ParseAndCompile: %v", err)
	}
	if pred(story) {
		t.Fatal("expected case-sensitive status comparison to reject a differently-cased value")
	}
}

func TestCompileIntOperators(t *testing.T) {
	story := mustStory(t, 1, 10, 0, "")

	cases := []struct {
		query string
		want  bool
	}{
		{"chapters = 10", true},
		{"chapters : 10", true},
		{"chapters < 11", true},
		{"chapters > 11", false},
		{"chapters > 9", true},
	}

	for _, c := range cases {
		pred, err := ParseAndCompile(c.query)
		if err != nil {
			t.Fatalf("ParseAndCompile(%q): %v", c.query, err)
		}
		if got := pred(story); got != c.want {
			t.Errorf("query %q: got %v, want %v", c.query, got, c.want)
		}
	}
}

func TestCompileStrFuzzyIsCaseInsensitive(t *testing.T) {
	story := mustStory(t, 1, 0, 0, "")
	story.Title = "The Mare Do Well"

	pred, err := ParseAndCompile("title : mare")
	if err != nil {
		t.Fatalf("ParseAndCompile: %v", err)
	}
	if !pred(story) {
		t.Fatal("expected fuzzy match to be case-insensitive")
	}
}

func TestCompileStrExactIsCaseSensitive(t *testing.T) {
	story := mustStory(t, 1, 0, 0, "")
	story.Title = "Mare"

	pred, err := ParseAndCompile("title = mare")
	if err != nil {
		t.Fatalf("ParseAndCompile: %v", err)
	}
	if pred(story) {
		t.Fatal("expected exact match to be case-sensitive")
	}
}

func TestCompileStrRejectsOrderingOperators(t *testing.T) {
	if _, err := ParseAndCompile("title > mare"); err == nil {
		t.Fatal("expected error for ordering operator on string field")
	}
}

func TestCompileDateAbsentFieldIsFalse(t *testing.T) {
	story := mustStory(t, 1, 0, 0, "")

	for _, op := range []string{"=", ":", "<", ">"} {
		pred, err := ParseAndCompile("modified " + op + " 2020-01-01")
		if err != nil {
			t.Fatalf("ParseAndCompile: %v", err)
		}
		if pred(story) {
			t.Errorf("expected op %q against absent date to be false", op)
		}
	}
}

func TestCompileDateFuzzyMatchesSameCalendarDay(t *testing.T) {
	story := mustStory(t, 1, 0, 0, "")
	ts := time.Date(2020, 6, 15, 23, 59, 0, 0, time.UTC)
	story.DateModified = &ts

	pred, err := ParseAndCompile("modified : 2020-06-15T08:00:00Z")
	if err != nil {
		t.Fatalf("ParseAndCompile: %v", err)
	}
	if !pred(story) {
		t.Fatal("expected fuzzy date match for the same UTC calendar day")
	}
}

func TestCompileInvalidIntValue(t *testing.T) {
	if _, err := ParseAndCompile("chapters = abc"); err == nil {
		t.Fatal("expected error for non-numeric int value")
	}
}
