package archive

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jocketf/storyquery/internal/storyerrors"
)

// trimCutset is the wrapper character set surrounding each line's key and
// value: quote, comma, space, tab, newline, carriage return.
const trimCutset = "\" ,\t\n\r"

// DecodeLine parses one raw metadata-index body line of the form
// `"<digits>": <json-object>,?` into a Story, asserting that the wrapper
// key matches the decoded story's id.
func DecodeLine(line string) (*Story, error) {
	key, body, ok := splitKeyValue(line)
	if !ok {
		return nil, storyerrors.NewIndexError("decode line", fmt.Errorf("invalid line format"))
	}

	id, err := strconv.ParseInt(key, 10, 32)
	if err != nil {
		return nil, storyerrors.NewIndexError("decode line", fmt.Errorf("invalid line key %q: %w", key, err))
	}

	var story Story
	if err := json.Unmarshal([]byte(body), &story); err != nil {
		return nil, storyerrors.NewIndexError("decode story", err)
	}

	if int32(id) != story.ID {
		return nil, storyerrors.NewIndexError("decode line", fmt.Errorf("line key %d does not match story id %d", id, story.ID))
	}

	return &story, nil
}

// splitKeyValue splits a line at its first colon and trims the wrapper
// characters from both halves.
func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}

	key = strings.Trim(line[:idx], trimCutset)
	value = strings.Trim(line[idx+1:], trimCutset)
	return key, value, key != "" && value != ""
}
