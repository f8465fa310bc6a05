package storyerrors

import (
	"errors"
	"testing"
)

func TestArchiveErrorUnwrap(t *testing.T) {
	underlying := errors.New("entry missing")
	err := NewArchiveError("read", underlying)

	if !errors.Is(err, underlying) {
		t.Errorf("expected error to unwrap to underlying error")
	}

	expected := "archive error, read: entry missing"
	if err.Error() != expected {
		t.Errorf("expected message %q, got %q", expected, err.Error())
	}
}

func TestIndexErrorWithLine(t *testing.T) {
	underlying := errors.New("key/id mismatch")
	err := NewIndexError("decode", underlying).WithLine(42)

	expected := "index error, decode at line 42: key/id mismatch"
	if err.Error() != expected {
		t.Errorf("expected message %q, got %q", expected, err.Error())
	}
}

func TestQueryErrorPosition(t *testing.T) {
	err := NewQueryErrorAt("unknown field", 7)

	expected := "query error, unknown field at 7"
	if err.Error() != expected {
		t.Errorf("expected message %q, got %q", expected, err.Error())
	}
}

func TestUsageError(t *testing.T) {
	err := NewUsageError("Usage: storyquery <ARCHIVE>")

	if err.Error() != "Usage: storyquery <ARCHIVE>" {
		t.Errorf("unexpected usage error message: %q", err.Error())
	}
}
