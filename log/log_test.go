package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestEntryWithFieldsWritesJSON(t *testing.T) {
	l := New()
	l.SetJSON(true)
	l.SetLevel(DebugLevel)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	l.SetOutput(w)

	l.WithFields(Fields{"conn": "c1", "bytes": 42}).Info("frame received")
	w.Close()

	var buf bytes.Buffer
	buf.ReadFrom(r)
	out := buf.String()

	if !strings.Contains(out, "\"conn\":\"c1\"") {
		t.Fatalf("expected conn field in output, got: %s", out)
	}
	if !strings.Contains(out, "\"bytes\":42") {
		t.Fatalf("expected bytes field in output, got: %s", out)
	}
}

func TestFieldsWithDoesNotMutateOriginal(t *testing.T) {
	base := Fields{"a": 1}
	derived := base.With("b", 2)

	if _, ok := base["b"]; ok {
		t.Fatal("With should not mutate the receiver")
	}
	if derived["a"] != 1 || derived["b"] != 2 {
		t.Fatalf("unexpected derived fields: %v", derived)
	}
}

func TestLevelString(t *testing.T) {
	if DebugLevel.String() != "debug" || ErrorLevel.String() != "error" {
		t.Fatal("unexpected level strings")
	}
}
