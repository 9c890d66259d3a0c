package report

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRecorder_Limit(t *testing.T) {
	r := NewRecorder(2)
	r.Report("one")
	r.Report("two")
	r.Report("three")

	got := r.Messages()
	if len(got) != 2 || got[0] != "two" || got[1] != "three" {
		t.Errorf("Messages() = %v, want [two three]", got)
	}
	if r.Last() != "three" {
		t.Errorf("Last() = %q, want %q", r.Last(), "three")
	}

	r.Reset()
	if len(r.Messages()) != 0 || r.Last() != "" {
		t.Error("Reset() did not clear messages")
	}
}

func TestMulti(t *testing.T) {
	a := NewRecorder(0)
	b := NewRecorder(0)
	Multi(a, nil, b).Report("hello")

	if a.Last() != "hello" || b.Last() != "hello" {
		t.Errorf("fan-out failed: a=%q b=%q", a.Last(), b.Last())
	}
}

func TestSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	NewSlog(logger, "component", "importer").Report("loaded 2 rows")

	out := buf.String()
	if !strings.Contains(out, `message="loaded 2 rows"`) {
		t.Errorf("log output missing message: %s", out)
	}
	if !strings.Contains(out, "component=importer") {
		t.Errorf("log output missing attrs: %s", out)
	}
}
