package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf))
	l.Info("hello", "key", "value")

	out := buf.String()
	for _, want := range []string{"hello", "key", "value"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithDebug(true)).Debug("debug msg")
	if !strings.Contains(buf.String(), "debug msg") {
		t.Error("debug record dropped with WithDebug(true)")
	}

	buf.Reset()
	New(WithWriter(&buf), WithDebug(false)).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug record leaked: %q", buf.String())
	}
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithJSON(true)).Info("structured", "count", 42)

	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output not JSON: %v (%q)", err, buf.String())
	}
	if parsed["msg"] != "structured" {
		t.Errorf("msg = %v", parsed["msg"])
	}
	if parsed["count"] != float64(42) {
		t.Errorf("count = %v", parsed["count"])
	}
}

func TestPrettyHandler(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithPretty(true)).Info("pretty output")
	if !strings.Contains(buf.String(), "pretty output") {
		t.Errorf("pretty output missing message: %q", buf.String())
	}
}

func TestMultipleWriters(t *testing.T) {
	var a, b bytes.Buffer
	New(WithWriters(&a, &b)).Info("fanout")
	if !strings.Contains(a.String(), "fanout") || !strings.Contains(b.String(), "fanout") {
		t.Errorf("writers got %q / %q", a.String(), b.String())
	}
}

func TestMulti(t *testing.T) {
	var pretty, structured bytes.Buffer
	l := Multi(
		New(WithWriter(&pretty), WithPretty(true)),
		New(WithWriter(&structured), WithJSON(true)),
	)
	l.With("component", "scheduler").Info("cycle done")

	if !strings.Contains(pretty.String(), "cycle done") {
		t.Errorf("pretty sink missing record: %q", pretty.String())
	}
	if !strings.Contains(structured.String(), `"component":"scheduler"`) {
		t.Errorf("json sink missing attr: %q", structured.String())
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Debug("msg")
	l.Info("msg")
	l.With("key", "value").Warn("msg")
	l.WithGroup("group").Error("msg")
	if l.Handler() == nil {
		t.Error("Nop handler is nil")
	}
}
