package main

import (
	"strings"
	"testing"
)

func TestRenderTableRightAlignsRequestedColumns(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Memories"},
		[][]string{{"alpha", "7"}, {"b", "123"}},
		1,
	)
	for _, want := range []string{"ID", "Memories", "alpha", "123"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	// Right alignment pushes the short count against the column edge.
	if !strings.Contains(out, "7 │") {
		t.Fatalf("memories column not right-aligned:\n%s", out)
	}
}

func TestRenderTableNoHeaders(t *testing.T) {
	if out := renderTable(nil, nil); out != "" {
		t.Fatalf("out = %q, want empty", out)
	}
}
