package writer

import (
	"bytes"
	"testing"
)

func TestCompileFormat(t *testing.T) {
	got := string(Compile("X", "Y", []string{"A", "B"}, map[string]string{"A": "a body", "B": "b body"}))
	want := "# テーマ\nX\n\n## 概要\nY\n\n## A\na body\n\n## B\nb body\n"
	if got != want {
		t.Fatalf("Compile =\n%q\nwant\n%q", got, want)
	}
}

func TestCompileEmptyOutlineAndMissingBody(t *testing.T) {
	got := string(Compile("X", "", []string{"A"}, nil))
	want := "# テーマ\nX\n\n## 概要\n\n\n## A\n\n"
	if got != want {
		t.Fatalf("Compile =\n%q\nwant\n%q", got, want)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	texts := map[string]string{"C": "3", "A": "1", "B": "2", "D": "4"}
	chapters := []string{"D", "B", "A", "C"}
	first := Compile("topic", "outline", chapters, texts)
	for i := 0; i < 20; i++ {
		if !bytes.Equal(first, Compile("topic", "outline", chapters, texts)) {
			t.Fatal("compile output differs between runs")
		}
	}
}

func TestCompileIgnoresTextsOutsideChapterList(t *testing.T) {
	got := string(Compile("X", "Y", []string{"A"}, map[string]string{"A": "a", "Stale": "old"}))
	if bytes.Contains([]byte(got), []byte("Stale")) {
		t.Fatalf("stale body leaked into document:\n%s", got)
	}
}
