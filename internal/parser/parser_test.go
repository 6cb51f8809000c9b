package parser

import (
	"testing"

	"github.com/starford/fitrunner/internal/models"
)

func TestParse_FrontmatterAttributes(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntest: true\nsuites:\n  - foo\n  - smoke\nTestSystem: slim\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if !r.Attributes.Has(models.AttrTest) {
		t.Error("expected test attribute")
	}
	if got := r.Attributes.Get(models.AttrSuites); got != "foo, smoke" {
		t.Errorf("suites = %q, want %q", got, "foo, smoke")
	}
	if got := r.Attributes.Get(models.AttrTestSystem); got != "slim" {
		t.Errorf("test_system = %q, want %q", got, "slim")
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_TagsAliasSuites(t *testing.T) {
	r, err := Parse([]byte("---\ntags: [bar, smoke]\n---\nbody\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Attributes.Get(models.AttrSuites); got != "bar, smoke" {
		t.Errorf("suites = %q", got)
	}
}

func TestParse_ExplicitFalseAttribute(t *testing.T) {
	r, err := Parse([]byte("---\ntest: false\nprune: yes\n---\n"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Attributes.Has(models.AttrTest) {
		t.Error("test: false should not count as present")
	}
	if !r.Attributes.Has(models.AttrPrune) {
		t.Error("prune: yes should count as present")
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Attributes) != 0 {
		t.Errorf("expected no attributes, got %v", r.Attributes)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Attributes) != 0 {
		t.Errorf("expected no attributes on invalid YAML")
	}
}

func TestExtractSeeAlso_OrderAndDedup(t *testing.T) {
	body := "!see XrefOne\r\n!see XrefTwo\n  !see .Root.XrefThree\n!see XrefOne\nnot !see Inline\n"
	got := extractSeeAlso(body)
	want := []string{"XrefOne", "XrefTwo", ".Root.XrefThree"}
	if len(got) != len(want) {
		t.Fatalf("see = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("see[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractDefines(t *testing.T) {
	vars := extractDefines("!define TEST_SYSTEM {slim}\n!define COLLAPSE_SETUP (true)\n!define TEST_SYSTEM {fit}\n")
	if vars["TEST_SYSTEM"] != "fit" {
		t.Errorf("TEST_SYSTEM = %q, want fit", vars["TEST_SYSTEM"])
	}
	if vars["COLLAPSE_SETUP"] != "true" {
		t.Errorf("COLLAPSE_SETUP = %q", vars["COLLAPSE_SETUP"])
	}
}

func TestExtractPaths(t *testing.T) {
	paths := extractPaths("!path classes\n!path lib/dummy.jar\n")
	if len(paths) != 2 || paths[0] != "classes" || paths[1] != "lib/dummy.jar" {
		t.Errorf("paths = %v", paths)
	}
}

func TestSplitTags(t *testing.T) {
	got := SplitTags(" smoke, bar,,smoke ")
	if len(got) != 2 || got[0] != "bar" || got[1] != "smoke" {
		t.Errorf("tags = %v, want [bar smoke]", got)
	}
	if len(SplitTags("")) != 0 {
		t.Error("empty input should yield no tags")
	}
}
