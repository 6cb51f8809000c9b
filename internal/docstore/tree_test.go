package docstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/storage"
)

func writePage(t *testing.T, root, dotted, content string) {
	t.Helper()
	dir := filepath.Join(append([]string{root}, models.ParsePath(dotted)...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ContentFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTree(t *testing.T) (string, *Tree) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir, ".md")
	if err != nil {
		t.Fatal(err)
	}
	return dir, New(fs)
}

func TestChildrenSorted(t *testing.T) {
	dir, tree := newTree(t)
	writePage(t, dir, "SuitePage", "suite")
	writePage(t, dir, "SuitePage.TestTwo", "two")
	writePage(t, dir, "SuitePage.TestOne", "one")
	if err := os.MkdirAll(filepath.Join(dir, "SuitePage", "_files"), 0o755); err != nil {
		t.Fatal(err)
	}

	kids, err := tree.Children(context.Background(), models.ParsePath("SuitePage"))
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) != 2 {
		t.Fatalf("children = %v, want 2", kids)
	}
	if kids[0].String() != "SuitePage.TestOne" || kids[1].String() != "SuitePage.TestTwo" {
		t.Errorf("children = %v", kids)
	}
}

func TestAttributesAndContent(t *testing.T) {
	dir, tree := newTree(t)
	writePage(t, dir, "SuitePage.TestOne", "---\ntest: true\nsuites: foo\n---\n|PassFixture|\n")
	p := models.ParsePath("SuitePage.TestOne")

	attrs, err := tree.Attributes(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if !attrs.Has(models.AttrTest) || attrs.Get(models.AttrSuites) != "foo" {
		t.Errorf("attributes = %v", attrs)
	}
	body, err := tree.Content(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if body != "|PassFixture|\n" {
		t.Errorf("content = %q", body)
	}
}

func TestMissingDocument(t *testing.T) {
	_, tree := newTree(t)
	_, err := tree.Load(context.Background(), models.ParsePath("Nope"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDirectoryWithoutContentIsEmpty(t *testing.T) {
	dir, tree := newTree(t)
	if err := os.MkdirAll(filepath.Join(dir, "Bare"), 0o755); err != nil {
		t.Fatal(err)
	}
	doc, err := tree.Load(context.Background(), models.ParsePath("Bare"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Body != "" || len(doc.Attributes) != 0 {
		t.Errorf("doc = %+v", doc)
	}
	if doc.TestSystem != DefaultTestSystem {
		t.Errorf("test system = %q, want %q", doc.TestSystem, DefaultTestSystem)
	}
}

func TestLoadInheritsTestSystemAndClassPath(t *testing.T) {
	dir, tree := newTree(t)
	if err := os.WriteFile(filepath.Join(dir, ContentFile), []byte("!path classes\n!path lib/dummy.jar\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writePage(t, dir, "SlimSuite", "!define TEST_SYSTEM {slim}\n!path slim.jar\n")
	writePage(t, dir, "SlimSuite.TestA", "|DT:Echo|\n")
	writePage(t, dir, "SlimSuite.TestB", "---\ntest_system: fit\n---\n")

	a, err := tree.Load(context.Background(), models.ParsePath("SlimSuite.TestA"))
	if err != nil {
		t.Fatal(err)
	}
	if a.TestSystem != "slim" {
		t.Errorf("TestA system = %q, want slim", a.TestSystem)
	}
	want := []string{"slim.jar", "classes", "lib/dummy.jar"}
	if len(a.ClassPath) != len(want) {
		t.Fatalf("classpath = %v, want %v", a.ClassPath, want)
	}
	for i := range want {
		if a.ClassPath[i] != want[i] {
			t.Errorf("classpath[%d] = %q, want %q", i, a.ClassPath[i], want[i])
		}
	}

	b, err := tree.Load(context.Background(), models.ParsePath("SlimSuite.TestB"))
	if err != nil {
		t.Fatal(err)
	}
	if b.TestSystem != "fit" {
		t.Errorf("TestB system = %q, want fit", b.TestSystem)
	}
}

func TestCrossReferenceForms(t *testing.T) {
	dir, tree := newTree(t)
	writePage(t, dir, "SuitePage", "")
	writePage(t, dir, "SuitePage.Child", "")
	writePage(t, dir, "SuitePage.Child.Leaf", "")
	writePage(t, dir, "XrefOne", "")
	writePage(t, dir, "Other.Deep", "")

	from := models.ParsePath("SuitePage")
	content := "!see XrefOne\r\n!see XrefMissing\n!see >Child\n!see .Other.Deep\n"
	refs, err := tree.CrossReferences(context.Background(), from, content)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"XrefOne", "SuitePage.Child", "Other.Deep"}
	if len(refs) != len(want) {
		t.Fatalf("refs = %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i].String() != want[i] {
			t.Errorf("refs[%d] = %q, want %q", i, refs[i], want[i])
		}
	}

	leaf := models.ParsePath("SuitePage.Child.Leaf")
	p, ok, err := tree.ResolveReference(context.Background(), leaf, "<SuitePage.Child")
	if err != nil || !ok {
		t.Fatalf("backward ref: ok=%v err=%v", ok, err)
	}
	if p.String() != "SuitePage.Child" {
		t.Errorf("backward ref = %q", p)
	}
	if _, ok, _ := tree.ResolveReference(context.Background(), leaf, "<Nowhere"); ok {
		t.Error("unknown ancestor should not resolve")
	}
}
