// Package testutil provides shared test helpers for setting up vaults,
// history databases and fake fixture servers.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/fitrunner/internal/docstore"
	"github.com/starford/fitrunner/internal/history"
	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/storage"
)

// Fixture bodies understood by the fake fixture servers.
const (
	FitPass = "|!-fitnesse.testutil.PassFixture-!|\n"
	FitFail = "|!-fitnesse.testutil.FailFixture-!|\n"

	SlimDecisionTable = "!define TEST_SYSTEM {slim}\n" +
		"|!-DT:fitnesse.slim.test.TestSlim-!|\n" +
		"|string|get string arg?|\n" +
		"|wow|wow|\n"
)

// Vault is a temporary document tree.
type Vault struct {
	t     testing.TB
	Dir   string
	Store *storage.FS
	Tree  *docstore.Tree
}

// NewVault creates an empty vault in a temp directory.
func NewVault(t testing.TB) *Vault {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir, ".md")
	if err != nil {
		t.Fatal(err)
	}
	return &Vault{t: t, Dir: dir, Store: store, Tree: docstore.New(store)}
}

// Page writes a document. attrs are frontmatter lines such as "suites: foo".
// The empty path writes the root document.
func (v *Vault) Page(dotted, body string, attrs ...string) models.PagePath {
	v.t.Helper()
	p := models.ParsePath(dotted)
	dir := filepath.Join(append([]string{v.Dir}, p...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		v.t.Fatal(err)
	}
	content := body
	if len(attrs) > 0 {
		content = "---\n" + strings.Join(attrs, "\n") + "\n---\n" + body
	}
	if err := os.WriteFile(filepath.Join(dir, docstore.ContentFile), []byte(content), 0o644); err != nil {
		v.t.Fatal(err)
	}
	return p
}

// TestPage writes a document carrying the test attribute.
func (v *Vault) TestPage(dotted, body string, attrs ...string) models.PagePath {
	v.t.Helper()
	return v.Page(dotted, body, append([]string{"test: true"}, attrs...)...)
}

// TestDB creates a temporary history index that is automatically cleaned up.
func TestDB(t testing.TB) *history.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "fitrunner-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := history.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
