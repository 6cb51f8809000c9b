package mcpserver

// DocumentFormatContract describes how test documents are laid out in the
// vault so LLM consumers can read plans and reports in context.
const DocumentFormatContract = `# fitrunner Document Format

Every directory under the vault root is a document. Its markup lives in
` + "`" + `content.md` + "`" + ` inside that directory; the directory path, dot-joined, is the
document's page path (` + "`" + `SuitePage/TestOne/content.md` + "`" + ` is ` + "`" + `SuitePage.TestOne` + "`" + `).

## Attributes

` + "```" + `markdown
---
test: true              # marks an executable test document
suites: smoke, nightly  # comma separated tags matched by suiteFilter
prune: true             # excludes this document and its subtree from every suite
test_system: slim       # fit (default) or slim; inherited by descendants
---
` + "```" + `

## Directives

- ` + "`" + `!define TEST_SYSTEM {slim}` + "`" + ` selects the test system, like the attribute.
- ` + "`" + `!path some/classes` + "`" + ` adds a class path entry passed to the fixture server.
- ` + "`" + `!see Target` + "`" + ` pulls another document's tests into this suite. Target forms:
  ` + "`" + `.Abs.Path` + "`" + ` absolute, ` + "`" + `>Child` + "`" + ` sub-document, ` + "`" + `<Ancestor.Path` + "`" + ` nearest
  ancestor named Ancestor, anything else a sibling.

## Tables

Executable tables are pipe tables; the first row names the fixture:

` + "```" + `
|eg.Division|
|numerator|denominator|quotient?|
|10|2|5|
` + "```" + `

## Counts and exit code

Each document yields right, wrong, ignored and exception counts. A suite's exit
code is wrong + exceptions; 0 means every document passed.

## History

Every run that writes history stores ` + "`" + `<page path>/<yyyyMMddHHmmss>_<r>_<w>_<i>_<e>.xml` + "`" + `
per document plus one record for the suite root, whose counts tally pages.
`
