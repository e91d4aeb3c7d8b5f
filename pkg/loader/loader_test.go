package loader_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/ragbox/pkg/loader"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeDocx(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	entry, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return path
}

func TestLoadFiles_TextAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	txt := writeFile(t, dir, "notes.txt", "plain text notes")
	md := writeFile(t, dir, "readme.md", "# heading\nmarkdown body")

	docs, err := loader.New().LoadFiles(context.Background(), []string{txt, md})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, txt, docs[0].Source)
	assert.Equal(t, "plain text notes", docs[0].Content)
	assert.Contains(t, docs[1].Content, "markdown body")
}

func TestLoadFiles_CSV(t *testing.T) {
	dir := t.TempDir()
	csv := writeFile(t, dir, "data.csv", "name,role\nada,engineer\n")

	docs, err := loader.New().LoadFiles(context.Background(), []string{csv})
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Contains(t, docs[0].Content, "ada")
}

func TestLoadFiles_Docx(t *testing.T) {
	dir := t.TempDir()
	body := `<?xml version="1.0"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><r><t>First paragraph.</t></r></p>
    <p><r><t>Second </t></r><r><t>paragraph.</t></r></p>
  </body>
</document>`
	docx := writeDocx(t, dir, "report.docx", body)

	docs, err := loader.New().LoadFiles(context.Background(), []string{docx})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, "First paragraph.\nSecond paragraph.", docs[0].Content)
	assert.Equal(t, "docx", docs[0].Metadata["format"])
}

func TestLoadFiles_UnsupportedExtensionSkipped(t *testing.T) {
	dir := t.TempDir()
	txt := writeFile(t, dir, "keep.txt", "kept")
	exe := writeFile(t, dir, "skip.exe", "binary junk")

	docs, err := loader.New().LoadFiles(context.Background(), []string{exe, txt})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "kept", docs[0].Content)
}

func TestLoadFiles_BadFileDoesNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	// Not a ZIP archive, so docx parsing fails.
	broken := writeFile(t, dir, "broken.docx", "not a zip")
	txt := writeFile(t, dir, "fine.txt", "fine")

	docs, err := loader.New().LoadFiles(context.Background(), []string{broken, txt})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "fine", docs[0].Content)
}

func TestLoadFiles_AllFailedYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "nope.txt")

	docs, err := loader.New().LoadFiles(context.Background(), []string{missing})
	require.NoError(t, err)
	assert.Empty(t, docs)
}
