package loader

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/dkoval/ragbox/internal/models"
)

// A .docx file is a ZIP archive; the visible text lives in
// word/document.xml as runs of <w:t> elements grouped into paragraphs.

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Value string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

func (l *Loader) loadDocx(path string) ([]models.Document, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer archive.Close()

	text, err := docxText(&archive.Reader)
	if err != nil {
		return nil, err
	}

	return []models.Document{{
		Source:  path,
		Content: text,
		Metadata: map[string]interface{}{
			"source": path,
			"format": "docx",
		},
	}}, nil
}

func docxText(archive *zip.Reader) (string, error) {
	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("read docx body: %w", err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read docx body: %w", err)
		}

		var doc docxDocument
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return "", fmt.Errorf("parse docx body: %w", err)
		}

		var b strings.Builder
		for i, para := range doc.Body.Paragraphs {
			if i > 0 {
				b.WriteString("\n")
			}
			for _, run := range para.Runs {
				for _, t := range run.Text {
					b.WriteString(t.Value)
				}
			}
		}
		return strings.TrimSpace(b.String()), nil
	}

	return "", fmt.Errorf("word/document.xml not found in archive")
}
