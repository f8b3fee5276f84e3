package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrUnsupported marks files the loader does not read.
var ErrUnsupported = errors.New("unsupported document type")

// Document is one policy file's text plus where it came from.
type Document struct {
	Path     string
	Source   string
	Category string
	Text     string
}

// PDFExtractor returns the plain text of a PDF file.
type PDFExtractor func(ctx context.Context, path string) (string, error)

// Extensions lists the document types ingestion reads.
var Extensions = []string{".txt", ".md", ".pdf"}

func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadDocument reads path. The category is the name of the file's
// immediate parent directory, taken verbatim.
func LoadDocument(ctx context.Context, path string, pdf PDFExtractor) (Document, error) {
	doc := Document{
		Path:     path,
		Source:   filepath.Base(path),
		Category: filepath.Base(filepath.Dir(path)),
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Document{}, fmt.Errorf("read %s: %w", path, err)
		}
		doc.Text = string(raw)
	case ".pdf":
		if pdf == nil {
			pdf = PDFToText
		}
		text, err := pdf(ctx, path)
		if err != nil {
			return Document{}, fmt.Errorf("extract %s: %w", path, err)
		}
		doc.Text = text
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	return doc, nil
}

// PDFToText shells out to poppler's pdftotext, writing the text to stdout.
func PDFToText(ctx context.Context, path string) (string, error) {
	bin, err := exec.LookPath("pdftotext")
	if err != nil {
		return "", fmt.Errorf("pdftotext not found in PATH: %w", err)
	}
	cmd := exec.CommandContext(ctx, bin, "-layout", "-enc", "UTF-8", path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
