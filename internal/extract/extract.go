package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// maxFileSize caps how much of a single file is read for indexing.
const maxFileSize = 16 << 20 // 16 MiB

// Document is the extracted text of one file, ready for indexing.
type Document struct {
	Path string
	Text string
}

// File reads one file and extracts its text. PDFs and HTML get their text
// content pulled out; everything else is treated as plain text and must be
// valid UTF-8.
func File(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, err
	}
	if info.Size() > maxFileSize {
		return Document{}, fmt.Errorf("%s: file exceeds %d bytes", path, maxFileSize)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := pdfText(path)
		if err != nil {
			return Document{}, fmt.Errorf("extracting pdf %s: %w", path, err)
		}
		return Document{Path: path, Text: text}, nil
	case ".html", ".htm":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Document{}, err
		}
		text, err := htmlText(raw)
		if err != nil {
			return Document{}, fmt.Errorf("extracting html %s: %w", path, err)
		}
		return Document{Path: path, Text: text}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	if !utf8.Valid(raw) {
		return Document{}, fmt.Errorf("%s: not valid UTF-8 text", path)
	}
	return Document{Path: path, Text: string(raw)}, nil
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// htmlText walks the parse tree collecting text nodes, skipping script and
// style subtrees.
func htmlText(raw []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String(), nil
}
