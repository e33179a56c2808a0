package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

var (
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrUnreadable      = errors.New("document could not be read")
)

// SupportedExtensions lists the file extensions Extract accepts.
var SupportedExtensions = []string{".txt", ".md", ".markdown", ".csv", ".json", ".pdf", ".docx"}

// Supported reports whether filename has an extension Extract can handle.
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Extract returns the plain text of an uploaded document, choosing the
// decoder from the filename extension.
func Extract(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".csv", ".json":
		return plainText(data)
	case ".md", ".markdown":
		return markdownText(data)
	case ".pdf":
		return pdfText(data)
	case ".docx":
		return docxText(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(filename))
	}
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrUnreadable)
	}
	return string(bytes.TrimPrefix(data, []byte("\ufeff"))), nil
}

// pdfText reads the document page by page. The pdf package panics on some
// malformed inputs, so a panic is turned into ErrUnreadable.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: pdf: %v", ErrUnreadable, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", ErrUnreadable, err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: pdf page %d: %v", ErrUnreadable, i, err)
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

func docxText(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: docx: %v", ErrUnreadable, err)
	}
	defer r.Close()

	return wordXMLText(r.Editable().GetContent())
}

// wordXMLText collects the runs of a WordprocessingML body, one line per
// paragraph.
func wordXMLText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: docx: %v", ErrUnreadable, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// markdownText strips markdown syntax, keeping the readable text of each
// block on its own line.
func markdownText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrUnreadable)
	}

	doc := goldmark.New().Parser().Parse(gmtext.NewReader(data))

	var sb strings.Builder
	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteString("\n")
		}
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				newline()
				sb.Write(node.Lines().Value(data))
				newline()
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				sb.Write(node.Value(data))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteString("\n")
				}
			}
			return ast.WalkContinue, nil
		}

		if !entering && n.Type() == ast.TypeBlock {
			newline()
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: markdown: %v", ErrUnreadable, err)
	}

	return strings.TrimSpace(sb.String()), nil
}
