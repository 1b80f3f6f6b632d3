package ingest

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var (
	wordBreaks = strings.NewReplacer("</w:p>", "\n", "<w:tab/>", "\t", "<w:br/>", "\n", "<w:cr/>", "\n")
	xmlTag     = regexp.MustCompile(`<[^>]+>`)
	slideName  = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

const drawingML = "http://schemas.openxmlformats.org/drawingml/2006/main"

func loadDOCX(path string) ([]Document, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open docx: %w", err)
	}
	defer r.Close()

	text := wordText(r.Editable().GetContent())
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}
	return []Document{{Content: text, Source: filepath.Base(path), Kind: "docx"}}, nil
}

// wordText flattens WordprocessingML body XML to paragraphs.
func wordText(body string) string {
	s := xmlTag.ReplaceAllString(wordBreaks.Replace(body), "")
	s = html.UnescapeString(s)

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimRight(line, " \t"); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

type slide struct {
	num  int
	file *zip.File
}

func loadPPTX(path string) ([]Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open pptx: %w", err)
	}
	defer zr.Close()

	var slides []slide
	for _, f := range zr.File {
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	name := filepath.Base(path)
	var docs []Document
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, fmt.Errorf("ingest: slide %d: %w", s.num, err)
		}
		text, err := slideText(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("ingest: slide %d: %w", s.num, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, Document{Content: text, Source: name, Kind: "pptx", Page: s.num})
	}
	if len(docs) == 0 {
		return nil, ErrNoText
	}
	return docs, nil
}

// slideText collects a:t runs in document order, one line per a:p paragraph.
func slideText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		sb     strings.Builder
		inText bool
		line   bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == drawingML && t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Space != drawingML {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if line {
					sb.WriteByte('\n')
					line = false
				}
			}
		case xml.CharData:
			if inText && len(t) > 0 {
				sb.Write(t)
				line = true
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
