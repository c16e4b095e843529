package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errPartNotFound = errors.New("part not found")

// textSpec selects the XML elements whose character data is document text.
// Text inside one paragraph element is concatenated; paragraphs become lines.
type textSpec struct {
	text      map[string]bool
	paragraph map[string]bool
}

// ooxmlText reads w:t / a:t runs grouped by w:p / a:p paragraphs.
var ooxmlText = textSpec{
	text:      map[string]bool{"t": true},
	paragraph: map[string]bool{"p": true},
}

// odfText reads text:p and text:h paragraphs including nested spans.
var odfText = textSpec{
	text:      map[string]bool{"p": true, "h": true},
	paragraph: map[string]bool{"p": true, "h": true},
}

func openZip(content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("not a zip: %w", err)
	}
	return zr, nil
}

// readPart returns the contents of the named zip entry.
func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s: %w", name, errPartNotFound)
}

// xmlText streams an XML part and returns its text, one line per non-empty paragraph.
func xmlText(data []byte, spec textSpec) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out, para strings.Builder
	depth := 0
	flush := func() {
		line := strings.TrimSpace(para.String())
		para.Reset()
		if line == "" {
			return
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(line)
	}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if spec.text[t.Name.Local] {
				depth++
			}
		case xml.EndElement:
			if spec.text[t.Name.Local] && depth > 0 {
				depth--
			}
			if spec.paragraph[t.Name.Local] {
				flush()
			}
		case xml.CharData:
			if depth > 0 {
				para.Write(t)
			}
		}
	}
	flush()
	return out.String(), nil
}
