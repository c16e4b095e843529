package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

// zipOf builds a zip archive from name/content pairs, in order.
func zipOf(t *testing.T, parts ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for i := 0; i+1 < len(parts); i += 2 {
		fw, err := w.Create(parts[i])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(parts[i+1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func docxBody(paragraphs string) string {
	return `<w:document ` + wordNS + `><w:body>` + paragraphs + `</w:body></w:document>`
}

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		name    string
		content []byte
		ext     string
		want    string
	}{
		{"text", []byte("Hello world\nLine 2"), ".txt", "Hello world\nLine 2"},
		{"utf8", []byte("caf\xc3\xa9"), ".md", "café"},
		{"invalid utf8", []byte("hello\x80world"), ".rst", "hello�world"},
		{"bom", []byte("\xef\xbb\xbfpackage main"), ".go", "package main"},
		{"unknown extension", []byte("raw content"), ".xyz", "raw content"},
		{"no extension", []byte("Makefile rules"), "", "Makefile rules"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	f.NewSheet("Sheet2")
	f.SetCellValue("Sheet2", "A1", "Other")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if want := "Title\nValue 1\tValue 2\n\nOther"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtract_files(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(plain, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	sheet := filepath.Join(dir, "data.XLSX")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Searchable text")
	if err := f.SaveAs(sheet); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	e := NewExtractor()
	for path, want := range map[string]string{plain: "File content", sheet: "Searchable text"} {
		got, err := e.Extract(path)
		if err != nil {
			t.Fatalf("Extract(%s): %v", path, err)
		}
		if got != want {
			t.Errorf("Extract(%s) = %q, want %q", path, got, want)
		}
	}
	if _, err := e.Extract(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestExtractBytes_docx(t *testing.T) {
	e := NewExtractor()
	content := zipOf(t, "word/document.xml", docxBody(
		`<w:p w:rsidR="00A1"><w:r><w:t>Search</w:t></w:r><w:r><w:t xml:space="preserve">able docx</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>second paragraph</w:t></w:r></w:p>`))
	got, err := e.ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if want := "Searchable docx\nsecond paragraph"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_docxContentTypes(t *testing.T) {
	types := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Override ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml" PartName="/word/document2.xml"/>
</Types>`
	content := zipOf(t,
		"[Content_Types].xml", types,
		"word/document.xml", docxBody(`<w:p><w:r><w:t>wrong part</w:t></w:r></w:p>`),
		"word/document2.xml", docxBody(`<w:p><w:r><w:t>Content from document2</w:t></w:r></w:p>`))
	got, err := NewExtractor().ExtractBytes(content, "docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Content from document2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_pptx(t *testing.T) {
	slide := func(text string) string {
		return `<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` +
			text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	content := zipOf(t,
		"ppt/slides/slide10.xml", slide("Tenth slide"),
		"ppt/slides/slide2.xml", slide("Second slide"),
		"ppt/slides/slide1.xml", slide("First slide"),
		"ppt/slides/_rels/slide1.xml.rels", "<Relationships/>")
	got, err := NewExtractor().ExtractBytes(content, ".pptx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if want := "First slide\n\nSecond slide\n\nTenth slide"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	empty, err := NewExtractor().ExtractBytes(zipOf(t, "docProps/app.xml", "<Properties/>"), ".pptx")
	if err != nil || empty != "" {
		t.Errorf("presentation without slides: %q, %v", empty, err)
	}
}

func TestExtractBytes_odf(t *testing.T) {
	content := `<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"><office:body>` +
		`<text:h>Slide title</text:h><text:p>Body <text:span>text</text:span></text:p><text:p/>` +
		`</office:body></office:document-content>`
	for _, ext := range []string{".odt", ".odp", ".ods"} {
		got, err := NewExtractor().ExtractBytes(zipOf(t, "content.xml", content), ext)
		if err != nil {
			t.Fatalf("%s: %v", ext, err)
		}
		if want := "Slide title\nBody text"; got != want {
			t.Errorf("%s: got %q, want %q", ext, got, want)
		}
	}
}

func TestExtractBytes_errors(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		name    string
		content []byte
		ext     string
	}{
		{"pptx not a zip", []byte("not a zip"), ".pptx"},
		{"docx not a zip", []byte("not a zip"), ".docx"},
		{"odp without content", zipOf(t, "other.xml", "<x/>"), ".odp"},
		{"docx without document", zipOf(t, "other.xml", "<x/>"), ".docx"},
		{"odt malformed xml", zipOf(t, "content.xml", "<text:p>open"), ".odt"},
		{"pdf garbage", []byte("%PDF-garbage"), ".pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.ExtractBytes(tt.content, tt.ext); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFormats(t *testing.T) {
	e := NewExtractor()
	want := []string{".docx", ".odp", ".ods", ".odt", ".pdf", ".pptx", ".xlsx"}
	if got := e.Formats(); !reflect.DeepEqual(got, want) {
		t.Errorf("Formats() = %v, want %v", got, want)
	}
	if !e.IsDocumentFormat("PDF") || !e.IsDocumentFormat(".docx") {
		t.Error("pdf and docx should be document formats")
	}
	if e.IsDocumentFormat(".go") || e.IsDocumentFormat("") {
		t.Error("source and extensionless files are plain text")
	}
}
