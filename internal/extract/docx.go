package extract

import (
	"encoding/xml"
	"strings"
)

const (
	docxDefaultPart     = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

type contentTypes struct {
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

// docxMainPart returns the main document part named in [Content_Types].xml, or the default.
func docxMainPart(data []byte) string {
	var ct contentTypes
	if err := xml.Unmarshal(data, &ct); err != nil {
		return docxDefaultPart
	}
	for _, o := range ct.Overrides {
		if o.ContentType == docxMainContentType {
			return strings.TrimPrefix(o.PartName, "/")
		}
	}
	return docxDefaultPart
}

// extractDOCX returns the text of the main document part, one line per paragraph.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	part := docxDefaultPart
	if types, err := readPart(zr, contentTypesPath); err == nil {
		part = docxMainPart(types)
	}
	data, err := readPart(zr, part)
	if err != nil {
		return "", err
	}
	return xmlText(data, ooxmlText)
}
