package extract

const odfContentPath = "content.xml"

// extractODF returns the paragraphs and headings of an OpenDocument file (odt, odp, ods).
func extractODF(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	data, err := readPart(zr, odfContentPath)
	if err != nil {
		return "", err
	}
	return xmlText(data, odfText)
}
