package extract

import (
	"sort"
	"strconv"
	"strings"
)

const (
	pptxSlidePrefix = "ppt/slides/slide"
	pptxSlideSuffix = ".xml"
)

// slideNumber returns N for ppt/slides/slideN.xml.
func slideNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, pptxSlidePrefix) || !strings.HasSuffix(name, pptxSlideSuffix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, pptxSlidePrefix), pptxSlideSuffix))
	return n, err == nil
}

// extractPPTX returns the text of every slide in slide order. Slides are separated by a blank line.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if n, ok := slideNumber(f.Name); ok {
			slides = append(slides, slide{n, f.Name})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var texts []string
	for _, s := range slides {
		data, err := readPart(zr, s.name)
		if err != nil {
			return "", err
		}
		text, err := xmlText(data, ooxmlText)
		if err != nil {
			return "", err
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}
