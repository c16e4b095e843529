package indexer

import "strings"

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// flattenLines replaces line breaks with spaces before text is sent for embedding.
func flattenLines(text string) string {
	return lineBreaks.Replace(text)
}
