package search

// Highlight truncates content to at most maxLen bytes on a rune boundary and appends "...".
func Highlight(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	return head(content, maxLen) + "..."
}
