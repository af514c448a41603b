package jira

import "strings"

// TextToADF converts plain text to an ADF document with one paragraph per
// line. It returns nil for empty text.
func TextToADF(text string) *ADFNode {
	if text == "" {
		return nil
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	doc := &ADFNode{Type: "doc", Version: 1, Content: make([]ADFNode, 0, len(lines))}
	for _, line := range lines {
		p := ADFNode{Type: "paragraph"}
		if line != "" {
			p.Content = []ADFNode{{Type: "text", Text: line}}
		}
		doc.Content = append(doc.Content, p)
	}
	return doc
}
