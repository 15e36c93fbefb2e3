package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// GetText concatenates every text node under the given node.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// FirstText returns the leading text run of a node, the text that
// appears before its first child element.
func FirstText(node *html.Node) string {
	if node == nil {
		return ""
	}
	child := node.FirstChild
	if child == nil || child.Type != html.TextNode {
		return ""
	}
	return child.Data
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// CollapseSpace trims a string and squeezes every inner whitespace run
// down to a single space.
func CollapseSpace(s string) string {
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}
