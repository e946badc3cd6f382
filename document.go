package edgar

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// invisible elements never contribute text. ix:header holds the hidden
// inline XBRL facts of iXBRL filings.
var invisible = map[string]bool{
	"script":    true,
	"style":     true,
	"noscript":  true,
	"head":      true,
	"template":  true,
	"ix:header": true,
}

// block elements end the current line
var block = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"title": true, "pre": true, "hr": true,
}

// ExtractText returns the visible text of an HTML document, one block per
// line. Lines go through NormalizeText and empty lines are dropped.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var lines []string
	var line strings.Builder
	flush := func() {
		if text := NormalizeText(line.String()); text != "" {
			lines = append(lines, text)
		}
		line.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			line.WriteString(n.Data)
			line.WriteByte(' ')
			return
		case html.ElementNode:
			if invisible[n.Data] {
				return
			}
			if block[n.Data] {
				flush()
				defer flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flush()

	return strings.Join(lines, "\n"), nil
}

// FetchDocumentText downloads a filing's primary document and returns its visible text
func (c *Client) FetchDocumentText(ctx context.Context, filing Filing) (string, error) {
	url := filing.URL
	if url == "" {
		url = filing.BuildURL()
	}

	resp, err := c.Get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch document %s: %w", filing.AccessionNumber, err)
	}
	defer resp.Body.Close()

	return ExtractText(resp.Body)
}
