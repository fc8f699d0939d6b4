package websearch

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/logger"
)

// DefaultFetchConcurrency bounds parallel page fetches.
const DefaultFetchConcurrency = 4

// hidden elements never contribute visible text.
var hidden = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Nav:      true,
	atom.Meta:     true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Template: true,
}

// VisibleText returns the whitespace-collapsed visible text of an HTML document.
func VisibleText(doc []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return "", err
	}
	return NodeText(root), nil
}

// NodeText returns the whitespace-collapsed visible text below n.
func NodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if hidden[n.DataAtom] {
				return
			}
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// FetchPages replaces each snippet's content with the visible text of its
// page. Pages that fail to load, are not HTML or text, or have no visible
// text keep their snippet. It only returns ctx errors.
func FetchPages(ctx context.Context, c *Client, snippets []domain.WebSnippet, concurrency int) error {
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range snippets {
		g.Go(func() error {
			text, err := fetchText(gctx, c, snippets[i].URL)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Debug("websearch: fetch %s: %v", snippets[i].URL, err)
				return nil
			}
			if text != "" {
				snippets[i].Content = text
			}
			return nil
		})
	}

	return g.Wait()
}

func fetchText(ctx context.Context, c *Client, url string) (string, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "html"):
		return VisibleText(resp.Body)
	case strings.HasPrefix(ct, "text/"):
		return strings.Join(strings.Fields(string(resp.Body)), " "), nil
	default:
		return "", nil
	}
}
