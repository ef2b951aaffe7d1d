package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/onodera-10002/aozora/internal/logging"
	"github.com/onodera-10002/aozora/internal/vectorstore"
)

// DefaultWebTimeout bounds one page fetch.
const DefaultWebTimeout = 30 * time.Second

// mainTextClass marks the article body element on supported book pages.
const mainTextClass = "main_text"

// WebLoader fetches a page over HTTP and extracts its article body.
//
// Pages carrying an element with class "main_text" (the digital-library
// layout the corpus comes from) yield only that element's text; other
// pages fall back to the whole document body. Ruby annotation markup
// (furigana readings in <rt>/<rp>) is dropped so the base text reads
// continuously.
type WebLoader struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

// NewWebLoader creates a loader for one URL. A non-positive timeout takes
// DefaultWebTimeout.
func NewWebLoader(url string, timeout time.Duration, logger *logging.Logger) *WebLoader {
	if timeout <= 0 {
		timeout = DefaultWebTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WebLoader{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("web"),
	}
}

// Load fetches the page and returns a single document with its extracted
// text.
func (l *WebLoader) Load(ctx context.Context) ([]vectorstore.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrExtraction, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrExtraction, l.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetching %s: status %d", ErrExtraction, l.url, resp.StatusCode)
	}

	// Older library pages are Shift_JIS; sniff and transcode.
	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrExtraction, l.url, err)
	}

	root, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrExtraction, l.url, err)
	}

	text := extractMainText(root)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, l.url)
	}

	return []vectorstore.Document{{Content: text}}, nil
}

// extractMainText returns the text of the main_text element, or the whole
// body when the page has no such element.
func extractMainText(root *html.Node) string {
	if node := findByClass(root, mainTextClass); node != nil {
		return collectText(node)
	}
	if body := findElement(root, "body"); body != nil {
		return collectText(body)
	}
	return collectText(root)
}

func findByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key != "class" {
				continue
			}
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return n
				}
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findByClass(child, class); found != nil {
			return found
		}
	}
	return nil
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, name); found != nil {
			return found
		}
	}
	return nil
}

// collectText walks the subtree gathering text nodes, skipping script and
// style blocks and ruby reading annotations.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "rt", "rp":
				return
			case "br":
				sb.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
