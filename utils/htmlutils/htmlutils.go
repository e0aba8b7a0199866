// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

// Package htmlutils provides utility functions for working with HTML.
package htmlutils

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// ErrSessionExpired is returned when a page that requires a session
// answers with its login form instead.
var ErrSessionExpired = errors.New("session expired")

// Node2string appends to sb the text content of n, one space between text nodes.
func Node2string(n *html.Node, sb *strings.Builder) (err error) {
	if n.Type == html.TextNode {
		tmp := strings.Join(strings.Fields(n.Data), " ")

		// a REPLACEMENT CHARACTER (U+FFFD) means that we
		// are reading the page with the incorrect charset
		if idx := strings.IndexRune(tmp, utf8.RuneError); idx != -1 {
			err = fmt.Errorf("charset missmatch found: `%s'", tmp)
		}

		if err == nil && len(tmp) > 0 {
			if sb.Len() != 0 {
				sb.WriteByte(' ')
			}

			sb.WriteString(tmp)
		}
	} else if n.Type != html.CommentNode {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode && (child.Data == "script" || child.Data == "style") {
				continue
			}

			err = Node2string(child, sb)
			if err != nil {
				break
			}
		}
	}

	return err
}

// Text returns the text content of n, ignoring charset errors.
func Text(n *html.Node) string {
	sb := strings.Builder{}
	_ = Node2string(n, &sb)

	return sb.String()
}

// Lines returns the text content of n keeping <br> and block boundaries as new lines.
func Lines(n *html.Node) string {
	sb := strings.Builder{}

	var visit func(*html.Node)

	visit = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				sb.WriteString(s)
			}
		case html.ElementNode:
			if n.Data == "br" {
				sb.WriteByte('\n')

				return
			}

			fallthrough
		default:
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				visit(child)
			}

			if n.Type == html.ElementNode && (n.Data == "p" || n.Data == "div" || n.Data == "li") {
				sb.WriteByte('\n')
			}
		}
	}
	visit(n)

	return strings.TrimSpace(sb.String())
}

// Attr returns the value of the attribute named key, or "" when missing.
func Attr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(key, attr.Key) {
			return attr.Val
		}
	}

	return ""
}

// HasClass reports whether n is an element whose class list contains token.
func HasClass(n *html.Node, token string) bool {
	if n.Type != html.ElementNode {
		return false
	}

	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == token {
			return true
		}
	}

	return false
}

// ClassHasPrefix reports whether n is an element whose class attribute
// starts with prefix, the same as a [class^='prefix'] CSS selector.
func ClassHasPrefix(n *html.Node, prefix string) bool {
	return n.Type == html.ElementNode && strings.HasPrefix(Attr(n, "class"), prefix)
}

// IsElement reports whether n is a tag element.
func IsElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && strings.EqualFold(tag, n.Data)
}

// FindAll returns, in document order, every descendant of n (n included)
// that matches. It doesn't descend into matching nodes.
func FindAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var ret []*html.Node

	var visit func(*html.Node)

	visit = func(n *html.Node) {
		if match(n) {
			ret = append(ret, n)

			return
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(n)

	return ret
}

// Find returns the first node that matches, or nil.
func Find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if ret := Find(child, match); ret != nil {
			return ret
		}
	}

	return nil
}

// ByID matches the element with the given id attribute.
func ByID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && Attr(n, "id") == id
	}
}

// Validates that response seems to be an HTML response.
func hasHTMLContentType(media string) bool {
	const expectedMedia = "text/html"

	return strings.EqualFold(
		expectedMedia,
		media[0:min(len(media), len(expectedMedia))],
	)
}

// AsReader converts an HTTP response body to an io.Reader with the correct charset.
func AsReader(resp *http.Response) (io.Reader, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	media := resp.Header.Get("Content-Type")
	if !hasHTMLContentType(media) {
		return nil, fmt.Errorf("media type is %s", media)
	}

	rr, err := charset.NewReader(resp.Body, media)
	if err != nil {
		return nil, err
	}

	return rr, nil
}

// AsNode parses an io.Reader as an HTML node.
func AsNode(r io.Reader) (*html.Node, error) {
	n, err := html.Parse(r)
	if nil != err {
		return nil, fmt.Errorf("parsing body as HTML: %w", err)
	}

	return n, nil
}

// FailIfTitle returns ErrSessionExpired when the document <title> contains
// any of the given login page titles.
func FailIfTitle(n *html.Node, titles ...string) (err error) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && strings.EqualFold("title", child.Data) {
			sb := strings.Builder{}

			err = Node2string(child, &sb)
			if err != nil {
				break
			}

			for _, title := range titles {
				if strings.Contains(strings.ToLower(sb.String()), strings.ToLower(title)) {
					return ErrSessionExpired
				}
			}
		} else if child.Type == html.ElementNode && strings.EqualFold("body", child.Data) {
			// we're done
			break
		} else {
			err = FailIfTitle(child, titles...)
			if err != nil {
				break
			}
		}
	}

	return err
}
