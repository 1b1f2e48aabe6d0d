package discourse

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// ParseInlineDiff splits a Discourse "inline-diff" edit rendering into the
// pre-edit and post-edit HTML fragments it was built from.
func ParseInlineDiff(fragment string) (before, after string, err error) {
	root, err := parseFragment(fragment)
	if err != nil {
		return "", "", err
	}
	stripInlineDiffWrapper(root)

	beforeNode := cloneNode(root)
	afterNode := cloneNode(root)
	resolveSide(beforeNode, true)
	resolveSide(afterNode, false)

	before = postProcess(renderChildren(beforeNode))
	after = postProcess(renderChildren(afterNode))
	return before, after, nil
}

func parseFragment(s string) (*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: 0,
	})
	if err != nil {
		return nil, err
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

// stripInlineDiffWrapper removes the outer <div class="inline-diff"> if the
// whole fragment is wrapped in one, promoting its children to the root.
func stripInlineDiffWrapper(root *html.Node) {
	if root.FirstChild == nil || root.FirstChild.NextSibling != nil {
		return
	}
	n := root.FirstChild
	if n.Type != html.ElementNode || n.Data != "div" || !hasClass(n, "inline-diff") {
		return
	}
	root.RemoveChild(n)
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		root.AppendChild(c)
		c = next
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, cls := range strings.Fields(a.Val) {
			if cls == class {
				return true
			}
		}
	}
	return false
}

func isDeletionMarkup(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.Data == "del" || hasClass(n, "diff-del"))
}

func isInsertionMarkup(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.Data == "ins" || hasClass(n, "diff-ins"))
}

// resolveSide walks the tree resolving diff markup for one side: wantBefore
// selects the pre-edit rendering, false selects post-edit.
func resolveSide(root *html.Node, wantBefore bool) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling

			remove := (wantBefore && isInsertionMarkup(c)) || (!wantBefore && isDeletionMarkup(c))
			if remove {
				n.RemoveChild(c)
				c = next
				continue
			}

			isOwnSide := (wantBefore && isDeletionMarkup(c)) || (!wantBefore && isInsertionMarkup(c))
			if isOwnSide {
				walk(c)
				if c.Data == "del" || c.Data == "ins" {
					for gc := c.FirstChild; gc != nil; {
						gcNext := gc.NextSibling
						c.RemoveChild(gc)
						n.InsertBefore(gc, c)
						gc = gcNext
					}
					n.RemoveChild(c)
				} else {
					stripDiffClasses(c)
				}
				c = next
				continue
			}

			walk(c)
			c = next
		}
	}
	walk(root)
}

func stripDiffClasses(n *html.Node) {
	for i, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		kept := make([]string, 0)
		for _, cls := range strings.Fields(a.Val) {
			if cls == "diff-del" || cls == "diff-ins" {
				continue
			}
			kept = append(kept, cls)
		}
		if len(kept) == 0 {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
		} else {
			n.Attr[i].Val = strings.Join(kept, " ")
		}
		return
	}
}

func cloneNode(n *html.Node) *html.Node {
	clone := &html.Node{Type: n.Type, Data: n.Data, DataAtom: n.DataAtom}
	clone.Attr = append([]html.Attribute(nil), n.Attr...)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(cloneNode(c))
	}
	return clone
}

func renderChildren(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

var (
	whitespaceRunRe  = regexp.MustCompile(`\s+`)
	interTagSpaceRe  = regexp.MustCompile(`>\s+<`)
	nestedMetaAnchor = regexp.MustCompile(`(<a[^>]*>)\s*<meta[^>]*>\s*`)
	outerDivRe       = regexp.MustCompile(`^<div(?:\s[^>]*)?>(.*)</div>$`)
)

// postProcess collapses whitespace, fixes a known Discourse anchor/meta
// malformation, and unwraps a single outer div if it wraps the whole result.
func postProcess(s string) string {
	s = whitespaceRunRe.ReplaceAllString(s, " ")
	s = interTagSpaceRe.ReplaceAllString(s, "><")
	s = nestedMetaAnchor.ReplaceAllString(s, "$1")
	s = strings.TrimSpace(s)
	if m := outerDivRe.FindStringSubmatch(s); m != nil {
		inner := m[1]
		if !strings.Contains(inner, "</div><div") {
			s = inner
		}
	}
	return s
}
