package grouper

import (
	"net/url"
	"strconv"
	"strings"
)

// ExtractTopicRef segments a Discourse topic URL after "/t/" into its
// numeric id and slug, tolerating a query string or fragment. Accepted
// forms: /t/{id}, /t/{slug}, /t/{slug}/{id}, /t/{slug}/{id}/{postnum}.
// The numeric id wins when both a slug and an id are present.
func ExtractTopicRef(rawURL string) (id *int, slug *string) {
	u, err := url.Parse(rawURL)
	path := rawURL
	if err == nil {
		path = u.Path
		if path == "" && u.Fragment != "" {
			path = u.Fragment
		}
	}

	idx := strings.Index(path, "/t/")
	if idx < 0 {
		return nil, nil
	}
	rest := strings.Trim(path[idx+len("/t/"):], "/")
	if rest == "" {
		return nil, nil
	}
	segments := strings.Split(rest, "/")

	switch len(segments) {
	case 1:
		if n, err := strconv.Atoi(segments[0]); err == nil {
			return &n, nil
		}
		s := segments[0]
		return nil, &s
	default:
		s := segments[0]
		if n, err := strconv.Atoi(segments[1]); err == nil {
			return &n, &s
		}
		return nil, &s
	}
}
