package gateway

import (
	"net/url"
	"path"
	"strings"
)

// endpointURL joins the base URL with path segments and query
// parameters. The backend routes all end in a slash, so one is
// appended whenever the last segment does not carry one already.
func endpointURL(base string, segments []string, query url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(segments)+1)
	if u.Path != "" {
		parts = append(parts, u.Path)
	}
	for _, segment := range segments {
		if segment != "" {
			parts = append(parts, segment)
		}
	}
	if len(parts) > 0 {
		u.Path = path.Join(parts...)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}
