package wire

import (
	"net/url"
)

// ExtractAuthFromQuery moves an Authorization query parameter, when present,
// out of the URL and into a header map. Some hosts hand out MCP endpoints
// with the bearer token embedded in the query string; sending it as a header
// keeps it out of server access logs. The URL is returned unchanged with nil
// headers when there is nothing to extract or the URL does not parse.
func ExtractAuthFromQuery(rawURL string) (string, map[string]string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, nil
	}
	q := u.Query()
	auth := q.Get("Authorization")
	if auth == "" {
		return rawURL, nil
	}
	q.Del("Authorization")
	u.RawQuery = q.Encode()
	return u.String(), map[string]string{"Authorization": auth}
}
