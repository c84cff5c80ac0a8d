// Utilities for parsing cURL commands.
package shared

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`(?:-H|--header)\s+'([^']+)'|(?:-H|--header)\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
	curlMethodRe = regexp.MustCompile(`(?:-X|--request)\s+'?"?([A-Za-z]+)`)
	curlDataRe   = regexp.MustCompile(`(?:--data-raw|--data-binary|--data|-d)\s+'([^']*)'|(?:--data-raw|--data-binary|--data|-d)\s+"([^"]*)"`)
	curlURLRe    = regexp.MustCompile(`curl\s+'([^']+)'|curl\s+"([^"]+)"|curl\s+(https?://\S+)|\s'(https?://[^']+)'|\s(https?://\S+)`)
)

// CurlRequest represents a request captured as a cURL command, e.g. via "Copy as cURL" in browser DevTools.
type CurlRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Cookie  string
	Body    string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts the request.
func ParseCurlFile(filepath string) (*CurlRequest, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurlCommand(string(content))
}

// ParseCurlCommand parses a cURL command string into a [CurlRequest].
//
// The method defaults to GET, or POST when a body is present.
// The cookie is kept apart from the headers; -b takes precedence over a Cookie header.
func ParseCurlCommand(curlCmd string) (*CurlRequest, error) {
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	req := &CurlRequest{Headers: make(map[string]string)}

	var headerCookie string
	for _, match := range curlHeaderRe.FindAllStringSubmatch(curlCmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if strings.EqualFold(key, "cookie") {
			if headerCookie == "" {
				headerCookie = value
			}
			continue
		}
		req.Headers[key] = value
	}

	if m := curlCookieRe.FindStringSubmatch(curlCmd); m != nil {
		req.Cookie = firstGroup(m)
	} else {
		req.Cookie = headerCookie
	}

	if m := curlDataRe.FindStringSubmatch(curlCmd); m != nil {
		req.Body = firstGroup(m)
	}

	if m := curlURLRe.FindStringSubmatch(curlCmd); m != nil {
		req.URL = firstGroup(m)
	}

	switch m := curlMethodRe.FindStringSubmatch(curlCmd); {
	case m != nil:
		req.Method = strings.ToUpper(m[1])
	case req.Body != "":
		req.Method = http.MethodPost
	default:
		req.Method = http.MethodGet
	}

	if req.URL == "" && len(req.Headers) == 0 && req.Cookie == "" {
		return nil, fmt.Errorf("%w: no url or headers found in curl command", ErrInvalidInput)
	}

	return req, nil
}

// HeadersWithCookie returns the parsed headers with the cookie folded back in as a Cookie header.
func (c *CurlRequest) HeadersWithCookie() map[string]string {
	headers := make(map[string]string, len(c.Headers)+1)
	for k, v := range c.Headers {
		headers[k] = v
	}
	if c.Cookie != "" {
		headers["Cookie"] = c.Cookie
	}
	return headers
}

func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
