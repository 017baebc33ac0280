package lib

import (
	"fmt"
	"net/url"
	"strings"
)

// GetBaseURL returns the scheme://host portion of the provided URL
func GetBaseURL(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid url: %s", urlStr)
	}
	baseURL := parsedURL.Scheme + "://" + parsedURL.Host
	return baseURL, nil
}

// BaseDomain returns the last two DNS labels of a hostname, lower-cased.
// Multi-label public suffixes (co.uk etc) are not special-cased.
func BaseDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// IsFirstPartyCookieDomain reports whether a cookie domain belongs to the
// site identified by siteHost. The leading dot browsers put on broad cookie
// domains is stripped before comparison.
func IsFirstPartyCookieDomain(cookieDomain, siteHost string) bool {
	base := BaseDomain(siteHost)
	cookieDomain = strings.ToLower(strings.TrimPrefix(cookieDomain, "."))
	return strings.HasSuffix(cookieDomain, base)
}

// SameSiteHost reports whether the link shares the host of root. Used by the
// deep scan mode to keep link-following internal.
func SameSiteHost(rootURL, link string) bool {
	root, err := url.Parse(rootURL)
	if err != nil {
		return false
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.EqualFold(root.Host, parsed.Host)
}

// ResolveCustomPage turns a custom page entry into an absolute URL. Entries
// may be absolute already or paths relative to the scan root.
func ResolveCustomPage(rootURL, entry string) (string, error) {
	if strings.HasPrefix(entry, "http://") || strings.HasPrefix(entry, "https://") {
		return entry, nil
	}
	base, err := GetBaseURL(rootURL)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(entry, "/") {
		entry = "/" + entry
	}
	return base + entry, nil
}
