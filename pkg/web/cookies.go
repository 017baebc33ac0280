package web

import (
	"time"

	"github.com/consentry/consentry/lib"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// ObservedCookie is one browser cookie with its value already reduced to a
// SHA-256 digest. The raw value is discarded at snapshot time and never
// crosses this boundary.
type ObservedCookie struct {
	Name        string
	Domain      string
	Path        string
	HashedValue string
	Expires     *time.Time
	Size        int
	HTTPOnly    bool
	Secure      bool
	Session     bool
	SameSite    string
}

type cookieKey struct {
	name   string
	domain string
	path   string
}

// SnapshotCookies reads the full cookie jar of the page's browser context,
// hashing every value immediately.
func SnapshotCookies(page *rod.Page) ([]ObservedCookie, error) {
	received, err := page.Cookies(nil)
	if err != nil {
		return nil, err
	}
	observed := make([]ObservedCookie, 0, len(received))
	for _, c := range received {
		observed = append(observed, observeCookie(c))
	}
	return observed, nil
}

// observeCookie reduces one CDP cookie to its observed form. Size is the
// UTF-8 byte length of the raw value, not CDP's name+value size.
func observeCookie(c *proto.NetworkCookie) ObservedCookie {
	cookie := ObservedCookie{
		Name:        c.Name,
		Domain:      c.Domain,
		Path:        c.Path,
		HashedValue: lib.HashString(c.Value),
		Size:        len(c.Value),
		HTTPOnly:    c.HTTPOnly,
		Secure:      c.Secure,
		Session:     c.Session,
		SameSite:    string(c.SameSite),
	}
	if !c.Session && c.Expires > 0 {
		expires := c.Expires.Time()
		cookie.Expires = &expires
	}
	return cookie
}

// CookieSet accumulates snapshots across all pages of one scan,
// deduplicating by (name, domain, path). The first observation of a cookie
// wins. A cookie counts as set after consent only when its first observation
// happens in the first snapshot taken after a consent click; cookies already
// present before the click keep set_after_accept=false even when they
// survive into that snapshot.
type CookieSet struct {
	order     []cookieKey
	seen      map[cookieKey]ObservedCookie
	postClick map[cookieKey]bool
	clicked   bool
}

func NewCookieSet() *CookieSet {
	return &CookieSet{
		seen:      make(map[cookieKey]ObservedCookie),
		postClick: make(map[cookieKey]bool),
	}
}

// Add merges a snapshot into the set. afterAccept marks snapshots taken
// after the consent click on a page.
func (s *CookieSet) Add(snapshot []ObservedCookie, afterAccept bool) {
	recordPostClick := afterAccept && !s.clicked
	for _, cookie := range snapshot {
		key := cookieKey{name: cookie.Name, domain: cookie.Domain, path: cookie.Path}
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = cookie
		s.order = append(s.order, key)
		if recordPostClick {
			s.postClick[key] = true
		}
	}
	if recordPostClick {
		s.clicked = true
	}
}

// Len returns the number of distinct cookies observed so far.
func (s *CookieSet) Len() int {
	return len(s.order)
}

// Final returns the deduplicated cookies in observation order together
// with their set-after-accept flag.
func (s *CookieSet) Final() []FinalCookie {
	final := make([]FinalCookie, 0, len(s.order))
	for _, key := range s.order {
		final = append(final, FinalCookie{
			ObservedCookie: s.seen[key],
			SetAfterAccept: s.postClick[key],
		})
	}
	return final
}

type FinalCookie struct {
	ObservedCookie
	SetAfterAccept bool
}
