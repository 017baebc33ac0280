package lib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBaseURL(t *testing.T) {
	base, err := GetBaseURL("https://example.test/some/path?x=1")
	assert.Nil(t, err)
	assert.Equal(t, "https://example.test", base)

	_, err = GetBaseURL("not a url")
	assert.NotNil(t, err)
}

func TestBaseDomain(t *testing.T) {
	assert.Equal(t, "example.com", BaseDomain("www.example.com"))
	assert.Equal(t, "example.com", BaseDomain("a.b.example.com"))
	assert.Equal(t, "example.com", BaseDomain("example.com"))
	assert.Equal(t, "example.com", BaseDomain("Example.COM"))
	assert.Equal(t, "example.com", BaseDomain("example.com:8080"))
	assert.Equal(t, "localhost", BaseDomain("localhost"))
}

func TestIsFirstPartyCookieDomain(t *testing.T) {
	assert.True(t, IsFirstPartyCookieDomain(".example.com", "www.example.com"))
	assert.True(t, IsFirstPartyCookieDomain("shop.example.com", "www.example.com"))
	assert.True(t, IsFirstPartyCookieDomain("example.com", "example.com"))
	assert.False(t, IsFirstPartyCookieDomain(".tracker.net", "www.example.com"))
	assert.False(t, IsFirstPartyCookieDomain("google.com", "example.com"))
}

func TestSameSiteHost(t *testing.T) {
	assert.True(t, SameSiteHost("https://a.test", "https://a.test/p1"))
	assert.False(t, SameSiteHost("https://a.test", "https://b.test/x"))
	assert.False(t, SameSiteHost("https://a.test", "://broken"))
}

func TestResolveCustomPage(t *testing.T) {
	resolved, err := ResolveCustomPage("https://example.test", "/privacy")
	assert.Nil(t, err)
	assert.Equal(t, "https://example.test/privacy", resolved)

	resolved, err = ResolveCustomPage("https://example.test/home", "contact")
	assert.Nil(t, err)
	assert.Equal(t, "https://example.test/contact", resolved)

	resolved, err = ResolveCustomPage("https://example.test", "https://other.test/terms")
	assert.Nil(t, err)
	assert.Equal(t, "https://other.test/terms", resolved)
}
