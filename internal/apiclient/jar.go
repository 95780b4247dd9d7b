package apiclient

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
)

// Jar is a cookie jar that can be cleared on logout and exported for
// persistence between processes.
type Jar struct {
	mutex sync.RWMutex
	inner *cookiejar.Jar
}

// NewJar constructs an empty jar.
func NewJar() *Jar {
	inner, _ := cookiejar.New(nil)
	return &Jar{inner: inner}
}

// SetCookies implements http.CookieJar.
func (jar *Jar) SetCookies(target *url.URL, cookies []*http.Cookie) {
	jar.mutex.RLock()
	defer jar.mutex.RUnlock()
	jar.inner.SetCookies(target, cookies)
}

// Cookies implements http.CookieJar.
func (jar *Jar) Cookies(target *url.URL) []*http.Cookie {
	jar.mutex.RLock()
	defer jar.mutex.RUnlock()
	return jar.inner.Cookies(target)
}

// Reset drops every stored cookie.
func (jar *Jar) Reset() {
	inner, _ := cookiejar.New(nil)
	jar.mutex.Lock()
	defer jar.mutex.Unlock()
	jar.inner = inner
}
