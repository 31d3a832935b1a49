// Package platform — URL rules.
// Helpers to recognise platforms and read page indices and ids from URLs.
package platform

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/gaurav-prasanna/bookpipe/core"
)

// hosts maps the landing host of each known platform.
var hosts = map[string]core.Platform{
	"a.digi4school.at": core.PlatformDigi4School,
	"a.hpthek.at":      core.PlatformHpthek,
	"www.scook.at":     core.PlatformScook,
}

// domains are the registrable domains session cookies are scoped to.
var domains = map[core.Platform]string{
	core.PlatformDigi4School: "digi4school.at",
	core.PlatformHpthek:      "hpthek.at",
	core.PlatformScook:       "scook.at",
}

// Detect picks the platform from the landing URL. ok is false when the
// host is unknown and the digi4school default was chosen.
func Detect(landingURL string) (p core.Platform, ok bool) {
	parsed, err := url.Parse(landingURL)
	if err != nil {
		return core.PlatformDigi4School, false
	}
	p, ok = hosts[strings.ToLower(parsed.Hostname())]
	if !ok {
		return core.PlatformDigi4School, false
	}
	return p, true
}

// Domain returns the cookie domain of a platform.
func Domain(p core.Platform) string {
	return domains[p]
}

// Domains returns every platform cookie domain.
func Domains() []string {
	return []string{"digi4school.at", "hpthek.at", "scook.at"}
}

// pageQuery reads the integer "page" query parameter of u.
func pageQuery(u *url.URL) (int, error) {
	raw := u.Query().Get("page")
	if raw == "" {
		return 0, fmt.Errorf("no page parameter in %s", u)
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("page parameter %q: %w", raw, err)
	}
	return n, nil
}

var integerToken = regexp.MustCompile(`\d+`)

// firstInteger returns the first run of digits in s.
func firstInteger(s string) (string, bool) {
	tok := integerToken.FindString(s)
	return tok, tok != ""
}

// origin returns scheme://host/ of u.
func origin(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
}

func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing URL %q: %w", raw, err)
	}
	return u, nil
}

// resolve resolves href against base, dropping fragments.
func resolve(base *url.URL, href string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", href, err)
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved, nil
}
