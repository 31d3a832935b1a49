// Package session — operator session.
// Holds the cookie bundle, the account's book catalog and the selection of
// one book. Sessions never log in; the operator exports the cookies of a
// browser session and hands them in.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gaurav-prasanna/bookpipe/core"
	"github.com/gaurav-prasanna/bookpipe/core/platform"
)

const (
	// DefaultShelfURL lists the books of the logged-in account.
	DefaultShelfURL = "https://digi4school.at/ebooks"
	// bookURL opens a catalog entry by id.
	bookURL = "https://digi4school.at/ebook/%s"
)

var (
	// ErrAbort means the operator chose the abort entry.
	ErrAbort = errors.New("aborted by operator")
	// ErrOutOfRange means the selection names no catalog entry.
	ErrOutOfRange = errors.New("selection out of range")
	// ErrNoCookies means no session cookie was supplied.
	ErrNoCookies = errors.New("no session cookies supplied")
)

// CatalogEntry is one book of the account's shelf.
type CatalogEntry struct {
	ID    string
	Title string
	Href  string // resolved link of the entry, may be empty
}

// Session is an authenticated cookie bundle and the catalog it can see.
type Session struct {
	Cookies []*http.Cookie
	Catalog []CatalogEntry
}

// ParseCookies parses one or more Cookie-header style bundles
// ("a=1; b=2"). Empty bundles are ignored.
func ParseCookies(bundles ...string) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	for _, raw := range bundles {
		raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Cookie:"))
		raw = strings.TrimRight(raw, "; ")
		if raw == "" {
			continue
		}
		parsed, err := http.ParseCookie(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing cookies: %w", err)
		}
		cookies = append(cookies, parsed...)
	}
	if len(cookies) == 0 {
		return nil, ErrNoCookies
	}
	return cookies, nil
}

// LoadCatalog reads the shelf page and returns its books in page order.
func LoadCatalog(ctx context.Context, f core.Fetcher, shelfURL string) ([]CatalogEntry, error) {
	if shelfURL == "" {
		shelfURL = DefaultShelfURL
	}
	res, err := f.Fetch(ctx, shelfURL)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	base, err := url.Parse(res.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog URL: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	var entries []CatalogEntry
	doc.Find("a.bag[data-id]").Each(func(_ int, s *goquery.Selection) {
		id := strings.TrimSpace(s.AttrOr("data-id", ""))
		if id == "" {
			return
		}
		e := CatalogEntry{ID: id, Title: strings.TrimSpace(s.Find("h1").First().Text())}
		if href := strings.TrimSpace(s.AttrOr("href", "")); href != "" {
			if ref, err := url.Parse(href); err == nil {
				e.Href = base.ResolveReference(ref).String()
			}
		}
		entries = append(entries, e)
	})
	return entries, nil
}

// SelectDocument picks a catalog entry by its listed index. The index
// right after the last entry is the abort entry.
func (s *Session) SelectDocument(index int) (CatalogEntry, error) {
	switch {
	case index == len(s.Catalog):
		return CatalogEntry{}, ErrAbort
	case index < 0 || index > len(s.Catalog):
		return CatalogEntry{}, fmt.Errorf("%w: %d (0..%d)", ErrOutOfRange, index, len(s.Catalog))
	}
	return s.Catalog[index], nil
}

// PrintCatalog writes the numbered catalog followed by the abort entry.
func PrintCatalog(w io.Writer, entries []CatalogEntry) {
	const rule = "----------------------------------------------------------------"
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total amount of books: %d\n", len(entries))
	fmt.Fprintln(w, rule)
	for i, e := range entries {
		fmt.Fprintf(w, "%02d | %s\n", i, e.Title)
	}
	fmt.Fprintf(w, "%02d | abort\n", len(entries))
	fmt.Fprintln(w, rule)
}

// Open follows a catalog entry to the reader it redirects to and resolves
// the hosting platform from where it lands.
func Open(ctx context.Context, f core.Fetcher, entry CatalogEntry, logger *slog.Logger) (core.DocumentHandle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	target := entry.Href
	if target == "" {
		target = fmt.Sprintf(bookURL, url.PathEscape(entry.ID))
	}
	res, err := f.Fetch(ctx, target)
	if err != nil {
		return core.DocumentHandle{}, fmt.Errorf("opening book %s: %w", entry.ID, err)
	}
	landing := res.URL
	if next, ok := metaRefresh(res); ok {
		logger.Debug("Following meta refresh.", "from", landing, "to", next)
		if res, err = f.Fetch(ctx, next); err != nil {
			return core.DocumentHandle{}, fmt.Errorf("opening book %s: %w", entry.ID, err)
		}
		landing = res.URL
	}

	handle := platform.Resolve(core.DocumentHandle{
		DocumentID: entry.ID,
		Title:      entry.Title,
		LandingURL: landing,
	}, logger)
	logger.Info("Opened book.", "id", entry.ID, "title", entry.Title, "platform", handle.Platform.String(), "url", landing)
	return handle, nil
}

// metaRefresh returns the target of an HTML meta refresh, if any.
func metaRefresh(res *core.FetchResult) (string, bool) {
	if !strings.Contains(strings.ToLower(res.ContentType), "html") {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return "", false
	}
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(s.AttrOr("http-equiv", ""), "refresh") {
			content = s.AttrOr("content", "")
			return false
		}
		return true
	})
	_, after, ok := strings.Cut(content, "=")
	if !ok {
		return "", false
	}
	base, err := url.Parse(res.URL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.Trim(strings.TrimSpace(after), `'"`))
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}
