// Package platformtest provides an in-memory hosting platform for tests:
// an httptest server that serves registered paths and counts requests.
package platformtest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
)

// NotFoundPage is the body digi4school serves for a missing page SVG.
const NotFoundPage = `<!DOCTYPE html><html><head><title>Fehler</title></head>
<body><div class="content"><h3>digi4school - Fehler</h3><p>Die Seite konnte nicht gefunden werden.</p></div></body></html>`

type file struct {
	contentType string
	body        []byte
}

// Server serves registered files by URL path. Unknown paths get
// NotFoundPage with NotFoundStatus.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	files          map[string]file
	redirects      map[string]string
	hits           map[string]int
	notFoundStatus int
}

// NewServer starts a Server. Close it when done.
func NewServer() *Server {
	s := &Server{
		files:          make(map[string]file),
		redirects:      make(map[string]string),
		hits:           make(map[string]int),
		notFoundStatus: http.StatusOK,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// SetNotFoundStatus sets the status code of the not-found page.
func (s *Server) SetNotFoundStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notFoundStatus = code
}

// Handle registers body under path.
func (s *Server) Handle(path, contentType string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = file{contentType: contentType, body: body}
}

// HandleHTML registers an HTML page under path.
func (s *Server) HandleHTML(path, html string) {
	s.Handle(path, "text/html; charset=utf-8", []byte(html))
}

// HandleSVG registers an SVG document under path.
func (s *Server) HandleSVG(path, svg string) {
	s.Handle(path, "image/svg+xml", []byte(svg))
}

// Redirect makes path answer with a redirect to target.
func (s *Server) Redirect(path, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects[path] = target
}

// Hits returns how often path was requested.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests served.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hits {
		n += h
	}
	return n
}

// ResetHits clears the request counters.
func (s *Server) ResetHits() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = make(map[string]int)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	target, redirect := s.redirects[r.URL.Path]
	f, ok := s.files[r.URL.Path]
	status := s.notFoundStatus
	s.mu.Unlock()

	if redirect {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	if !ok {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(NotFoundPage))
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	w.Write(f.body)
}

// PNG returns an encoded w×h PNG filled with c.
func PNG(w, h int, c color.Color) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h, c)); err != nil {
		panic(fmt.Sprintf("platformtest: encoding png: %v", err))
	}
	return buf.Bytes()
}

// JPEG returns an encoded w×h JPEG filled with c.
func JPEG(w, h int, c color.Color) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h, c), nil); err != nil {
		panic(fmt.Sprintf("platformtest: encoding jpeg: %v", err))
	}
	return buf.Bytes()
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// ReaderPage returns a vector reader page whose #btnFirst and #btnLast
// controls lead to readerPath?page=first and readerPath?page=last, and
// whose object element points at objectPath.
func ReaderPage(readerPath string, first, last int, objectPath string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><body>
<div id="toolbar">
  <a id="btnFirst" href="%[1]s?page=%[2]d">first</a>
  <a id="btnNext" href="%[1]s?page=%[2]d">next</a>
  <a id="btnLast" href="%[1]s?page=%[3]d">last</a>
</div>
<div id="pg"><object type="image/svg+xml" data="%[4]s"></object></div>
</body></html>`, readerPath, first, last, objectPath)
}

// ScookFrame returns a raster reader frame. The .go-first and .go-last
// controls lead to framePath/first and framePath/last.
func ScookFrame(framePath string, current int, imageSrc string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><body>
<div class="toolbar">
  <button class="btn go-first" data-href="%[1]s/first">«</button>
  <input class="current-page" type="text" placeholder="%[2]d">
  <button class="btn go-last" data-href="%[1]s/last">»</button>
</div>
<div class="viewer"><div class="page"><img src="%[3]s"></div></div>
</body></html>`, framePath, current, imageSrc)
}
