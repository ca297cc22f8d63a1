package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/hpungsan/routines/internal/errors"
	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/routine"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "routines", "new"
}

// RoutineItem is one row of the list page.
type RoutineItem struct {
	Name       string
	Count      int
	Utterances []string
}

// ListPageData is the template data for the routine list page.
type ListPageData struct {
	PageData
	Items []RoutineItem
}

// EditPageData is the template data for the edit form, alone or under a detail card.
type EditPageData struct {
	PageData
	Draft        routine.Draft
	PreviousName string
	Error        string
}

// DetailPageData is the template data for the routine detail page.
type DetailPageData struct {
	EditPageData
	Definition   routine.Definition
	RenderedHTML template.HTML

	// Revision and UpdatedAt are set when the registry keeps them.
	Revision  string
	UpdatedAt time.Time
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages   map[string]*template.Template
	version string
	logger  *zap.Logger
}

// pageFiles maps a page name to its template; each is parsed over layout.html and form.html.
var pageFiles = map[string]string{
	"list":   "list.html",
	"detail": "detail.html",
	"edit":   "edit.html",
	"error":  "error.html",
}

// NewRenderer parses every page template from templateFS. It panics on a
// malformed template since they are embedded at build time.
func NewRenderer(templateFS fs.FS, version string, logger *zap.Logger) *Renderer {
	base := template.Must(template.New("layout").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "layout.html", "form.html"))

	r := &Renderer{pages: make(map[string]*template.Template, len(pageFiles)), version: version, logger: logger}
	for name, file := range pageFiles {
		r.pages[name] = template.Must(template.Must(base.Clone()).ParseFS(templateFS, file))
	}
	return r
}

// page executes the named page into a buffer first so a template failure
// still yields a clean 500.
func (r *Renderer) page(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.pages[name]
	if !ok {
		r.logger.Error("unknown page", zap.String("page", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError answers with the protocol error envelope for JSON clients and
// the error page otherwise.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	rErr, ok := errors.As(err)
	internal := !ok || rErr.Code == errors.ErrInternal
	if internal {
		r.logger.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
	}

	body, status := protocol.EncodeError(err)
	if wantsJSON(req) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return
	}

	message := "an internal error occurred"
	if !internal {
		message = rErr.Message
	}
	r.page(w, status, "error", ErrorPageData{
		PageData:   PageData{Title: fmt.Sprintf("Error %d", status), Version: r.version},
		StatusCode: status,
		Message:    message,
	})
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts a routine card to HTML, escaping the source if goldmark fails.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}
