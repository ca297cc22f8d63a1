package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/routines/internal/db"
	"github.com/hpungsan/routines/internal/errors"
	"github.com/hpungsan/routines/internal/ops"
	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/registry"
	"github.com/hpungsan/routines/internal/routine"
)

// maxMessageBytes bounds a protocol envelope posted to /api/messages.
const maxMessageBytes = 1 << 20

// rowSource is implemented by registries that keep bookkeeping per routine,
// such as the local SQLite store.
type rowSource interface {
	Get(ctx context.Context, name string) (*db.Row, error)
}

// Handlers contains HTTP route handlers for the web UI and API.
type Handlers struct {
	sync      *ops.Synchronizer
	transport registry.Transport
	renderer  *Renderer
	logger    *zap.Logger
}

// HandleList handles GET /routines: list all routines.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	snapshot := h.sync.Snapshot()

	items := make([]RoutineItem, 0, len(snapshot))
	for _, name := range h.sync.Cache().Names() {
		def, ok := snapshot[name]
		if !ok {
			continue
		}
		items = append(items, RoutineItem{
			Name:       name,
			Count:      len(def.Contexts),
			Utterances: def.Utterances(),
		})
	}

	h.renderer.page(w, http.StatusOK, "list", ListPageData{
		PageData: h.page("Routines", "routines"),
		Items:    items,
	})
}

// HandleNew handles GET /new: empty edit form.
func (h *Handlers) HandleNew(w http.ResponseWriter, r *http.Request) {
	h.renderer.page(w, http.StatusOK, "edit", EditPageData{
		PageData: h.page("New routine", "new"),
	})
}

// HandleDetail handles GET /routines/{name}: routine card and edit form.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	def, ok := h.sync.Cache().Get(name)
	if !ok {
		h.renderer.renderError(w, r, errors.NewNotFound(name))
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, def)
		return
	}

	data := DetailPageData{
		EditPageData: EditPageData{
			PageData:     h.page(name, "routines"),
			Draft:        routine.DraftFromDefinition(def),
			PreviousName: name,
		},
		Definition:   def,
		RenderedHTML: renderMarkdown(routine.Markdown(def)),
	}
	if src, ok := h.transport.(rowSource); ok {
		// Missing bookkeeping only hides the revision line.
		if row, err := src.Get(r.Context(), name); err == nil {
			data.Revision = row.Revision
			data.UpdatedAt = time.Unix(row.UpdatedAt, 0)
		} else {
			h.logger.Debug("routine row unavailable", zap.String("nickname", name), zap.Error(err))
		}
	}

	h.renderer.page(w, http.StatusOK, "detail", data)
}

// HandleSave handles POST /routines: create, update or rename from the edit form.
func (h *Handlers) HandleSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	draft := routine.Draft{
		Nickname: r.FormValue("nickname"),
		Intents:  r.FormValue("intents"),
	}
	previous := r.FormValue("previous_name")

	out, err := h.sync.UpdateNickname(r.Context(), &draft, previous)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if !out.Allowed {
		status := rejectionStatus(out.Code)
		if wantsJSON(r) {
			renderJSON(w, status, out)
			return
		}
		h.renderer.page(w, status, "edit", EditPageData{
			PageData:     h.page("Edit routine", "new"),
			Draft:        draft,
			PreviousName: previous,
			Error:        out.Error,
		})
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}
	http.Redirect(w, r, "/routines/"+url.PathEscape(out.Saved), http.StatusSeeOther)
}

// HandleDelete handles DELETE /routines/{name} and the form fallback
// POST /routines/{name}/delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if strings.TrimSpace(name) == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("routine name is required"))
		return
	}

	out, err := h.sync.UpdateNickname(r.Context(), nil, name)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) || r.Method == http.MethodDelete {
		renderJSON(w, http.StatusOK, out)
		return
	}
	http.Redirect(w, r, "/routines", http.StatusSeeOther)
}

// HandleAPIList handles GET /api/routines: the cache snapshot as JSON.
func (h *Handlers) HandleAPIList(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, h.sync.Snapshot())
}

// HandleMessages handles POST /api/messages: the protocol endpoint.
// Parse requests go to the interpreter, everything else to the registry.
func (h *Handlers) HandleMessages(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		writeProtocolError(w, errors.NewInvalidRequest("request body too large or unreadable"))
		return
	}

	req, err := protocol.DecodeRequest(body)
	if err != nil {
		writeProtocolError(w, err)
		return
	}

	var resp protocol.Response
	switch m := req.(type) {
	case protocol.ParseUtterance:
		var ic *routine.IntentContext
		ic, err = h.sync.Parser().Parse(r.Context(), m)
		if err != nil {
			err = errors.NewInterpreterUnavailable(err)
		}
		resp = protocol.Parsed{Context: ic}
	case protocol.GetRegisteredNicknames:
		resp, err = h.transport.Send(r.Context(), m)
	case protocol.RegisterNickname:
		resp, err = h.transport.Send(r.Context(), m)
		if err == nil {
			// Keep the served cache (and its event stream) in step with remote writers
			if lerr := h.sync.Load(r.Context()); lerr != nil {
				h.logger.Warn("reload after remote write failed", zap.String("name", m.Name), zap.Error(lerr))
			}
		}
	default:
		err = errors.NewInvalidRequest(fmt.Sprintf("unsupported request %T", req))
	}
	if err != nil {
		h.logger.Warn("message failed", zap.String("type", string(req.RequestType())), zap.Error(err))
		writeProtocolError(w, err)
		return
	}

	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		writeProtocolError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleEvents handles GET /api/events: a server-sent stream of cache changes.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.renderer.renderError(w, r, errors.NewInternal(fmt.Errorf("streaming unsupported")))
		return
	}

	changes, cancel := h.sync.Cache().Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ": subscribed\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case change, open := <-changes:
			if !open {
				return
			}
			data, _ := json.Marshal(change)
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handlers) page(title, nav string) PageData {
	return PageData{Title: title, Version: h.renderer.version, Nav: nav}
}

// rejectionStatus maps a validation rejection to an HTTP status.
func rejectionStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrInvalidRequest:
		return http.StatusBadRequest
	case errors.ErrDuplicateName:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeProtocolError(w http.ResponseWriter, err error) {
	data, status := protocol.EncodeError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
