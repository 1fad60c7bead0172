package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dieharders/ai-text-server-sub000/pkg/inference"
	"github.com/dieharders/ai-text-server-sub000/pkg/llms"
	"github.com/dieharders/ai-text-server-sub000/pkg/rag"
	"github.com/dieharders/ai-text-server-sub000/pkg/tools"
	"github.com/dieharders/ai-text-server-sub000/pkg/vector"
)

var (
	errMemoryDisabled  = errors.New("Memory is not configured.")
	errHistoryDisabled = errors.New("History is disabled.")
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInference(w http.ResponseWriter, r *http.Request) {
	req := inference.NewRequest()
	if err := decodeJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}

	var sink inference.EventSink
	if req.Stream {
		sink = newSSESink(w)
	}

	res, err := s.opts.Orchestrator.Run(r.Context(), s.opts.Models.Model(), req, sink)
	if res.Streamed {
		// The stream is committed; a failure just ends it.
		if err != nil {
			slog.Warn("Stream ended with error", "request_id", inference.RequestIDFrom(r.Context()), "error", err)
		}
		return
	}
	if err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, inference.SuccessMessage, res.Response)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req llms.LoadRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.ModelID) == "" {
		fail(w, http.StatusBadRequest, errors.New("modelId is required"))
		return
	}

	model, err := s.opts.Models.Load(r.Context(), req)
	if err != nil {
		fail(w, http.StatusInternalServerError, fmt.Errorf("failed to load AI model [%s]: %w", req.ModelID, err))
		return
	}
	ok(w, fmt.Sprintf("AI model [%s] loaded.", req.ModelID), model.Info())
}

func (s *Server) handleUnload(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Models.Unload(r.Context()); err != nil && !errors.Is(err, llms.ErrNoModelLoaded) {
		fail(w, http.StatusInternalServerError, err)
		return
	}
	ok(w, "Model was ejected", nil)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	model := s.opts.Models.Current()
	if model == nil {
		writeEnvelope(w, http.StatusOK, inference.Envelope{Message: "No model is currently loaded."})
		return
	}
	ok(w, fmt.Sprintf("%s model is loaded.", model.ID()), model.Info())
}

func (s *Server) handleInstalled(w http.ResponseWriter, r *http.Request) {
	models, err := s.opts.Models.Installed(r.Context())
	if err != nil {
		fail(w, http.StatusBadGateway, err)
		return
	}
	if models == nil {
		models = []llms.InstalledModel{}
	}
	ok(w, "Installed models.", models)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		fail(w, http.StatusServiceUnavailable, errHistoryDisabled)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fail(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	entries, err := s.opts.History.List(r.Context(), limit)
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}
	ok(w, "Returned inference history.", entries)
}

func (s *Server) handleListToolSettings(w http.ResponseWriter, r *http.Request) {
	if s.opts.ToolStore == nil {
		ok(w, "Returned all tool settings.", []tools.ToolSetting{})
		return
	}
	settings, err := s.opts.ToolStore.List()
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}
	if settings == nil {
		settings = []tools.ToolSetting{}
	}
	ok(w, "Returned all tool settings.", settings)
}

func (s *Server) handleSaveToolSetting(w http.ResponseWriter, r *http.Request) {
	if s.opts.ToolStore == nil {
		fail(w, http.StatusServiceUnavailable, errors.New("User tools are not configured."))
		return
	}
	var setting tools.ToolSetting
	if err := decodeJSON(r, &setting); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}

	saved, err := s.opts.ToolStore.Save(setting)
	if err != nil {
		var settingErr *tools.SettingError
		if errors.As(err, &settingErr) {
			fail(w, http.StatusBadRequest, err)
			return
		}
		fail(w, http.StatusInternalServerError, err)
		return
	}
	s.reloadUserTools()
	ok(w, "Saved tool settings.", saved)
}

func (s *Server) handleDeleteToolSetting(w http.ResponseWriter, r *http.Request) {
	if s.opts.ToolStore == nil {
		fail(w, http.StatusServiceUnavailable, errors.New("User tools are not configured."))
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		fail(w, http.StatusBadRequest, errors.New(`Please provide an "id" value.`))
		return
	}
	if err := s.opts.ToolStore.Delete(id); err != nil {
		if errors.Is(err, tools.ErrSettingNotFound) {
			fail(w, http.StatusNotFound, err)
			return
		}
		fail(w, http.StatusBadRequest, err)
		return
	}
	s.reloadUserTools()
	ok(w, "Removed tool function.", nil)
}

func (s *Server) reloadUserTools() {
	if s.opts.UserTools == nil {
		return
	}
	if err := s.opts.UserTools.Reload(); err != nil {
		slog.Warn("Failed to reload user tools", "error", err)
	}
}

type toolView struct {
	tools.Description
	Source string `json:"source"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	list := s.opts.Tools.List()
	views := make([]toolView, 0, len(list))
	for _, t := range list {
		views = append(views, toolView{Description: s.opts.Tools.Describe(t), Source: t.Definition().Source})
	}
	ok(w, "Returned all tools.", views)
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	if s.opts.Memory == nil {
		fail(w, http.StatusServiceUnavailable, errMemoryDisabled)
		return
	}
	cols, err := s.opts.Memory.Collections(r.Context())
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}
	if cols == nil {
		cols = []vector.CollectionInfo{}
	}
	ok(w, "Returned all collections.", cols)
}

type ingestRequest struct {
	Documents []rag.IngestDocument `json:"documents"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.opts.Memory == nil {
		fail(w, http.StatusServiceUnavailable, errMemoryDisabled)
		return
	}
	name := chi.URLParam(r, "name")
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Documents) == 0 {
		fail(w, http.StatusBadRequest, errors.New("at least one document is required"))
		return
	}

	n, err := s.opts.Memory.Ingest(r.Context(), name, req.Documents)
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}
	ok(w, fmt.Sprintf("Added %d chunks to collection [%s].", n, name), map[string]any{"collection": name, "chunks": n})
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	if s.opts.Memory == nil {
		fail(w, http.StatusServiceUnavailable, errMemoryDisabled)
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.opts.Memory.DeleteCollection(r.Context(), name); err != nil {
		if errors.Is(err, vector.ErrCollectionNotFound) {
			fail(w, http.StatusNotFound, err)
			return
		}
		fail(w, http.StatusInternalServerError, err)
		return
	}
	ok(w, fmt.Sprintf("Removed collection [%s].", name), nil)
}
