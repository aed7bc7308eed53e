package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/starford/notecommits/internal/apperr"
	"github.com/starford/notecommits/internal/commits"
	"github.com/starford/notecommits/internal/render"
	"github.com/starford/notecommits/internal/spotlight"
	"github.com/starford/notecommits/internal/tracker"
)

// Handler holds API route handlers.
type Handler struct {
	tracker   *tracker.Tracker
	spotlight *spotlight.Service
}

// NewHandler creates a new Handler.
func NewHandler(tr *tracker.Tracker, spot *spotlight.Service) *Handler {
	return &Handler{tracker: tr, spotlight: spot}
}

// wildcardPath extracts the path after the route prefix.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	var verr validation.Errors
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody(verr.Error()))
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrNotTracked):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrAlreadyExists), errors.Is(err, apperr.ErrAlreadyTracked):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrRootProject), errors.Is(err, apperr.ErrInvalidProject), errors.Is(err, apperr.ErrInvalidPath):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListProjects handles GET /api/projects.
//
//	@Summary		List tracked projects
//	@Tags			projects
//	@Produce		json
//	@Success		200	{object}	ProjectListResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, _ *http.Request) {
	keys := h.tracker.Projects()
	out := ProjectListResponse{Projects: make([]string, len(keys))}
	for i, k := range keys {
		out.Projects[i] = string(k)
	}
	writeJSON(w, http.StatusOK, out)
}

// TrackProject handles POST /api/projects.
//
//	@Summary		Track a folder as a project
//	@Tags			projects
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TrackProjectRequest	true	"Project folder"
//	@Success		201		{object}	ProjectResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects [post]
func (h *Handler) TrackProject(w http.ResponseWriter, r *http.Request) {
	var req TrackProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key, err := h.tracker.Track(r.Context(), req.Path)
	if err != nil {
		writeError(w, "track project", err)
		return
	}
	writeJSON(w, http.StatusCreated, ProjectResponse{Project: string(key)})
}

// UntrackProject handles DELETE /api/projects/*.
//
//	@Summary		Stop tracking a project
//	@Tags			projects
//	@Param			path	path	string	true	"Project folder"
//	@Success		204		"Project untracked"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{path} [delete]
func (h *Handler) UntrackProject(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if _, err := h.tracker.Untrack(p); err != nil {
		writeError(w, "untrack project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Activity handles GET /api/activity.
//
//	@Summary		Get a project's commit aggregate
//	@Tags			projects
//	@Produce		json
//	@Param			project	query		string	false	"Project folder, root when empty"
//	@Success		200		{object}	ActivityResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/activity [get]
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	agg, err := h.tracker.Activity(project)
	if err != nil {
		writeError(w, "activity", err)
		return
	}
	if project == "" {
		project = "/"
	}
	writeJSON(w, http.StatusOK, ActivityResponse{Project: project, Activity: agg})
}

// Render handles POST /api/render/{kind}.
//
//	@Summary		Render a commit or spotlight block
//	@Tags			render
//	@Accept			plain
//	@Produce		json
//	@Param			kind			path		string	true	"Block kind"	Enums(commit-types, commit-weekly, commit-daily, commit-recent, spotlight-note, spotlight-block)
//	@Param			X-Source-Path	header		string	false	"Path of the note holding the block"
//	@Param			body			body		string	false	"Block source (key=value lines)"
//	@Success		200				{object}	RenderResponse
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render/{kind} [post]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	src, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	kind := chi.URLParam(r, "kind")

	switch kind {
	case spotlight.KindNote, spotlight.KindBlock:
		res, err := h.spotlight.Spotlight(r.Context(), spotlight.Request{
			Source:      string(src),
			CurrentPath: r.Header.Get("X-Source-Path"),
			Block:       kind == spotlight.KindBlock,
		})
		if err != nil {
			writeError(w, "spotlight", err)
			return
		}
		writeJSON(w, http.StatusOK, RenderResponse{Spotlight: res})
	default:
		view, err := h.tracker.Render(kind, string(src))
		if errors.Is(err, render.ErrUnknownKind) {
			writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
			return
		}
		if err != nil {
			writeError(w, "render", err)
			return
		}
		writeJSON(w, http.StatusOK, RenderResponse{View: view})
	}
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Get commit and spotlight settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SettingsResponse{
		Commits:   h.tracker.Settings(),
		Spotlight: h.spotlight.Settings(),
	})
}

// PatchSettings handles PATCH /api/settings. Fields left out keep their value.
//
//	@Summary		Update settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [patch]
func (h *Handler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Commits   json.RawMessage         `json:"commits"`
		Spotlight *SpotlightSettingsPatch `json:"spotlight"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	// Both halves are validated before either is saved.
	var nextCommits *commits.Settings
	if len(req.Commits) > 0 {
		cur := h.tracker.Settings()
		if err := json.Unmarshal(req.Commits, &cur); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid commits settings"))
			return
		}
		if err := cur.Validate(); err != nil {
			writeError(w, "update commit settings", err)
			return
		}
		nextCommits = &cur
	}
	var nextSpot *spotlight.Settings
	if req.Spotlight != nil {
		cur := h.spotlight.Settings()
		if req.Spotlight.DivWidth != nil {
			cur.DivWidth = *req.Spotlight.DivWidth
		}
		if req.Spotlight.DivHeight != nil {
			cur.DivHeight = *req.Spotlight.DivHeight
		}
		if err := cur.Validate(); err != nil {
			writeError(w, "update spotlight settings", err)
			return
		}
		nextSpot = &cur
	}

	if nextCommits != nil {
		if _, err := h.tracker.UpdateSettings(*nextCommits); err != nil {
			writeError(w, "update commit settings", err)
			return
		}
	}
	if nextSpot != nil {
		if _, err := h.spotlight.UpdateSettings(nextSpot.DivWidth, nextSpot.DivHeight); err != nil {
			writeError(w, "update spotlight settings", err)
			return
		}
	}
	h.GetSettings(w, r)
}

// ListIgnored handles GET /api/ignore.
//
//	@Summary		List ignored notes
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	IgnoreListResponse
//	@Security		BearerAuth
//	@Router			/ignore [get]
func (h *Handler) ListIgnored(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, IgnoreListResponse{
		Commits:   h.tracker.IgnoreList(),
		Spotlight: h.spotlight.Settings().IgnoreList,
	})
}

// Ignore handles POST /api/ignore.
//
//	@Summary		Add a note to an ignore list
//	@Tags			settings
//	@Accept			json
//	@Param			body	body	IgnoreRequest	true	"Note and feature"
//	@Success		204		"Note ignored"
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ignore [post]
func (h *Handler) Ignore(w http.ResponseWriter, r *http.Request) {
	var req IgnoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var err error
	switch req.Feature {
	case "", featureCommits:
		err = h.tracker.Ignore(req.Path)
	case featureSpotlight:
		err = h.spotlight.Ignore(req.Path)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown feature"))
		return
	}
	if err != nil {
		writeError(w, "ignore", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unignore handles DELETE /api/ignore/*.
//
//	@Summary		Remove a note from an ignore list
//	@Tags			settings
//	@Param			path	path	string	true	"Note path"
//	@Param			feature	query	string	false	"Feature"	Enums(commits, spotlight)
//	@Success		204		"Note unignored"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ignore/{path} [delete]
func (h *Handler) Unignore(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var err error
	switch r.URL.Query().Get("feature") {
	case "", featureCommits:
		err = h.tracker.Unignore(p)
	case featureSpotlight:
		err = h.spotlight.Unignore(p)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown feature"))
		return
	}
	if err != nil {
		writeError(w, "unignore", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
