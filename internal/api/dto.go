package api

import (
	"github.com/starford/notecommits/internal/commits"
	"github.com/starford/notecommits/internal/render"
	"github.com/starford/notecommits/internal/spotlight"
)

// Ignore list features.
const (
	featureCommits   = "commits"
	featureSpotlight = "spotlight"
)

// TrackProjectRequest is the request body for tracking a project.
type TrackProjectRequest struct {
	Path string `json:"path" example:"Projects/Thesis" validate:"required"`
}

// ProjectResponse names a single project.
type ProjectResponse struct {
	Project string `json:"project" example:"Projects/Thesis" validate:"required"`
}

// ProjectListResponse lists the tracked projects, root first.
type ProjectListResponse struct {
	Projects []string `json:"projects" example:"/,Projects/Thesis" validate:"required"`
}

// ActivityResponse is a project's aggregate.
type ActivityResponse struct {
	Project  string             `json:"project" validate:"required"`
	Activity *commits.Aggregate `json:"activity" validate:"required"`
}

// SettingsResponse groups the settings of both features.
type SettingsResponse struct {
	Commits   commits.Settings   `json:"commits"`
	Spotlight spotlight.Settings `json:"spotlight"`
}

// SpotlightSettingsPatch carries the editable spotlight defaults.
type SpotlightSettingsPatch struct {
	DivWidth  *int `json:"divWidth,omitempty" example:"50"`
	DivHeight *int `json:"divHeight,omitempty" example:"400"`
}

// IgnoreRequest adds a note to a feature's ignore list.
type IgnoreRequest struct {
	Path    string `json:"path" example:"Daily/2026-10-19.md" validate:"required"`
	Feature string `json:"feature,omitempty" example:"commits" enums:"commits,spotlight"`
}

// IgnoreListResponse lists the ignored notes of both features.
type IgnoreListResponse struct {
	Commits   []string `json:"commits" validate:"required"`
	Spotlight []string `json:"spotlight" validate:"required"`
}

// RenderResponse is either a commit block view or a spotlight result.
type RenderResponse struct {
	View      *render.View      `json:"view,omitempty"`
	Spotlight *spotlight.Result `json:"spotlight,omitempty"`
}
