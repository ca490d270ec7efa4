package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/drink-tracker/internal/model"
)

type TagService interface {
	List(ctx context.Context, tagType string) ([]model.Tag, error)
	Attach(ctx context.Context, kind model.TaggableKind, entityID, tagID, owner int64) error
	Detach(ctx context.Context, kind model.TaggableKind, entityID, tagID, owner int64) error
}

// TagHandler serves the tag catalogue and tag edits on ingredients and
// drinks. The edit routes are the same for both kinds, so they are built per
// kind by HandleAttach and HandleDetach.
type TagHandler struct {
	tags   TagService
	logger *slog.Logger
}

func NewTagHandler(tags TagService, logger *slog.Logger) *TagHandler {
	return &TagHandler{tags: tags, logger: logger}
}

type tagsResponse struct {
	Tags []model.Tag `json:"tags"`
}

// HandleList returns every tag, or those of one type.
//
// HTTP: GET /api/tags?type=spirit
func (h *TagHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.tags.List(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []model.Tag{}
	}
	writeJSON(w, http.StatusOK, tagsResponse{Tags: list})
}

// HandleAttach returns the handler for PUT /api/{kind}s/{id}/tags/{tag_id}.
func (h *TagHandler) HandleAttach(kind model.TaggableKind) http.HandlerFunc {
	return h.edit(kind, h.tags.Attach)
}

// HandleDetach returns the handler for DELETE /api/{kind}s/{id}/tags/{tag_id}.
func (h *TagHandler) HandleDetach(kind model.TaggableKind) http.HandlerFunc {
	return h.edit(kind, h.tags.Detach)
}

type tagEdit func(ctx context.Context, kind model.TaggableKind, entityID, tagID, owner int64) error

func (h *TagHandler) edit(kind model.TaggableKind, apply tagEdit) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := currentUser(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		entityID, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		tagID, err := pathID(r, "tag_id")
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}

		if err := apply(r.Context(), kind, entityID, tagID, owner); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
