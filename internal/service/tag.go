package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/repository"
)

// TagService reads the tag catalogue and edits tag sets on anything
// Taggable.
type TagService struct {
	repo   repository.TagRepository
	logger *slog.Logger
}

func NewTagService(repo repository.TagRepository, logger *slog.Logger) *TagService {
	return &TagService{repo: repo, logger: logger}
}

// List returns every tag, or only those of tagType when it is non-empty.
func (s *TagService) List(ctx context.Context, tagType string) ([]model.Tag, error) {
	tagType = strings.TrimSpace(tagType)
	if tagType == "" {
		return s.repo.ListTags(ctx, nil)
	}
	return s.repo.ListTags(ctx, &tagType)
}

func (s *TagService) Attach(ctx context.Context, kind model.TaggableKind, entityID, tagID, owner int64) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	if err := s.repo.AttachTag(ctx, kind, entityID, tagID, owner); err != nil {
		return err
	}
	s.logger.Debug("tag attached",
		slog.String("kind", string(kind)),
		slog.Int64("entityID", entityID),
		slog.Int64("tagID", tagID),
	)
	return nil
}

func (s *TagService) Detach(ctx context.Context, kind model.TaggableKind, entityID, tagID, owner int64) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	return s.repo.DetachTag(ctx, kind, entityID, tagID, owner)
}

func checkKind(kind model.TaggableKind) error {
	switch kind {
	case model.IngredientKind, model.DrinkKind:
		return nil
	}
	return apperror.ValidationFailed("kind", "Only ingredients and drinks carry tags")
}
