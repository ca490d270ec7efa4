package service

import (
	"context"
	"log/slog"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/repository"
)

// SessionService manages drinking sessions. Every operation is scoped to
// the owner; sessions are never public.
type SessionService struct {
	repo   repository.SessionRepository
	logger *slog.Logger
}

func NewSessionService(repo repository.SessionRepository, logger *slog.Logger) *SessionService {
	return &SessionService{repo: repo, logger: logger}
}

func (s *SessionService) Create(ctx context.Context, owner int64) (int64, error) {
	id, err := s.repo.CreateSession(ctx, owner)
	if err != nil {
		return 0, err
	}
	s.logger.Info("session created", slog.Int64("sessionID", id), slog.Int64("owner", owner))
	return id, nil
}

func (s *SessionService) List(ctx context.Context, f repository.SessionFilter) ([]model.SessionOverview, error) {
	return s.repo.ListSessions(ctx, f)
}

func (s *SessionService) Get(ctx context.Context, id, owner int64) (*model.DrinkingSession, error) {
	return s.repo.GetSession(ctx, id, owner)
}

// AddDrink records a drink in a session after checking the entry's own
// fields.
func (s *SessionService) AddDrink(ctx context.Context, owner, sessionID int64, in model.NewSessionDrink) (int64, error) {
	if in.DrinkID <= 0 || in.Quantity == nil || in.StartTime == nil {
		return 0, apperror.ValidationFailed("drink_id", "Missing fields")
	}
	if *in.Quantity <= 0 {
		return 0, apperror.ValidationFailed("quantity", "Quantity must be at least 1")
	}
	if in.EndTime.Valid && in.EndTime.Timestamp.Before(in.StartTime.Time) {
		return 0, apperror.ValidationFailed("end_time", "End time cannot be before start time")
	}
	return s.repo.AddDrinkToSession(ctx, owner, sessionID, in)
}

func (s *SessionService) RemoveDrink(ctx context.Context, owner, sessionID, pairingID int64) error {
	return s.repo.RemoveDrinkFromSession(ctx, owner, sessionID, pairingID)
}

func (s *SessionService) Delete(ctx context.Context, owner, id int64) error {
	if err := s.repo.DeleteSession(ctx, owner, id); err != nil {
		return err
	}
	s.logger.Info("session deleted", slog.Int64("sessionID", id), slog.Int64("owner", owner))
	return nil
}
