package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/dfryer1193/photolog/photos/domain"
	"github.com/rs/zerolog/log"
)

// PhotoService is the entry point the presentation layer calls.
// It holds no copy of the catalog; callers re-fetch with ListPhotos after every change.
type PhotoService struct {
	repo     domain.PhotoRepository
	markdown DescriptionRenderer
}

// PhotoView is a photo prepared for display in a list or detail screen
type PhotoView struct {
	domain.Photo
	DisplayTitle    string
	Snippet         string
	DescriptionHTML string
}

func NewPhotoService(repo domain.PhotoRepository, markdown DescriptionRenderer) *PhotoService {
	if markdown == nil {
		markdown = NewMarkdownRenderer()
	}
	return &PhotoService{
		repo:     repo,
		markdown: markdown,
	}
}

// AddPhoto persists a new photo and returns its ID
func (s *PhotoService) AddPhoto(ctx context.Context, p *domain.Photo) (int64, error) {
	id, err := s.repo.Insert(ctx, p)
	if err != nil {
		logFailure(err, "Failed to add photo")
		return 0, err
	}

	log.Info().Int64("photoID", id).Time("createdAt", p.CreatedAt).Msg("Added photo")
	return id, nil
}

// EditPhoto changes the title and description of a photo.
// It reports false when the photo does not exist.
func (s *PhotoService) EditPhoto(ctx context.Context, id int64, title, description string) (bool, error) {
	affected, err := s.repo.Update(ctx, &domain.Photo{
		ID:          id,
		Title:       title,
		Description: description,
	})
	if err != nil {
		logFailure(err, "Failed to edit photo")
		return false, err
	}

	log.Info().Int64("photoID", id).Int64("rowsAffected", affected).Msg("Edited photo")
	return affected > 0, nil
}

// RemovePhoto deletes a photo. It reports false when the photo was already gone.
func (s *PhotoService) RemovePhoto(ctx context.Context, id int64) (bool, error) {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		logFailure(err, "Failed to remove photo")
		return false, err
	}

	log.Info().Int64("photoID", id).Int64("rowsAffected", affected).Msg("Removed photo")
	return affected > 0, nil
}

// ClearCatalog deletes every photo and returns how many were removed
func (s *PhotoService) ClearCatalog(ctx context.Context) (int64, error) {
	affected, err := s.repo.DeleteAll(ctx)
	if err != nil {
		logFailure(err, "Failed to clear catalog")
		return 0, err
	}

	log.Info().Int64("rowsAffected", affected).Msg("Cleared catalog")
	return affected, nil
}

// ListPhotos returns the whole catalog, newest first
func (s *PhotoService) ListPhotos(ctx context.Context) ([]domain.Photo, error) {
	photos, err := s.repo.ListAll(ctx)
	if err != nil {
		logFailure(err, "Failed to list photos")
		return nil, err
	}

	log.Debug().Int("photos", len(photos)).Msg("Listed photos")
	return photos, nil
}

// GetPhoto returns one photo, or an error matching domain.ErrNotFound when it does not exist
func (s *PhotoService) GetPhoto(ctx context.Context, id int64) (domain.Photo, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		logFailure(err, "Failed to get photo")
	}
	return p, err
}

// Present renders a photo for display
func (s *PhotoService) Present(p domain.Photo) (PhotoView, error) {
	view := PhotoView{
		Photo:        p,
		DisplayTitle: displayTitle(p.Title),
	}
	if p.Description == "" {
		return view, nil
	}

	result, err := s.markdown.Render(p.Description)
	if err != nil {
		return PhotoView{}, fmt.Errorf("failed to render description of photo %d: %w", p.ID, err)
	}
	view.Snippet = result.Snippet
	view.DescriptionHTML = string(result.HTML)
	return view, nil
}

// logFailure logs caller mistakes quietly and storage faults loudly
func logFailure(err error, msg string) {
	if errors.Is(err, domain.ErrValidation) {
		log.Warn().Err(err).Msg(msg)
		return
	}
	log.Error().Err(err).Msg(msg)
}
