package contractor

import "context"

// ProfileReader abstracts repository operations for the service.
type ProfileReader interface {
	GetByID(ctx context.Context, id string) (Profile, error)
	GetByUserID(ctx context.Context, userID string) (Profile, error)
	ListByOrganization(ctx context.Context, organizationID string, limit int) ([]Profile, error)
}

// Service exposes the contractor directory.
type Service struct {
	repo ProfileReader
}

func NewService(repo ProfileReader) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUserID(ctx context.Context, userID string) (Profile, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *Service) List(ctx context.Context, organizationID string, limit int) ([]Profile, error) {
	return s.repo.ListByOrganization(ctx, organizationID, limit)
}
