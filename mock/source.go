package mock

import (
	"context"

	"github.com/fwojciec/folio"
)

var _ folio.SourceService = (*SourceService)(nil)

// SourceService is a mock implementation of folio.SourceService.
type SourceService struct {
	CreateSourceFn   func(ctx context.Context, src *folio.Source) error
	SaveSourceFn     func(ctx context.Context, src *folio.Source) error
	FindSourceByIDFn func(ctx context.Context, id string) (*folio.Source, error)
	FindSourcesFn    func(ctx context.Context, filter folio.SourceFilter) ([]*folio.Source, error)
	DeleteSourceFn   func(ctx context.Context, id string) error
}

func (s *SourceService) CreateSource(ctx context.Context, src *folio.Source) error {
	return s.CreateSourceFn(ctx, src)
}

func (s *SourceService) SaveSource(ctx context.Context, src *folio.Source) error {
	return s.SaveSourceFn(ctx, src)
}

func (s *SourceService) FindSourceByID(ctx context.Context, id string) (*folio.Source, error) {
	return s.FindSourceByIDFn(ctx, id)
}

func (s *SourceService) FindSources(ctx context.Context, filter folio.SourceFilter) ([]*folio.Source, error) {
	return s.FindSourcesFn(ctx, filter)
}

func (s *SourceService) DeleteSource(ctx context.Context, id string) error {
	return s.DeleteSourceFn(ctx, id)
}
