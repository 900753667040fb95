package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// RepositoryPort abstracts project storage.
type RepositoryPort interface {
	List(ctx context.Context, f ListFilters) ([]Project, int, error)
	Get(ctx context.Context, id int64) (Project, error)
	Create(ctx context.Context, in CreateInput) (Project, error)
	Update(ctx context.Context, id int64, p Patch) (Project, error)
	Delete(ctx context.Context, id int64) error
}

// Service validates and forwards project maintenance.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns one page of projects, latest start first.
func (s *Service) List(ctx context.Context, f ListFilters) ([]Project, shared.Pagination, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, shared.Pagination{}, shared.Validationf("projects: unknown status %q", f.Status)
	}
	f = f.normalize()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(f.Page, f.Limit, total), nil
}

// Get loads one project.
func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	if id <= 0 {
		return Project{}, shared.Validationf("projects: invalid project id")
	}
	return s.repo.Get(ctx, id)
}

// Create stores a project in the planning state.
func (s *Service) Create(ctx context.Context, in CreateInput) (Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.StartDate.IsZero() {
		return Project{}, shared.Validationf("projects: start date required")
	}
	in.StartDate = shared.StartOfDay(in.StartDate)
	if in.EndDate != nil {
		end := shared.StartOfDay(*in.EndDate)
		in.EndDate = &end
	}
	if err := in.Validate(); err != nil {
		return Project{}, err
	}
	p, err := s.repo.Create(ctx, in)
	if err != nil {
		return Project{}, customerError(in.CustomerID, err)
	}
	s.logger.InfoContext(ctx, "project created", slog.Int64("project_id", p.ID), slog.String("name", p.Name))
	return p, nil
}

// Update applies a partial update. A new end date may not precede the
// project's start date.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (Project, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	if err := p.Validate(); err != nil {
		return Project{}, err
	}
	if p.EndDate != nil {
		end := shared.StartOfDay(*p.EndDate)
		p.EndDate = &end
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return Project{}, err
		}
		if end.Before(current.StartDate) {
			return Project{}, shared.Validationf("projects: end date before start date")
		}
	}
	updated, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return Project{}, err
	}
	s.logger.InfoContext(ctx, "project updated", slog.Int64("project_id", id), slog.String("status", string(updated.Status)))
	return updated, nil
}

// Delete removes a project. Invoices billed against it keep their rows and
// lose the project reference.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "project deleted", slog.Int64("project_id", id))
	return nil
}

func customerError(customerID *int64, err error) error {
	if !errors.Is(err, shared.ErrUnknownReference) || customerID == nil {
		return err
	}
	return fmt.Errorf("%w: customer %d", ErrUnknownCustomer, *customerID)
}
