package partners

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// RepositoryPort abstracts partner storage.
type RepositoryPort interface {
	ListCustomers(ctx context.Context, f ListFilters) ([]Customer, int, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	CreateCustomer(ctx context.Context, in CustomerInput) (Customer, error)
	UpdateCustomer(ctx context.Context, id int64, p CustomerPatch) (Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error

	ListVendors(ctx context.Context, f ListFilters) ([]Vendor, int, error)
	GetVendor(ctx context.Context, id int64) (Vendor, error)
	CreateVendor(ctx context.Context, in VendorInput) (Vendor, error)
	UpdateVendor(ctx context.Context, id int64, p VendorPatch) (Vendor, error)
	DeleteVendor(ctx context.Context, id int64) error
}

// Service validates and forwards partner maintenance.
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

// ListCustomers returns one page of customers.
func (s *Service) ListCustomers(ctx context.Context, f ListFilters) ([]Customer, shared.Pagination, error) {
	f = f.normalize()
	f.Search = strings.TrimSpace(f.Search)
	items, total, err := s.repo.ListCustomers(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(f.Page, f.Limit, total), nil
}

// GetCustomer loads one customer.
func (s *Service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, shared.Validationf("partners: invalid customer id")
	}
	return s.repo.GetCustomer(ctx, id)
}

// CreateCustomer validates and stores a customer.
func (s *Service) CreateCustomer(ctx context.Context, in CustomerInput) (Customer, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := check(in); err != nil {
		return Customer{}, err
	}
	if err := checkCreditLimit(&in.CreditLimit); err != nil {
		return Customer{}, err
	}
	c, err := s.repo.CreateCustomer(ctx, in)
	if err != nil {
		return Customer{}, err
	}
	s.logger.InfoContext(ctx, "customer created", slog.Int64("customer_id", c.ID))
	return c, nil
}

// UpdateCustomer applies a partial update.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, p CustomerPatch) (Customer, error) {
	if err := check(p); err != nil {
		return Customer{}, err
	}
	if err := checkCreditLimit(p.CreditLimit); err != nil {
		return Customer{}, err
	}
	return s.repo.UpdateCustomer(ctx, id, p)
}

// DeleteCustomer removes a customer that has no invoices.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "customer deleted", slog.Int64("customer_id", id))
	return nil
}

// ListVendors returns one page of vendors.
func (s *Service) ListVendors(ctx context.Context, f ListFilters) ([]Vendor, shared.Pagination, error) {
	f = f.normalize()
	f.Search = strings.TrimSpace(f.Search)
	items, total, err := s.repo.ListVendors(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(f.Page, f.Limit, total), nil
}

// GetVendor loads one vendor.
func (s *Service) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	if id <= 0 {
		return Vendor{}, shared.Validationf("partners: invalid vendor id")
	}
	return s.repo.GetVendor(ctx, id)
}

// CreateVendor validates and stores a vendor.
func (s *Service) CreateVendor(ctx context.Context, in VendorInput) (Vendor, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := check(in); err != nil {
		return Vendor{}, err
	}
	v, err := s.repo.CreateVendor(ctx, in)
	if err != nil {
		return Vendor{}, err
	}
	s.logger.InfoContext(ctx, "vendor created", slog.Int64("vendor_id", v.ID))
	return v, nil
}

// UpdateVendor applies a partial update.
func (s *Service) UpdateVendor(ctx context.Context, id int64, p VendorPatch) (Vendor, error) {
	if err := check(p); err != nil {
		return Vendor{}, err
	}
	return s.repo.UpdateVendor(ctx, id, p)
}

// DeleteVendor removes a vendor.
func (s *Service) DeleteVendor(ctx context.Context, id int64) error {
	return s.repo.DeleteVendor(ctx, id)
}
