// Package projects maintains the customer projects invoices can be billed against.
package projects

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// Status enumerates project lifecycle states.
type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusOnHold    Status = "on_hold"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusOnHold, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Project model. Progress values are percentages between 0 and 100.
type Project struct {
	ID              int64           `json:"id"`
	Name            string          `json:"project_name"`
	Description     string          `json:"description"`
	CustomerID      *int64          `json:"customer_id,omitempty"`
	Status          Status          `json:"status"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	Budget          decimal.Decimal `json:"budget"`
	ActualCost      decimal.Decimal `json:"actual_cost"`
	PlannedProgress decimal.Decimal `json:"planned_progress"`
	ActualProgress  decimal.Decimal `json:"actual_progress"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CreateInput carries the fields of a new project.
type CreateInput struct {
	Name            string
	Description     string
	CustomerID      *int64
	StartDate       time.Time
	EndDate         *time.Time
	Budget          decimal.Decimal
	PlannedProgress decimal.Decimal
	CreatedBy       int64
}

// Patch carries optional project changes; nil fields keep their value.
type Patch struct {
	Name            *string
	Description     *string
	Status          *Status
	EndDate         *time.Time
	Budget          *decimal.Decimal
	ActualCost      *decimal.Decimal
	PlannedProgress *decimal.Decimal
	ActualProgress  *decimal.Decimal
}

// ListFilters narrows list queries. Zero values match everything.
type ListFilters struct {
	CustomerID int64
	Status     Status
	Page       int
	Limit      int
}

func (f ListFilters) normalize() ListFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 200 {
		f.Limit = 50
	}
	return f
}

// ErrUnknownCustomer indicates a project references a customer that does not exist.
var ErrUnknownCustomer = fmt.Errorf("projects: unknown customer: %w", shared.ErrUnknownReference)

var hundred = decimal.NewFromInt(100)

func checkAmount(field string, d *decimal.Decimal) error {
	if d == nil {
		return nil
	}
	if d.IsNegative() {
		return shared.Validationf("projects: %s must not be negative", field)
	}
	if !shared.WholeCents(*d) {
		return shared.Validationf("projects: %s must not have fractional cents", field)
	}
	return nil
}

func checkProgress(field string, d *decimal.Decimal) error {
	if d != nil && (d.IsNegative() || d.GreaterThan(hundred)) {
		return shared.Validationf("projects: %s must be between 0 and 100", field)
	}
	return nil
}

// Validate checks a new project before storage is touched.
func (in CreateInput) Validate() error {
	if in.Name == "" {
		return shared.Validationf("projects: project name required")
	}
	if in.CustomerID != nil && *in.CustomerID <= 0 {
		return shared.Validationf("projects: invalid customer id")
	}
	if in.StartDate.IsZero() {
		return shared.Validationf("projects: start date required")
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return shared.Validationf("projects: end date before start date")
	}
	if err := checkAmount("budget", &in.Budget); err != nil {
		return err
	}
	return checkProgress("planned_progress", &in.PlannedProgress)
}

// Validate checks the fields a patch sets.
func (p Patch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return shared.Validationf("projects: project name must not be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return shared.Validationf("projects: unknown status %q", *p.Status)
	}
	for field, d := range map[string]*decimal.Decimal{"budget": p.Budget, "actual_cost": p.ActualCost} {
		if err := checkAmount(field, d); err != nil {
			return err
		}
	}
	if err := checkProgress("planned_progress", p.PlannedProgress); err != nil {
		return err
	}
	return checkProgress("actual_progress", p.ActualProgress)
}
