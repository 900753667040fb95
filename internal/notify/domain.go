// Package notify stores in-app notifications and exposes the writer used by
// ledger operations that notify users inside their own transaction.
package notify

import (
	"strings"
	"time"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// Type classifies notifications for the client.
type Type string

const (
	TypeInfo    Type = "info"
	TypePayment Type = "payment"
	TypeWarning Type = "warning"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeInfo, TypePayment, TypeWarning:
		return true
	}
	return false
}

// DefaultListLimit caps ListForUser when no limit is supplied.
const DefaultListLimit = 50

// Notification is a message addressed to one user.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields required to store a notification.
func (n Notification) Validate() error {
	if n.UserID <= 0 {
		return shared.Validationf("notify: recipient required")
	}
	if strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Message) == "" {
		return shared.Validationf("notify: title and message required")
	}
	if n.Type != "" && !n.Type.Valid() {
		return shared.Validationf("notify: unknown type %q", n.Type)
	}
	return nil
}
