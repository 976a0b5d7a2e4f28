package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a CRM contact correlated with a chat identity.
type Customer struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Context   *CustomerContext
}

// CustomerContext summarizes the recent CRM activity of a contact.
type CustomerContext struct {
	Deals      int
	Tickets    int
	Notes      int
	Emails     int
	TotalValue decimal.Decimal
	Since      time.Time
}
