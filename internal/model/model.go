package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is implemented by every entity a view-state controller can hold.
type Record interface {
	Key() string
	StatusValue() string
	SearchFields() []string
}

var (
	EmployeeStatuses    = []string{"active", "inactive", "on_leave", "terminated"}
	AppointmentStatuses = []string{"scheduled", "confirmed", "in_progress", "completed", "cancelled"}
	InventoryStatuses   = []string{"in_stock", "low_stock", "out_of_stock"}
	ListingStatuses     = []string{"draft", "open", "closed", "pending", "accepted", "expired", "revoked"}
)

type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

type Contact struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type Employee struct {
	ID         string   `json:"id,omitempty"`
	FirstName  string   `json:"firstName" validate:"required"`
	LastName   string   `json:"lastName" validate:"required"`
	Email      string   `json:"email" validate:"required,email"`
	Phone      string   `json:"phone,omitempty"`
	Department string   `json:"department,omitempty"`
	Position   string   `json:"position,omitempty"`
	Role       string   `json:"role,omitempty"`
	Status     string   `json:"status,omitempty" validate:"omitempty,oneof=active inactive on_leave terminated"`
	Address    *Address `json:"address,omitempty"`
}

func (e Employee) Key() string         { return e.ID }
func (e Employee) StatusValue() string { return e.Status }

func (e Employee) SearchFields() []string {
	return []string{e.FirstName, e.LastName, e.Email, e.Department, e.Position}
}

func (e Employee) FullName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	default:
		return e.FirstName + " " + e.LastName
	}
}

type Appointment struct {
	ID           string    `json:"id,omitempty"`
	CustomerName string    `json:"customerName" validate:"required"`
	ServiceType  string    `json:"serviceType" validate:"required"`
	VehiclePlate string    `json:"vehiclePlate,omitempty"`
	ScheduledAt  time.Time `json:"scheduledAt" validate:"required"`
	Status       string    `json:"status,omitempty" validate:"omitempty,oneof=scheduled confirmed in_progress completed cancelled"`
	Contact      *Contact  `json:"contact,omitempty"`
}

func (a Appointment) Key() string         { return a.ID }
func (a Appointment) StatusValue() string { return a.Status }

func (a Appointment) SearchFields() []string {
	return []string{a.CustomerName, a.ServiceType, a.VehiclePlate}
}

type InventoryItem struct {
	ID       string          `json:"id,omitempty"`
	SKU      string          `json:"sku" validate:"required"`
	Name     string          `json:"name" validate:"required"`
	Category string          `json:"category,omitempty"`
	Quantity int64           `json:"quantity" validate:"gte=0"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Status   string          `json:"status,omitempty" validate:"omitempty,oneof=in_stock low_stock out_of_stock"`
}

func (i InventoryItem) Key() string         { return i.ID }
func (i InventoryItem) StatusValue() string { return i.Status }

func (i InventoryItem) SearchFields() []string {
	return []string{i.SKU, i.Name, i.Category}
}
