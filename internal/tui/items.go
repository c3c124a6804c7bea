package tui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/Joseda-hg/clutchdesk/internal/model"
	"github.com/Joseda-hg/clutchdesk/internal/theme"
)

// entity describes how one record type is listed, shown and edited.
type entity[T model.Record] struct {
	title    string
	noun     string
	statuses []string
	row      func(T) string
	detail   func(T) []string
	// form returns the editor fields, prefilled from record when it is set.
	form  func(record *T) []formField
	build func(base T, form *formState) (T, error)
}

const (
	labelStatus = "Status (space/←→)"
	labelType   = "Type (space/←→)"
)

var statusTheme = theme.ANSI()

func colorStatus(status string) string {
	return statusTheme.Status(status)
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "n/a"
	}
	return value
}

var employeeEntity = entity[model.Employee]{
	title:    "Employees",
	noun:     "employee",
	statuses: model.EmployeeStatuses,
	row: func(e model.Employee) string {
		return fmt.Sprintf("%s | %s | %s | %s", e.FullName(), e.Email, orNA(e.Department), colorStatus(e.Status))
	},
	detail: func(e model.Employee) []string {
		lines := []string{
			e.FullName(),
			fmt.Sprintf("Email: %s", e.Email),
			fmt.Sprintf("Phone: %s", orNA(e.Phone)),
			fmt.Sprintf("Department: %s", orNA(e.Department)),
			fmt.Sprintf("Position: %s", orNA(e.Position)),
			fmt.Sprintf("Role: %s", orNA(e.Role)),
			fmt.Sprintf("Status: %s", colorStatus(e.Status)),
		}
		if e.Address != nil {
			lines = append(lines, fmt.Sprintf("Address: %s, %s %s", e.Address.Street, e.Address.City, e.Address.Country))
		}
		return lines
	},
	form: func(e *model.Employee) []formField {
		fields := []formField{
			{Label: "First name"},
			{Label: "Last name"},
			{Label: "Email"},
			{Label: "Phone"},
			{Label: "Department"},
			{Label: "Position"},
			{Label: labelStatus, Value: "active", Options: model.EmployeeStatuses},
		}
		if e != nil {
			fields[0].Value = e.FirstName
			fields[1].Value = e.LastName
			fields[2].Value = e.Email
			fields[3].Value = e.Phone
			fields[4].Value = e.Department
			fields[5].Value = e.Position
			fields[6].Value = e.Status
		}
		return fields
	},
	build: func(base model.Employee, f *formState) (model.Employee, error) {
		base.FirstName = f.value("First name")
		base.LastName = f.value("Last name")
		base.Email = f.value("Email")
		base.Phone = f.value("Phone")
		base.Department = f.value("Department")
		base.Position = f.value("Position")
		base.Status = f.value(labelStatus)
		return base, nil
	},
}

var appointmentEntity = entity[model.Appointment]{
	title:    "Appointments",
	noun:     "appointment",
	statuses: model.AppointmentStatuses,
	row: func(a model.Appointment) string {
		when := "unscheduled"
		if !a.ScheduledAt.IsZero() {
			when = humanize.Time(a.ScheduledAt)
		}
		return fmt.Sprintf("%s | %s | %s | %s", a.CustomerName, a.ServiceType, when, colorStatus(a.Status))
	},
	detail: func(a model.Appointment) []string {
		lines := []string{
			a.CustomerName,
			fmt.Sprintf("Service: %s", a.ServiceType),
			fmt.Sprintf("Vehicle: %s", orNA(a.VehiclePlate)),
			fmt.Sprintf("Scheduled: %s", a.ScheduledAt.Local().Format(formTimeLayout)),
			fmt.Sprintf("Status: %s", colorStatus(a.Status)),
		}
		if a.Contact != nil {
			lines = append(lines, fmt.Sprintf("Contact: %s %s", a.Contact.Phone, a.Contact.Email))
		}
		return lines
	},
	form: func(a *model.Appointment) []formField {
		fields := []formField{
			{Label: "Customer"},
			{Label: "Service"},
			{Label: "Vehicle plate"},
			{Label: "Scheduled (YYYY-MM-DD HH:MM)"},
			{Label: labelStatus, Value: "scheduled", Options: model.AppointmentStatuses},
		}
		if a != nil {
			fields[0].Value = a.CustomerName
			fields[1].Value = a.ServiceType
			fields[2].Value = a.VehiclePlate
			if !a.ScheduledAt.IsZero() {
				fields[3].Value = a.ScheduledAt.Local().Format(formTimeLayout)
			}
			fields[4].Value = a.Status
		}
		return fields
	},
	build: func(base model.Appointment, f *formState) (model.Appointment, error) {
		scheduled, err := parseSchedule(f.value("Scheduled (YYYY-MM-DD HH:MM)"))
		if err != nil {
			return model.Appointment{}, err
		}
		base.CustomerName = f.value("Customer")
		base.ServiceType = f.value("Service")
		base.VehiclePlate = f.value("Vehicle plate")
		if !scheduled.Equal(base.ScheduledAt) {
			base.ScheduledAt = scheduled
		}
		base.Status = f.value(labelStatus)
		return base, nil
	},
}

var inventoryEntity = entity[model.InventoryItem]{
	title:    "Inventory",
	noun:     "inventory item",
	statuses: model.InventoryStatuses,
	row: func(i model.InventoryItem) string {
		return fmt.Sprintf("%s | %s | qty %s | $%s | %s", i.SKU, i.Name, humanize.Comma(i.Quantity), i.Price.StringFixed(2), colorStatus(i.Status))
	},
	detail: func(i model.InventoryItem) []string {
		value := i.Price.Mul(decimal.NewFromInt(i.Quantity))
		return []string{
			i.Name,
			fmt.Sprintf("SKU: %s", i.SKU),
			fmt.Sprintf("Category: %s", orNA(i.Category)),
			fmt.Sprintf("Quantity: %s", humanize.Comma(i.Quantity)),
			fmt.Sprintf("Price: $%s", i.Price.StringFixed(2)),
			fmt.Sprintf("Stock value: $%s", humanize.CommafWithDigits(value.InexactFloat64(), 2)),
			fmt.Sprintf("Status: %s", colorStatus(i.Status)),
		}
	},
	form: func(i *model.InventoryItem) []formField {
		fields := []formField{
			{Label: "SKU"},
			{Label: "Name"},
			{Label: "Category"},
			{Label: "Quantity", Value: "0"},
			{Label: "Price", Value: "0.00"},
			{Label: labelStatus, Value: "in_stock", Options: model.InventoryStatuses},
		}
		if i != nil {
			fields[0].Value = i.SKU
			fields[1].Value = i.Name
			fields[2].Value = i.Category
			fields[3].Value = fmt.Sprintf("%d", i.Quantity)
			fields[4].Value = i.Price.StringFixed(2)
			fields[5].Value = i.Status
		}
		return fields
	},
	build: func(base model.InventoryItem, f *formState) (model.InventoryItem, error) {
		quantity, err := parseQuantity(f.value("Quantity"))
		if err != nil {
			return model.InventoryItem{}, err
		}
		price, err := parsePrice(f.value("Price"))
		if err != nil {
			return model.InventoryItem{}, err
		}
		base.SKU = f.value("SKU")
		base.Name = f.value("Name")
		base.Category = f.value("Category")
		base.Quantity = quantity
		if !price.Equal(base.Price) {
			base.Price = price
		}
		base.Status = f.value(labelStatus)
		return base, nil
	},
}

var listingKinds = []string{string(model.ListingJobPosting), string(model.ListingInvitation)}

var listingEntity = entity[model.Listing]{
	title:    "Listings",
	noun:     "listing",
	statuses: model.ListingStatuses,
	row: func(l model.Listing) string {
		kind := "job"
		detail := ""
		switch {
		case l.Job != nil:
			detail = orNA(l.Job.Department)
		case l.Invitation != nil:
			kind = "invite"
			detail = l.Invitation.Role
		}
		return fmt.Sprintf("%-6s | %s | %s | %s", kind, l.Title(), detail, colorStatus(l.StatusValue()))
	},
	detail: func(l model.Listing) []string {
		switch {
		case l.Job != nil:
			return []string{
				l.Job.Title,
				"Type: job posting",
				fmt.Sprintf("Department: %s", orNA(l.Job.Department)),
				fmt.Sprintf("Status: %s", colorStatus(l.Job.Status)),
			}
		case l.Invitation != nil:
			return []string{
				l.Invitation.Email,
				"Type: invitation",
				fmt.Sprintf("Role: %s", l.Invitation.Role),
				fmt.Sprintf("Status: %s", colorStatus(l.Invitation.Status)),
			}
		}
		return []string{"Unknown listing"}
	},
	form: func(l *model.Listing) []formField {
		fields := []formField{
			{Label: labelType, Value: string(model.ListingJobPosting), Options: listingKinds},
			{Label: "Title or email"},
			{Label: "Department or role"},
			{Label: labelStatus, Value: "draft", Options: model.ListingStatuses},
		}
		if l != nil {
			fields[0].Value = string(l.Kind)
			fields[0].Options = []string{string(l.Kind)}
			switch {
			case l.Job != nil:
				fields[1].Value = l.Job.Title
				fields[2].Value = l.Job.Department
			case l.Invitation != nil:
				fields[1].Value = l.Invitation.Email
				fields[2].Value = l.Invitation.Role
			}
			fields[3].Value = l.StatusValue()
		}
		return fields
	},
	build: func(base model.Listing, f *formState) (model.Listing, error) {
		primary := f.value("Title or email")
		secondary := f.value("Department or role")
		status := f.value(labelStatus)

		switch model.ListingKind(f.value(labelType)) {
		case model.ListingJobPosting:
			job := model.JobPosting{Title: primary, Department: secondary, Status: status}
			if base.Job != nil {
				job.ID = base.Job.ID
			}
			return model.NewJobListing(job), nil
		case model.ListingInvitation:
			inv := model.Invitation{Email: primary, Role: secondary, Status: status}
			if base.Invitation != nil {
				inv.ID = base.Invitation.ID
			}
			return model.NewInvitationListing(inv), nil
		default:
			return model.Listing{}, errors.New("choose a listing type")
		}
	},
}
