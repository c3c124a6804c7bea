package model

// Collection paths on the Clutch API, shared by the gateway resources and the
// development backend.
const (
	EmployeesPath    = "/api/v1/hr/employees"
	AppointmentsPath = "/api/v1/appointments"
	InventoryPath    = "/api/v1/inventory"
	ListingsPath     = "/api/v1/recruiting/listings"
)
