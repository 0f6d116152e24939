package tables

import "github.com/JonMunkholm/stockroom/internal/core"

// EmploymentStatuses are the canonical employment status values.
var EmploymentStatuses = []string{"active", "on_leave", "terminated"}

func init() {
	registerEmployees()
}

func registerEmployees() {
	core.Register(core.Schema{
		Key:        "employees",
		Label:      "Employees",
		NameField:  "full_name",
		TagField:   "employee_number",
		OwnerField: "custodian_id",
		Fields: []core.FieldSpec{
			{Name: "full_name", Label: "Full name", Aliases: []string{"name", "employee_name"}, Type: core.FieldString, Required: true},
			{Name: "email", Label: "Email", Aliases: []string{"email_address", "e_mail"}, Type: core.FieldString},
			{Name: "employee_number", Label: "Employee number", Aliases: []string{"employee_id", "badge", "staff_number"}, Type: core.FieldString},
			{Name: "department", Label: "Department", Aliases: []string{"dept", "team"}, Type: core.FieldString},
			{Name: "title", Label: "Title", Aliases: []string{"job_title", "position"}, Type: core.FieldString},
			{Name: "employment_status", Label: "Employment status", Aliases: []string{"status"}, Type: core.FieldEnum, Default: "active", EnumValues: EmploymentStatuses},
			{Name: "hire_date", Label: "Hire date", Aliases: []string{"start_date", "hired"}, Type: core.FieldDate},
			custodianField(),
		},
	})
}
