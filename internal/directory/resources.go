package directory

import (
	"strings"

	"github.com/grantdesk/grantdesk/internal/crud"
	"github.com/grantdesk/grantdesk/internal/listing"
	"github.com/grantdesk/grantdesk/internal/options"
	"github.com/grantdesk/grantdesk/internal/shared"
)

// StatusChoices are shared by every directory record.
var StatusChoices = []options.Option{
	{Value: "active", Label: "Active"},
	{Value: "inactive", Label: "Inactive"},
}

// RoleChoices lists the console roles.
var RoleChoices = []options.Option{
	{Value: shared.RoleAdmin, Label: "Administrator"},
	{Value: shared.RoleCoordinator, Label: "Coordinator"},
	{Value: shared.RoleAccountant, Label: "Accountant"},
	{Value: shared.RoleViewer, Label: "Viewer"},
}

// Users configures the console accounts page.
func Users(v *shared.Validator) crud.Resource[User] {
	return crud.Resource[User]{
		Name:     "users",
		Title:    "Users",
		Singular: "User",
		Path:     "/users",
		List: listing.Config{
			Endpoint:    "/users",
			DefaultSort: "name",
			Sortable:    []string{"name", "email", "role"},
			Filters:     []string{"role", "status"},
		},
		Columns: []crud.Column[User]{
			{Key: "name", Label: "Name", Sortable: true, Cell: func(u User) string { return u.Name }},
			{Key: "email", Label: "Email", Sortable: true, Cell: func(u User) string { return u.Email }},
			{Key: "role", Label: "Role", Sortable: true, Kind: "badge", Cell: func(u User) string { return options.Label(RoleChoices, u.Role) }},
			{Key: "status", Label: "Status", Kind: "badge", Cell: func(u User) string { return options.Label(StatusChoices, u.Status) }},
		},
		Fields: []crud.Field{
			{Name: "name", Label: "Full name", Required: true},
			{Name: "email", Label: "Email", Type: "email", Required: true},
			{Name: "role", Label: "Role", Type: "select", Required: true, Choices: RoleChoices},
			{Name: "password", Label: "Temporary password", Type: "password", Required: true, CreateOnly: true},
			{Name: "status", Label: "Status", Type: "select", Choices: StatusChoices},
		},
		Filters: []crud.Filter{
			{Name: "role", Label: "Role", Choices: RoleChoices},
			{Name: "status", Label: "Status", Choices: StatusChoices},
		},
		ID:    func(u User) string { return u.ID },
		Label: func(u User) string { return u.Name },
		Values: func(u User) map[string]string {
			return map[string]string{"name": u.Name, "email": u.Email, "role": u.Role, "status": u.Status}
		},
		Build: func(values map[string]string, mode crud.Mode) (any, error) {
			if mode == crud.ModeCreate {
				body := userCreate{
					Name:     values["name"],
					Email:    strings.ToLower(values["email"]),
					Role:     values["role"],
					Password: values["password"],
				}
				return body, v.Struct(body)
			}
			body := userUpdate{
				Name:   values["name"],
				Email:  strings.ToLower(values["email"]),
				Role:   values["role"],
				Status: values["status"],
			}
			return body, v.Struct(body)
		},
		Manage:      shared.ManageUsers(),
		Invalidates: []string{"users"},
	}
}

// Centers configures the training centers page.
func Centers(v *shared.Validator) crud.Resource[Center] {
	return crud.Resource[Center]{
		Name:     "centers",
		Title:    "Training centers",
		Singular: "Center",
		Path:     "/centers",
		List: listing.Config{
			Endpoint:    "/centers",
			DefaultSort: "name",
			Sortable:    []string{"name", "code", "city"},
			Filters:     []string{"status", "city"},
		},
		Columns: []crud.Column[Center]{
			{Key: "code", Label: "Code", Sortable: true, Cell: func(c Center) string { return c.Code }},
			{Key: "name", Label: "Name", Sortable: true, Cell: func(c Center) string { return c.Name }},
			{Key: "city", Label: "City", Sortable: true, Cell: func(c Center) string { return c.City }},
			{Key: "phone", Label: "Phone", Cell: func(c Center) string { return c.Phone }},
			{Key: "status", Label: "Status", Kind: "badge", Cell: func(c Center) string { return options.Label(StatusChoices, c.Status) }},
		},
		Fields: []crud.Field{
			{Name: "name", Label: "Name", Required: true},
			{Name: "code", Label: "Code", Required: true, Placeholder: "QTO01"},
			{Name: "city", Label: "City", Required: true},
			{Name: "address", Label: "Address", Type: "textarea"},
			{Name: "phone", Label: "Phone", Type: "tel"},
			{Name: "status", Label: "Status", Type: "select", Required: true, Choices: StatusChoices},
		},
		Filters: []crud.Filter{
			{Name: "status", Label: "Status", Choices: StatusChoices},
		},
		ID:    func(c Center) string { return c.ID },
		Label: func(c Center) string { return c.Name },
		Values: func(c Center) map[string]string {
			return map[string]string{
				"name": c.Name, "code": c.Code, "city": c.City,
				"address": c.Address, "phone": c.Phone, "status": c.Status,
			}
		},
		Build: func(values map[string]string, _ crud.Mode) (any, error) {
			body := centerBody{
				Name:    values["name"],
				Code:    strings.ToUpper(values["code"]),
				City:    values["city"],
				Address: values["address"],
				Phone:   values["phone"],
				Status:  defaultStatus(values["status"]),
			}
			return body, v.Struct(body)
		},
		Manage:      shared.ManageDirectory(),
		Invalidates: []string{"centers"},
	}
}

// Instructors configures the instructors page.
func Instructors(v *shared.Validator) crud.Resource[Instructor] {
	return crud.Resource[Instructor]{
		Name:     "instructors",
		Title:    "Instructors",
		Singular: "Instructor",
		Path:     "/instructors",
		List: listing.Config{
			Endpoint:    "/instructors",
			DefaultSort: "last_name",
			Sortable:    []string{"last_name", "email", "specialty"},
			Filters:     []string{"center_id", "status"},
		},
		Columns: []crud.Column[Instructor]{
			{Key: "last_name", Label: "Name", Sortable: true, Cell: Instructor.FullName},
			{Key: "email", Label: "Email", Sortable: true, Cell: func(i Instructor) string { return i.Email }},
			{Key: "specialty", Label: "Specialty", Sortable: true, Cell: func(i Instructor) string { return i.Specialty }},
			{Key: "center_id", Label: "Center", Source: "centers", Cell: func(i Instructor) string { return i.CenterID }},
			{Key: "status", Label: "Status", Kind: "badge", Cell: func(i Instructor) string { return options.Label(StatusChoices, i.Status) }},
		},
		Fields: []crud.Field{
			{Name: "first_name", Label: "First name", Required: true},
			{Name: "last_name", Label: "Last name", Required: true},
			{Name: "email", Label: "Email", Type: "email", Required: true},
			{Name: "phone", Label: "Phone", Type: "tel"},
			{Name: "specialty", Label: "Specialty"},
			{Name: "center_id", Label: "Center", Type: "select", Required: true, Source: "centers"},
			{Name: "status", Label: "Status", Type: "select", Required: true, Choices: StatusChoices},
		},
		Filters: []crud.Filter{
			{Name: "center_id", Label: "Center", Source: "centers"},
			{Name: "status", Label: "Status", Choices: StatusChoices},
		},
		ID:    func(i Instructor) string { return i.ID },
		Label: Instructor.FullName,
		Values: func(i Instructor) map[string]string {
			return map[string]string{
				"first_name": i.FirstName, "last_name": i.LastName, "email": i.Email,
				"phone": i.Phone, "specialty": i.Specialty, "center_id": i.CenterID, "status": i.Status,
			}
		},
		Build: func(values map[string]string, _ crud.Mode) (any, error) {
			body := instructorBody{
				FirstName: values["first_name"],
				LastName:  values["last_name"],
				Email:     strings.ToLower(values["email"]),
				Phone:     values["phone"],
				Specialty: values["specialty"],
				CenterID:  values["center_id"],
				Status:    defaultStatus(values["status"]),
			}
			return body, v.Struct(body)
		},
		Manage:      shared.ManageDirectory(),
		Invalidates: []string{"instructors"},
	}
}

func defaultStatus(s string) string {
	if s == "" {
		return "active"
	}
	return s
}
