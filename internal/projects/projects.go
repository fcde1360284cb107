// Package projects configures the projects page and the new project wizard.
package projects

import (
	"github.com/shopspring/decimal"

	"github.com/grantdesk/grantdesk/internal/crud"
	"github.com/grantdesk/grantdesk/internal/finance"
	"github.com/grantdesk/grantdesk/internal/listing"
	"github.com/grantdesk/grantdesk/internal/options"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/wizard"
)

// Kind names the project wizard.
const Kind = "project"

// Project is a funded training project.
type Project struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Objectives     string          `json:"objectives"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	Status         string          `json:"status"`
	AssignedUserID string          `json:"assigned_user_id"`
	Budget         decimal.Decimal `json:"budget"`
}

// StatusChoices are the project life cycle states.
var StatusChoices = []options.Option{
	{Value: "draft", Label: "Draft"},
	{Value: "active", Label: "Active"},
	{Value: "completed", Label: "Completed"},
	{Value: "cancelled", Label: "Cancelled"},
}

type info struct {
	Name           string `json:"name" validate:"required,notblank,min=2"`
	Description    string `json:"description" validate:"required,notblank"`
	Objectives     string `json:"objectives" validate:"required,notblank"`
	StartDate      string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string `json:"end_date" validate:"required,datetime=2006-01-02,notbefore=StartDate"`
	AssignedUserID string `json:"assigned_user_id,omitempty"`
}

type update struct {
	info
	Status string `json:"status" validate:"required,oneof=draft active completed cancelled"`
}

func infoFrom(values map[string]string) info {
	return info{
		Name:           values["name"],
		Description:    values["description"],
		Objectives:     values["objectives"],
		StartDate:      values["start_date"],
		EndDate:        values["end_date"],
		AssignedUserID: values["assigned_user_id"],
	}
}

// Resource configures the projects page. New projects go through the wizard.
func Resource(v *shared.Validator) crud.Resource[Project] {
	return crud.Resource[Project]{
		Name:     "projects",
		Title:    "Projects",
		Singular: "Project",
		Path:     "/projects",
		List: listing.Config{
			Endpoint:          "/projects",
			DefaultSort:       "start_date",
			DefaultDescending: true,
			Sortable:          []string{"name", "start_date", "end_date", "budget"},
			Filters:           []string{"status", "assigned_user_id"},
		},
		Columns: []crud.Column[Project]{
			{Key: "name", Label: "Name", Sortable: true, Cell: func(p Project) string { return p.Name }},
			{Key: "start_date", Label: "Start", Sortable: true, Kind: "date", Cell: func(p Project) string { return p.StartDate }},
			{Key: "end_date", Label: "End", Sortable: true, Kind: "date", Cell: func(p Project) string { return p.EndDate }},
			{Key: "assigned_user_id", Label: "Coordinator", Source: "users", Cell: func(p Project) string { return p.AssignedUserID }},
			{Key: "budget", Label: "Budget", Sortable: true, Kind: "amount", Cell: func(p Project) string { return p.Budget.StringFixed(2) }},
			{Key: "status", Label: "Status", Kind: "badge", Cell: func(p Project) string { return options.Label(StatusChoices, p.Status) }},
		},
		Fields: []crud.Field{
			{Name: "name", Label: "Name", Required: true},
			{Name: "description", Label: "Description", Type: "textarea", Required: true},
			{Name: "objectives", Label: "Objectives", Type: "textarea", Required: true},
			{Name: "start_date", Label: "Start date", Type: "date", Required: true},
			{Name: "end_date", Label: "End date", Type: "date", Required: true},
			{Name: "assigned_user_id", Label: "Coordinator", Type: "select", Source: "users"},
			{Name: "status", Label: "Status", Type: "select", Required: true, Choices: StatusChoices},
		},
		Filters: []crud.Filter{
			{Name: "status", Label: "Status", Choices: StatusChoices},
			{Name: "assigned_user_id", Label: "Coordinator", Source: "users"},
		},
		ID:    func(p Project) string { return p.ID },
		Label: func(p Project) string { return p.Name },
		Values: func(p Project) map[string]string {
			return map[string]string{
				"name": p.Name, "description": p.Description, "objectives": p.Objectives,
				"start_date": p.StartDate, "end_date": p.EndDate,
				"assigned_user_id": p.AssignedUserID, "status": p.Status,
			}
		},
		Build: func(values map[string]string, _ crud.Mode) (any, error) {
			body := update{info: infoFrom(values), Status: values["status"]}
			return body, v.Struct(body)
		},
		Manage:      shared.ManageProjects(),
		Invalidates: []string{"projects"},
		NewHref:     "/wizards/new/" + Kind,
	}
}

// Wizard defines the new project flow: info, financing sources, donations,
// expenses and attachments.
func Wizard(v *shared.Validator) wizard.Definition {
	return wizard.Definition{
		Kind:     Kind,
		Title:    "New project",
		Resource: "/projects",
		ListPath: "/projects",
		Manage:   shared.ManageProjects(),
		Steps: []wizard.Step{
			&wizard.InfoStep[info]{
				StepKey:   "info",
				StepTitle: "Project information",
				Fields: []wizard.Field{
					{Name: "name", Label: "Name", Required: true},
					{Name: "description", Label: "Description", Type: "textarea", Required: true},
					{Name: "objectives", Label: "Objectives", Type: "textarea", Required: true},
					{Name: "start_date", Label: "Start date", Type: "date", Required: true},
					{Name: "end_date", Label: "End date", Type: "date", Required: true},
					{Name: "assigned_user_id", Label: "Coordinator", Type: "select", Source: "users"},
				},
				Build:     func(values map[string]string) (info, error) { return infoFrom(values), nil },
				Validator: v,
			},
			finance.FundingStep(),
			finance.DonationStep(),
			finance.ExpenseStep(),
			&wizard.AttachmentStep{
				StepKey:    "attachments",
				StepTitle:  "Attachments",
				UploadPath: "/files",
				EntityType: Kind,
			},
		},
	}
}
