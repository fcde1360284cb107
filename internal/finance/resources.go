package finance

import (
	"github.com/shopspring/decimal"

	"github.com/grantdesk/grantdesk/internal/crud"
	"github.com/grantdesk/grantdesk/internal/listing"
	"github.com/grantdesk/grantdesk/internal/options"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/wizard"
)

// Sources configures the financing sources page.
func Sources(v *shared.Validator) crud.Resource[FinancingSource] {
	return crud.Resource[FinancingSource]{
		Name:     "financing_sources",
		Title:    "Financing sources",
		Singular: "Financing source",
		Path:     "/financing-sources",
		List: listing.Config{
			Endpoint:    "/financing-sources",
			DefaultSort: "name",
			Sortable:    []string{"name", "type"},
			Filters:     []string{"type", "status"},
		},
		Columns: []crud.Column[FinancingSource]{
			{Key: "name", Label: "Name", Sortable: true, Cell: func(s FinancingSource) string { return s.Name }},
			{Key: "type", Label: "Type", Sortable: true, Kind: "badge", Cell: func(s FinancingSource) string { return options.Label(SourceTypes, s.Type) }},
			{Key: "contact", Label: "Contact", Cell: func(s FinancingSource) string { return s.Contact }},
			{Key: "status", Label: "Status", Kind: "badge", Cell: func(s FinancingSource) string { return options.Label(statusChoices, s.Status) }},
		},
		Fields: []crud.Field{
			{Name: "name", Label: "Name", Required: true},
			{Name: "type", Label: "Type", Type: "select", Required: true, Choices: SourceTypes},
			{Name: "contact", Label: "Contact"},
			{Name: "status", Label: "Status", Type: "select", Required: true, Choices: statusChoices},
		},
		Filters: []crud.Filter{
			{Name: "type", Label: "Type", Choices: SourceTypes},
			{Name: "status", Label: "Status", Choices: statusChoices},
		},
		ID:    func(s FinancingSource) string { return s.ID },
		Label: func(s FinancingSource) string { return s.Name },
		Values: func(s FinancingSource) map[string]string {
			return map[string]string{"name": s.Name, "type": s.Type, "contact": s.Contact, "status": s.Status}
		},
		Build: func(values map[string]string, _ crud.Mode) (any, error) {
			status := values["status"]
			if status == "" {
				status = "active"
			}
			body := sourceBody{Name: values["name"], Type: values["type"], Contact: values["contact"], Status: status}
			return body, v.Struct(body)
		},
		Manage:      shared.ManageFinance(),
		Invalidates: []string{"financing_sources"},
	}
}

// Donations configures the donations page.
func Donations(v *shared.Validator) crud.Resource[Donation] {
	return crud.Resource[Donation]{
		Name:     "donations",
		Title:    "Donations",
		Singular: "Donation",
		Path:     "/donations",
		List: listing.Config{
			Endpoint:          "/donations",
			DefaultSort:       "date",
			DefaultDescending: true,
			Sortable:          []string{"date", "donor", "amount"},
			Filters:           []string{"project_id", "type"},
		},
		Columns: []crud.Column[Donation]{
			{Key: "date", Label: "Date", Sortable: true, Kind: "date", Cell: func(d Donation) string { return d.Date }},
			{Key: "donor", Label: "Donor", Sortable: true, Cell: func(d Donation) string { return d.Donor }},
			{Key: "project_id", Label: "Project", Source: "projects", Cell: func(d Donation) string { return d.ProjectID }},
			{Key: "type", Label: "Type", Kind: "badge", Cell: func(d Donation) string { return options.Label(DonationTypes, d.Type) }},
			{Key: "amount", Label: "Amount", Sortable: true, Kind: "amount", Cell: func(d Donation) string { return d.Amount.StringFixed(2) }},
		},
		Fields: []crud.Field{
			{Name: "project_id", Label: "Project", Type: "select", Required: true, Source: "projects"},
			{Name: "donor", Label: "Donor", Required: true},
			{Name: "type", Label: "Type", Type: "select", Required: true, Choices: DonationTypes},
			{Name: "amount", Label: "Amount", Type: "number", Required: true, Placeholder: "0.00"},
			{Name: "date", Label: "Date", Type: "date", Required: true},
		},
		Filters: []crud.Filter{
			{Name: "project_id", Label: "Project", Source: "projects"},
			{Name: "type", Label: "Type", Choices: DonationTypes},
		},
		ID:    func(d Donation) string { return d.ID },
		Label: func(d Donation) string { return d.Donor + " " + d.Date },
		Values: func(d Donation) map[string]string {
			return map[string]string{
				"project_id": d.ProjectID, "donor": d.Donor, "type": d.Type,
				"amount": d.Amount.StringFixed(2), "date": d.Date,
			}
		},
		Build: func(values map[string]string, _ crud.Mode) (any, error) {
			amount, err := amountField(values["amount"])
			body := donationBody{
				ProjectID: values["project_id"],
				Donor:     values["donor"],
				Type:      values["type"],
				Amount:    amount,
				Date:      values["date"],
			}
			return body, merge(v.Struct(body), err)
		},
		Manage: shared.ManageFinance(),
	}
}

// Expenses configures the expenses page.
func Expenses(v *shared.Validator) crud.Resource[Expense] {
	return crud.Resource[Expense]{
		Name:     "expenses",
		Title:    "Expenses",
		Singular: "Expense",
		Path:     "/expenses",
		List: listing.Config{
			Endpoint:          "/expenses",
			DefaultSort:       "date",
			DefaultDescending: true,
			Sortable:          []string{"date", "concept", "amount"},
			Filters:           []string{"project_id", "category"},
		},
		Columns: []crud.Column[Expense]{
			{Key: "date", Label: "Date", Sortable: true, Kind: "date", Cell: func(e Expense) string { return e.Date }},
			{Key: "concept", Label: "Concept", Sortable: true, Cell: func(e Expense) string { return e.Concept }},
			{Key: "project_id", Label: "Project", Source: "projects", Cell: func(e Expense) string { return e.ProjectID }},
			{Key: "category", Label: "Category", Kind: "badge", Cell: func(e Expense) string { return options.Label(ExpenseCategories, e.Category) }},
			{Key: "amount", Label: "Amount", Sortable: true, Kind: "amount", Cell: func(e Expense) string { return e.Amount.StringFixed(2) }},
		},
		Fields: []crud.Field{
			{Name: "project_id", Label: "Project", Type: "select", Required: true, Source: "projects"},
			{Name: "concept", Label: "Concept", Required: true},
			{Name: "category", Label: "Category", Type: "select", Required: true, Choices: ExpenseCategories},
			{Name: "amount", Label: "Amount", Type: "number", Required: true, Placeholder: "0.00"},
			{Name: "date", Label: "Date", Type: "date", Required: true},
		},
		Filters: []crud.Filter{
			{Name: "project_id", Label: "Project", Source: "projects"},
			{Name: "category", Label: "Category", Choices: ExpenseCategories},
		},
		ID:    func(e Expense) string { return e.ID },
		Label: func(e Expense) string { return e.Concept },
		Values: func(e Expense) map[string]string {
			return map[string]string{
				"project_id": e.ProjectID, "concept": e.Concept, "category": e.Category,
				"amount": e.Amount.StringFixed(2), "date": e.Date,
			}
		},
		Build: func(values map[string]string, _ crud.Mode) (any, error) {
			amount, err := amountField(values["amount"])
			body := expenseBody{
				ProjectID: values["project_id"],
				Concept:   values["concept"],
				Category:  values["category"],
				Amount:    amount,
				Date:      values["date"],
			}
			return body, merge(v.Struct(body), err)
		},
		Manage: shared.ManageFinance(),
	}
}

func amountField(raw string) (decimal.Decimal, error) {
	amount, err := wizard.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, shared.FieldError("amount", "amount must be a number with at most 2 decimals")
	}
	return amount, nil
}

// merge combines field errors of two validation passes.
func merge(a, b error) error {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	va, okA := a.(*shared.ValidationError)
	vb, okB := b.(*shared.ValidationError)
	if !okA || !okB {
		return a
	}
	for k, msg := range vb.Fields {
		if _, exists := va.Fields[k]; !exists {
			va.Fields[k] = msg
		}
	}
	return va
}
