// Package finance configures the money pages: financing sources, donations
// and expenses, plus the line item steps the project wizard reuses.
package finance

import (
	"github.com/shopspring/decimal"

	"github.com/grantdesk/grantdesk/internal/options"
)

// FinancingSource is an organization that funds projects.
type FinancingSource struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Contact string `json:"contact"`
	Status  string `json:"status"`
}

// Donation is money or goods received for a project.
type Donation struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Donor     string          `json:"donor"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date"`
}

// Expense is money spent by a project.
type Expense struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Concept   string          `json:"concept"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date"`
}

// SourceTypes classify financing sources.
var SourceTypes = []options.Option{
	{Value: "government", Label: "Government"},
	{Value: "private", Label: "Private company"},
	{Value: "international", Label: "International cooperation"},
	{Value: "ngo", Label: "NGO"},
}

// DonationTypes classify donations.
var DonationTypes = []options.Option{
	{Value: "cash", Label: "Cash"},
	{Value: "in_kind", Label: "In kind"},
	{Value: "grant", Label: "Grant"},
}

// ExpenseCategories classify expenses.
var ExpenseCategories = []options.Option{
	{Value: "salaries", Label: "Salaries"},
	{Value: "materials", Label: "Materials"},
	{Value: "equipment", Label: "Equipment"},
	{Value: "travel", Label: "Travel"},
	{Value: "services", Label: "Services"},
	{Value: "other", Label: "Other"},
}

var statusChoices = []options.Option{
	{Value: "active", Label: "Active"},
	{Value: "inactive", Label: "Inactive"},
}

type sourceBody struct {
	Name    string `json:"name" validate:"required,notblank,min=2"`
	Type    string `json:"type" validate:"required,oneof=government private international ngo"`
	Contact string `json:"contact,omitempty"`
	Status  string `json:"status" validate:"required,oneof=active inactive"`
}

type donationBody struct {
	ProjectID string          `json:"project_id" validate:"required"`
	Donor     string          `json:"donor" validate:"required,notblank"`
	Type      string          `json:"type" validate:"required,oneof=cash in_kind grant"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date" validate:"required,datetime=2006-01-02"`
}

type expenseBody struct {
	ProjectID string          `json:"project_id" validate:"required"`
	Concept   string          `json:"concept" validate:"required,notblank"`
	Category  string          `json:"category" validate:"required,oneof=salaries materials equipment travel services other"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date" validate:"required,datetime=2006-01-02"`
}
