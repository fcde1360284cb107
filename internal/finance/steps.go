package finance

import (
	"github.com/shopspring/decimal"

	"github.com/grantdesk/grantdesk/internal/options"
	"github.com/grantdesk/grantdesk/internal/wizard"
)

// FundingRow links a financing source to a project with its committed amount.
type FundingRow struct {
	FinancingSourceID string          `json:"financing_source_id"`
	Amount            decimal.Decimal `json:"amount"`
}

// DonationRow is one donation entered in the project wizard.
type DonationRow struct {
	Donor  string          `json:"donor"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
}

// ExpenseRow is one budgeted expense entered in the project wizard.
type ExpenseRow struct {
	Concept  string          `json:"concept"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date"`
}

// FundingStep edits the financing sources of a project.
func FundingStep() *wizard.LineItemStep[FundingRow] {
	return &wizard.LineItemStep[FundingRow]{
		StepKey:   "financing_sources",
		StepTitle: "Financing sources",
		Columns: []wizard.Column{
			{Name: "financing_source_id", Label: "Source", Required: true, Source: "financing_sources"},
			{Name: "amount", Label: "Amount", Required: true, Amount: true},
		},
		Build: func(cells map[string]string) (FundingRow, error) {
			amount, err := decimal.NewFromString(cells["amount"])
			if err != nil {
				return FundingRow{}, err
			}
			return FundingRow{FinancingSourceID: cells["financing_source_id"], Amount: amount}, nil
		},
	}
}

// DonationStep edits the donations of a project.
func DonationStep() *wizard.LineItemStep[DonationRow] {
	return &wizard.LineItemStep[DonationRow]{
		StepKey:   "donations",
		StepTitle: "Donations",
		Columns: []wizard.Column{
			{Name: "donor", Label: "Donor", Required: true},
			{Name: "type", Label: "Type", Required: true, Choices: choices(DonationTypes)},
			{Name: "amount", Label: "Amount", Required: true, Amount: true},
			{Name: "date", Label: "Date", Required: true, Date: true},
		},
		Build: func(cells map[string]string) (DonationRow, error) {
			amount, err := decimal.NewFromString(cells["amount"])
			if err != nil {
				return DonationRow{}, err
			}
			return DonationRow{Donor: cells["donor"], Type: cells["type"], Amount: amount, Date: cells["date"]}, nil
		},
	}
}

// ExpenseStep edits the budgeted expenses of a project.
func ExpenseStep() *wizard.LineItemStep[ExpenseRow] {
	return &wizard.LineItemStep[ExpenseRow]{
		StepKey:   "expenses",
		StepTitle: "Expenses",
		Columns: []wizard.Column{
			{Name: "concept", Label: "Concept", Required: true},
			{Name: "category", Label: "Category", Required: true, Choices: choices(ExpenseCategories)},
			{Name: "amount", Label: "Amount", Required: true, Amount: true},
			{Name: "date", Label: "Date", Date: true},
		},
		Build: func(cells map[string]string) (ExpenseRow, error) {
			amount, err := decimal.NewFromString(cells["amount"])
			if err != nil {
				return ExpenseRow{}, err
			}
			return ExpenseRow{Concept: cells["concept"], Category: cells["category"], Amount: amount, Date: cells["date"]}, nil
		},
	}
}

func choices(opts []options.Option) []wizard.Choice {
	out := make([]wizard.Choice, len(opts))
	for i, o := range opts {
		out[i] = wizard.Choice{Value: o.Value, Label: o.Label}
	}
	return out
}
