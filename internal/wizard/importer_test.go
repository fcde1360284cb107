package wizard

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type expenseRow struct {
	Concept  string
	Category string
	Amount   string
	Date     string
}

func expenseStep() *LineItemStep[expenseRow] {
	return &LineItemStep[expenseRow]{
		StepKey: "expenses",
		Columns: []Column{
			{Name: "concept", Label: "Concept", Required: true},
			{Name: "category", Label: "Category", Required: true, Choices: []Choice{
				{Value: "materials", Label: "Materials"},
				{Value: "salaries", Label: "Salaries"},
			}},
			{Name: "amount", Label: "Amount", Required: true, Amount: true},
			{Name: "date", Label: "Date", Date: true},
		},
		Build: func(c map[string]string) (expenseRow, error) {
			return expenseRow{Concept: c["concept"], Category: c["category"], Amount: c["amount"], Date: c["date"]}, nil
		},
	}
}

func TestImportCSVCountsBadRows(t *testing.T) {
	csv := strings.Join([]string{
		"Concept,Category,Amount,Date",
		"Cement,Materials,120.00,2024-02-01",
		"Bricks,materials,80,",
		"Mason,Salaries,1500.5,01/03/2024",
		"Paint,Materials,twelve,2024-02-10",
		"Nails,Materials,3.99,2024-02-11",
	}, "\n")

	d, report, err := expenseStep().Import("expenses.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 5, report.Processed)
	assert.Equal(t, 1, report.Errors)
	require.Len(t, d.Rows, 4)
	assert.Equal(t, "Cement", d.Rows[0]["concept"])
	assert.Equal(t, "2024-03-01", d.Rows[2]["date"])
	assert.Equal(t, "1500.50", d.Rows[2]["amount"])
	assert.Equal(t, "Nails", d.Rows[3]["concept"])
}

func TestImportRejectsUnknownLabelsAndMissingColumns(t *testing.T) {
	csv := "concept;category;amount\nFuel;Travel;10\n;Materials;4\nGlue;Materials;2\n"
	d, report, err := expenseStep().Import("x.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, Report{Processed: 3, Errors: 2}, report)
	require.Len(t, d.Rows, 1)
	assert.Equal(t, "Glue", d.Rows[0]["concept"])
}

func TestImportXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Concept", "Category", "Amount"},
		{"Cement", "Materials", 120},
		{"Bricks", "Materials", 80.25},
		{"Paint", "Materials", "n/a"},
		{},
		{"Nails", "Materials", 3},
		{"Mason", "Salaries", 1500},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	d, report, err := expenseStep().Import("expenses.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "5 processed, 1 with errors", report.String())
	require.Len(t, d.Rows, 4)
	assert.Equal(t, "80.25", d.Rows[1]["amount"])
}

func TestImportUnsupportedFormat(t *testing.T) {
	_, _, err := expenseStep().Import("expenses.pdf", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnsupportedSheet)
}

func TestParseAmount(t *testing.T) {
	for _, ok := range []string{"0", "12", "12.5", "12.50", " 7 "} {
		_, err := ParseAmount(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "-1", "1.234", "1e3", "abc", "1,5", ".5"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestNormalizeDateAcceptsExcelSerial(t *testing.T) {
	got, err := normalizeDate("45292")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", got)

	_, err = normalizeDate("tomorrow")
	assert.Error(t, err)
}

func TestStateNavigation(t *testing.T) {
	st := newState("w1", "project", "s", 3, time.Time{})
	assert.False(t, st.GoBack())
	assert.ErrorIs(t, st.GoForward(), ErrNotCommitted)

	st.EntityID = "abc"
	st.markCommitted(0)
	assert.Equal(t, 1, st.CurrentStep)
	assert.True(t, st.OnlyFirstCommitted())
	st.markCommitted(1)
	assert.False(t, st.OnlyFirstCommitted())
	st.markCommitted(2)
	assert.Equal(t, 2, st.CurrentStep)
	assert.ErrorIs(t, st.GoForward(), ErrStepOutOfRange)
}
