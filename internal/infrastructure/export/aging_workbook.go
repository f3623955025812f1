// Package export renders aging snapshots as spreadsheets.
package export

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared/valueobject"
)

const (
	SheetAging   = "Aging"
	SheetSummary = "Summary"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var agingHeader = []any{
	"Customer", "Snapshot date", "Type", "Current", "31-60", "61-90", "91-120", "Over 120",
	"Total outstanding", "Invoices", "Overdue", "Oldest (days)", "Credit limit",
	"Utilization %", "Reliability", "Risk", "Collection",
}

// AgingWorkbook writes one row per snapshot plus a summary sheet of bucket totals.
// Amounts are written as formatted rupiah strings.
type AgingWorkbook struct{}

// NewAgingWorkbook creates the writer
func NewAgingWorkbook() *AgingWorkbook {
	return &AgingWorkbook{}
}

// ContentType returns the XLSX MIME type
func (*AgingWorkbook) ContentType() string { return xlsxContentType }

// Extension returns the file extension without a dot
func (*AgingWorkbook) Extension() string { return "xlsx" }

// Write renders the snapshots as of asOf
func (w *AgingWorkbook) Write(snapshots []*finance.CustomerAgingSnapshot, asOf time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetAging); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(SheetAging, "A1", &agingHeader); err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(SheetAging, 1, 1, bold); err != nil {
		return nil, err
	}

	totals := finance.AgingBuckets{
		Current:     decimal.Zero,
		Days31To60:  decimal.Zero,
		Days61To90:  decimal.Zero,
		Days91To120: decimal.Zero,
		Over120:     decimal.Zero,
	}
	for i, s := range snapshots {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			s.CustomerID.String(),
			s.SnapshotDate.Format(time.DateOnly),
			string(s.SnapshotType),
			valueobject.FormatIDR(s.Current),
			valueobject.FormatIDR(s.Days31To60),
			valueobject.FormatIDR(s.Days61To90),
			valueobject.FormatIDR(s.Days91To120),
			valueobject.FormatIDR(s.Over120),
			valueobject.FormatIDR(s.TotalOutstanding),
			s.TotalInvoicesCount,
			s.OverdueInvoicesCount,
			s.DaysOldestInvoice,
			valueobject.FormatIDR(s.CreditLimit),
			s.CreditUtilizationPercentage.StringFixed(2),
			s.ReliabilityScore.StringFixed(2),
			string(s.RiskLevel),
			string(s.CollectionStatus),
		}
		if err := f.SetSheetRow(SheetAging, cell, &row); err != nil {
			return nil, err
		}

		totals.Current = totals.Current.Add(s.Current)
		totals.Days31To60 = totals.Days31To60.Add(s.Days31To60)
		totals.Days61To90 = totals.Days61To90.Add(s.Days61To90)
		totals.Days91To120 = totals.Days91To120.Add(s.Days91To120)
		totals.Over120 = totals.Over120.Add(s.Over120)
	}
	if err := f.SetColWidth(SheetAging, "A", "A", 38); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetAging, "D", "I", 20); err != nil {
		return nil, err
	}
	if err := f.AutoFilter(SheetAging, fmt.Sprintf("A1:Q%d", len(snapshots)+1), nil); err != nil {
		return nil, err
	}

	if err := writeSummary(f, totals, len(snapshots), asOf, bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render aging workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, totals finance.AgingBuckets, customers int, asOf time.Time, bold int) error {
	rows := [][]any{
		{"As of", asOf.Format(time.DateOnly)},
		{"Customers", customers},
		{"Current", valueobject.FormatIDR(totals.Current)},
		{"31-60", valueobject.FormatIDR(totals.Days31To60)},
		{"61-90", valueobject.FormatIDR(totals.Days61To90)},
		{"91-120", valueobject.FormatIDR(totals.Days91To120)},
		{"Over 120", valueobject.FormatIDR(totals.Over120)},
		{"Total", valueobject.FormatIDR(totals.Total())},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(SheetSummary, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SheetSummary, "A", "B", 20); err != nil {
		return err
	}
	return f.SetCellStyle(SheetSummary, "A1", fmt.Sprintf("A%d", len(rows)), bold)
}
