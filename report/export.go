// Package report exports the reconciliation state as an Excel workbook for
// operators comparing it against the gateway's settlement report.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/Govind-619/SettleSphere/models"
	"github.com/Govind-619/SettleSphere/store"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

const timeLayout = "2006-01-02 15:04"

// Summary totals a snapshot by status
type Summary struct {
	PaymentsByStatus map[string]int
	PaidTotal        decimal.Decimal
	RefundedTotal    decimal.Decimal
	DepositsPending  int
	DepositsCredited int
	CreditedTotal    decimal.Decimal
	EventsByOutcome  map[string]int
}

// Summarize totals a snapshot
func Summarize(snap *store.Snapshot) Summary {
	s := Summary{
		PaymentsByStatus: map[string]int{},
		EventsByOutcome:  map[string]int{},
	}
	for _, p := range snap.Payments {
		s.PaymentsByStatus[p.Status]++
		switch p.Status {
		case models.PaymentStatusCompleted:
			s.PaidTotal = s.PaidTotal.Add(p.Amount)
		case models.PaymentStatusRefunded:
			s.RefundedTotal = s.RefundedTotal.Add(p.Amount)
		}
	}
	for _, d := range snap.Deposits {
		if d.Status == models.DepositStatusCompleted {
			s.DepositsCredited++
			s.CreditedTotal = s.CreditedTotal.Add(d.Amount)
		} else {
			s.DepositsPending++
		}
	}
	for _, e := range snap.Events {
		s.EventsByOutcome[e.Outcome]++
	}
	return s
}

// Build lays a snapshot out as a workbook with Summary, Payments, Deposits
// and Events sheets
func Build(snap *store.Snapshot, since time.Time) (*xlsx.File, error) {
	file := xlsx.NewFile()

	summary, err := file.AddSheet("Summary")
	if err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	writeSummary(summary, Summarize(snap), since)

	payments, err := file.AddSheet("Payments")
	if err != nil {
		return nil, fmt.Errorf("failed to create payments sheet: %w", err)
	}
	header(payments, "Payment ID", "Order ID", "Gateway Order", "Capture ID", "Amount", "Currency", "Status", "Updated")
	for _, p := range snap.Payments {
		row := payments.AddRow()
		row.AddCell().SetInt(int(p.ID))
		row.AddCell().SetInt(int(p.OrderID))
		row.AddCell().SetString(p.GatewayOrderID)
		row.AddCell().SetString(p.CaptureID)
		row.AddCell().SetFloat(p.Amount.InexactFloat64())
		row.AddCell().SetString(p.Currency)
		row.AddCell().SetString(p.Status)
		row.AddCell().SetString(p.UpdatedAt.Format(timeLayout))
	}

	deposits, err := file.AddSheet("Deposits")
	if err != nil {
		return nil, fmt.Errorf("failed to create deposits sheet: %w", err)
	}
	header(deposits, "Deposit ID", "User ID", "Gateway Order", "Amount", "Status", "Created", "Completed")
	for _, d := range snap.Deposits {
		row := deposits.AddRow()
		row.AddCell().SetString(d.ID)
		row.AddCell().SetInt(int(d.UserID))
		row.AddCell().SetString(d.GatewayOrderID)
		row.AddCell().SetFloat(d.Amount.InexactFloat64())
		row.AddCell().SetString(d.Status)
		row.AddCell().SetString(d.CreatedAt.Format(timeLayout))
		completed := ""
		if d.CompletedAt != nil {
			completed = d.CompletedAt.Format(timeLayout)
		}
		row.AddCell().SetString(completed)
	}

	events, err := file.AddSheet("Events")
	if err != nil {
		return nil, fmt.Errorf("failed to create events sheet: %w", err)
	}
	header(events, "Processed", "Event ID", "Event Type", "Intent", "Reference", "Outcome", "Error")
	for _, e := range snap.Events {
		row := events.AddRow()
		row.AddCell().SetString(e.ProcessedAt.Format(timeLayout))
		row.AddCell().SetString(e.EventID)
		row.AddCell().SetString(e.EventType)
		row.AddCell().SetString(e.Intent)
		row.AddCell().SetString(e.Reference)
		row.AddCell().SetString(e.Outcome)
		row.AddCell().SetString(e.Error)
	}

	return file, nil
}

// Write builds the workbook and writes it to w
func Write(w io.Writer, snap *store.Snapshot, since time.Time) error {
	file, err := Build(snap, since)
	if err != nil {
		return err
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

func writeSummary(sheet *xlsx.Sheet, s Summary, since time.Time) {
	title := sheet.AddRow().AddCell()
	title.SetString("SETTLESPHERE - Reconciliation Report")
	title.SetStyle(boldStyle())

	period := "all time"
	if !since.IsZero() {
		period = "since " + since.Format("2006-01-02")
	}
	sheet.AddRow().AddCell().SetString("Period: " + period)
	sheet.AddRow()

	rows := [][]string{
		{"Payments completed", fmt.Sprintf("%d", s.PaymentsByStatus[models.PaymentStatusCompleted])},
		{"Payments pending", fmt.Sprintf("%d", s.PaymentsByStatus[models.PaymentStatusPending])},
		{"Payments failed", fmt.Sprintf("%d", s.PaymentsByStatus[models.PaymentStatusFailed])},
		{"Payments refunded", fmt.Sprintf("%d", s.PaymentsByStatus[models.PaymentStatusRefunded])},
		{"Paid total", s.PaidTotal.StringFixed(2)},
		{"Refunded total", s.RefundedTotal.StringFixed(2)},
		{"Deposits credited", fmt.Sprintf("%d", s.DepositsCredited)},
		{"Deposits pending", fmt.Sprintf("%d", s.DepositsPending)},
		{"Credited total", s.CreditedTotal.StringFixed(2)},
	}
	for outcome, n := range s.EventsByOutcome {
		rows = append(rows, []string{"Events " + outcome, fmt.Sprintf("%d", n)})
	}
	for _, data := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(data[0])
		row.AddCell().SetString(data[1])
	}
}

func header(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	style := boldStyle()
	for _, h := range titles {
		cell := row.AddCell()
		cell.SetString(h)
		cell.SetStyle(style)
	}
}

func boldStyle() *xlsx.Style {
	style := xlsx.NewStyle()
	font := xlsx.DefaultFont()
	font.Bold = true
	style.Font = *font
	return style
}
