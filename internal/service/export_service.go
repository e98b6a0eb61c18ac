package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
)

// ── export module errors ──

var ErrExportGenerateFail = errors.New("failed to generate spreadsheet")

// ExportService spreadsheet reports.
//
// Both reports reuse the JSON read paths, so the spreadsheet and the API
// never disagree. The buffer is written to the response by the handler.
type ExportService interface {
	// ExportSalesByRep sales-by-rep report; one row per rep plus a total row
	ExportSalesByRep(ctx context.Context, q *dto.SalesByRepQuery) (*bytes.Buffer, string, error)
	// ExportLedgerStatement a doctor's ledger with FIFO remaining/consumed columns
	ExportLedgerStatement(ctx context.Context, doctorID string, actor Actor) (*bytes.Buffer, string, error)
}

type exportService struct {
	order  OrderService
	ledger LedgerService
	logger *zap.Logger
}

// NewExportService creates an ExportService
func NewExportService(order OrderService, ledger LedgerService, logger *zap.Logger) ExportService {
	return &exportService{order: order, ledger: ledger, logger: logger}
}

// ────────────────────── ExportSalesByRep ──────────────────────
//
// Layout:
//   - row 1: title with the period and time zone
//   - row 2: header (Sales rep, Rep ID, Orders, Revenue)
//   - rows 3..n: one row per rep, revenue descending
//   - last row: totals

func (s *exportService) ExportSalesByRep(ctx context.Context, q *dto.SalesByRepQuery) (*bytes.Buffer, string, error) {
	report, err := s.order.GetSalesByRep(ctx, q)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sales by rep"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheet, "A", "A", 28)
	f.SetColWidth(sheet, "B", "B", 38)
	f.SetColWidth(sheet, "C", "D", 14)

	headerStyle := newHeaderStyle(f)
	moneyStyle := newMoneyStyle(f)

	f.SetCellValue(sheet, "A1", fmt.Sprintf("Sales by rep %s (%s)", periodLabel(report.PeriodStart, report.PeriodEnd), report.TimeZone))
	f.MergeCell(sheet, "A1", "D1")
	f.SetCellStyle(sheet, "A1", "D1", headerStyle)

	row := 2
	for i, h := range []string{"Sales rep", "Rep ID", "Orders", "Revenue"} {
		f.SetCellValue(sheet, cell(colName(i), row), h)
	}
	f.SetCellStyle(sheet, cell("A", row), cell("D", row), headerStyle)

	row = 3
	for _, r := range report.Rows {
		name := r.SalesRepName
		if name == "" {
			name = "-"
		}
		f.SetCellValue(sheet, cell("A", row), name)
		f.SetCellValue(sheet, cell("B", row), r.SalesRepID)
		f.SetCellValue(sheet, cell("C", row), r.OrderCount)
		f.SetCellValue(sheet, cell("D", row), money(r.Revenue))
		row++
	}
	f.SetCellValue(sheet, cell("A", row), "Total")
	f.SetCellValue(sheet, cell("C", row), report.TotalOrders)
	f.SetCellValue(sheet, cell("D", row), money(report.TotalRevenue))
	f.SetCellStyle(sheet, cell("D", 3), cell("D", row), moneyStyle)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("write sales by rep workbook failed", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("sales_by_rep_%s.xlsx", periodLabel(report.PeriodStart, report.PeriodEnd))
	return buf, filename, nil
}

// ────────────────────── ExportLedgerStatement ──────────────────────
//
// One row per entry in (issued_at, seq) order. Credits carry their FIFO
// consumed/remaining; debits carry the credits they drew from.

func (s *exportService) ExportLedgerStatement(ctx context.Context, doctorID string, actor Actor) (*bytes.Buffer, string, error) {
	summary, err := s.ledger.Summarize(ctx, doctorID, actor)
	if err != nil {
		return nil, "", err
	}

	credits := make(map[string]dto.CreditAllocation, len(summary.Allocation.Credits))
	for _, c := range summary.Allocation.Credits {
		credits[c.EntryID] = c
	}
	debits := make(map[string]dto.DebitAllocation, len(summary.Allocation.Debits))
	for _, d := range summary.Allocation.Debits {
		debits[d.EntryID] = d
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Ledger"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"Issued at", "Entry ID", "Direction", "Reason", "Amount", "Currency", "Consumed", "Remaining", "Drawn from", "Description"}
	widths := []float64{22, 38, 10, 20, 12, 10, 12, 12, 40, 40}
	for i, w := range widths {
		f.SetColWidth(sheet, colName(i), colName(i), w)
	}

	headerStyle := newHeaderStyle(f)
	moneyStyle := newMoneyStyle(f)

	f.SetCellValue(sheet, "A1", fmt.Sprintf("Credit statement %s", doctorID))
	f.MergeCell(sheet, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	row := 2
	for i, h := range headers {
		f.SetCellValue(sheet, cell(colName(i), row), h)
	}
	f.SetCellStyle(sheet, cell("A", row), cell(colName(len(headers)-1), row), headerStyle)

	row = 3
	for _, e := range summary.Ledger {
		f.SetCellValue(sheet, cell("A", row), e.IssuedAt)
		f.SetCellValue(sheet, cell("B", row), e.ID)
		f.SetCellValue(sheet, cell("C", row), e.Direction)
		f.SetCellValue(sheet, cell("D", row), e.Reason)
		f.SetCellValue(sheet, cell("E", row), money(e.Amount))
		f.SetCellValue(sheet, cell("F", row), e.Currency)
		if c, ok := credits[e.ID]; ok {
			f.SetCellValue(sheet, cell("G", row), money(c.Consumed))
			f.SetCellValue(sheet, cell("H", row), money(c.Remaining))
		}
		if d, ok := debits[e.ID]; ok {
			f.SetCellValue(sheet, cell("I", row), drawnFrom(d))
		}
		f.SetCellValue(sheet, cell("J", row), e.Description)
		row++
	}

	row++
	f.SetCellValue(sheet, cell("D", row), "Total credits")
	f.SetCellValue(sheet, cell("E", row), money(summary.TotalCredits))
	f.SetCellValue(sheet, cell("D", row+1), "Total debits")
	f.SetCellValue(sheet, cell("E", row+1), money(summary.TotalDebits))
	f.SetCellValue(sheet, cell("D", row+2), "Available")
	f.SetCellValue(sheet, cell("E", row+2), money(summary.AvailableCredits))
	f.SetCellStyle(sheet, cell("E", 3), cell("E", row+2), moneyStyle)
	f.SetCellStyle(sheet, cell("G", 3), cell("H", row), moneyStyle)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("write ledger statement workbook failed", zap.String("doctor_id", doctorID), zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	return buf, fmt.Sprintf("credit_statement_%s.xlsx", doctorID), nil
}

// ── helpers ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func newHeaderStyle(f *excelize.File) int {
	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	return style
}

func newMoneyStyle(f *excelize.File) int {
	format := "#,##0.00"
	style, _ := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	return style
}

// money cells are numeric so totals can be summed in the sheet
func money(d decimal.Decimal) float64 {
	v, _ := d.Round(2).Float64()
	return v
}

func drawnFrom(d dto.DebitAllocation) string {
	var b bytes.Buffer
	for i, part := range d.Allocations {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s:%s", part.CreditEntryID, part.Amount.StringFixed(2))
	}
	if d.Unallocated.IsPositive() {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "unallocated:%s", d.Unallocated.StringFixed(2))
	}
	return b.String()
}

func periodLabel(start, end string) string {
	switch {
	case start == "" && end == "":
		return "all_time"
	case start == "":
		return "until_" + end
	case end == "":
		return "from_" + start
	default:
		return start + "_" + end
	}
}
