// Package export renders bookings as an Excel workbook.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fishcharter/internal/models"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Bookings"

var headers = []string{
	"Booking ID", "Date", "Time", "Service", "Status", "Customer", "Email", "Phone",
	"People", "Total", "Fee Paid", "Remaining", "Payment ID", "Created", "Expires",
}

// money columns J..L
const (
	firstMoneyCol = 10
	lastMoneyCol  = 12
)

// WriteBookings writes a workbook with one row per booking to w.
func WriteBookings(w io.Writer, bookings []*models.Booking) error {
	f, err := build(bookings)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveBookings writes the workbook to path, creating the directory if needed.
func SaveBookings(path string, bookings []*models.Booking) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := build(bookings)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("error saving file: %w", err)
	}
	return nil
}

func build(bookings []*models.Booking) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	moneyFmt := "$#,##0.00"
	moneyStyle, _ := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	heldStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFF2CC"}, Pattern: 1},
	})

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(SheetName, "A1", lastHeader, headerStyle)

	for i, b := range bookings {
		row := i + 2
		if err := f.SetSheetRow(SheetName, fmt.Sprintf("A%d", row), rowValues(b)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", row, err)
		}
		from, _ := excelize.CoordinatesToCellName(firstMoneyCol, row)
		to, _ := excelize.CoordinatesToCellName(lastMoneyCol, row)
		_ = f.SetCellStyle(SheetName, from, to, moneyStyle)
		if b.BookingStatus == models.StatusReserved {
			_ = f.SetCellStyle(SheetName, fmt.Sprintf("E%d", row), fmt.Sprintf("E%d", row), heldStyle)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 38)
	_ = f.SetColWidth(SheetName, "B", "I", 14)
	_ = f.SetColWidth(SheetName, "F", "G", 24)
	_ = f.SetColWidth(SheetName, "J", "L", 12)
	_ = f.SetColWidth(SheetName, "M", "O", 22)
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	return f, nil
}

func rowValues(b *models.Booking) []interface{} {
	expires := ""
	if b.ReservationExpiresAt != nil {
		expires = b.ReservationExpiresAt.UTC().Format("2006-01-02 15:04:05")
	}
	return []interface{}{
		b.ID,
		b.Date,
		b.Time,
		b.ServiceType,
		b.BookingStatus,
		b.CustomerName,
		b.Email,
		b.Phone,
		b.NumberOfPeople,
		b.TotalAmount.Float(),
		b.BookingFeePaid.Float(),
		b.RemainingBalance.Float(),
		b.PaymentID,
		b.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		expires,
	}
}
