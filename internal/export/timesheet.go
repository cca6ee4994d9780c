// Package export renders attendance records as downloadable timesheets.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"soldeser/internal/attendance"
	"soldeser/internal/models"
)

const (
	SheetRecords = "Fichajes"
	SheetSummary = "Resumen"
)

var (
	recordHeader  = []interface{}{"Fecha", "Hora", "Tipo", "Trabajador", "Email", "Obra", "En zona", "Distancia (m)", "Notas"}
	summaryHeader = []interface{}{"Trabajador", "Email", "Sesiones", "Horas"}
)

// Timesheet builds a workbook with one row per record and a per-worker hours summary.
// records must be grouped by worker and ascending by timestamp within each worker,
// which is how store.ReportRepository returns them. Dates are written in loc.
func Timesheet(records []models.AttendanceRecord, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetRecords); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeRows(f, SheetRecords, recordHeader, recordRows(records, loc)); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeRows(f, SheetSummary, summaryHeader, summaryRows(records)); err != nil {
		f.Close()
		return nil, err
	}

	for sheet, last := range map[string]string{SheetRecords: "I", SheetSummary: "D"} {
		if err := f.SetCellStyle(sheet, "A1", last+"1", bold); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func recordRows(records []models.AttendanceRecord, loc *time.Location) [][]interface{} {
	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		at := r.Timestamp.In(loc)
		worksite := "Sin asignar"
		if r.Worksite != nil {
			worksite = r.Worksite.Name
		}
		var distance interface{} = ""
		if r.DistanceFromSite != nil {
			distance = *r.DistanceFromSite
		}
		rows = append(rows, []interface{}{
			at.Format("02/01/2006"),
			at.Format("15:04:05"),
			kindLabel(r.Kind),
			workerName(r),
			workerEmail(r),
			worksite,
			withinLabel(r.IsWithinGeofence),
			distance,
			r.Notes,
		})
	}
	return rows
}

func summaryRows(records []models.AttendanceRecord) [][]interface{} {
	var rows [][]interface{}
	for start := 0; start < len(records); {
		end := start
		for end < len(records) && records[end].UserID == records[start].UserID {
			end++
		}
		s := attendance.Summarize(records[start:end])
		rows = append(rows, []interface{}{
			workerName(records[start]),
			workerEmail(records[start]),
			s.SessionCount,
			attendance.RoundHours(s.TotalHours),
		})
		start = end
	}
	return rows
}

func kindLabel(k models.ClockKind) string {
	if k == models.ClockIn {
		return "Entrada"
	}
	return "Salida"
}

func withinLabel(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return "Sí"
	default:
		return "No"
	}
}

func workerName(r models.AttendanceRecord) string {
	if r.User == nil {
		return fmt.Sprintf("#%d", r.UserID)
	}
	return r.User.FullName()
}

func workerEmail(r models.AttendanceRecord) string {
	if r.User == nil {
		return ""
	}
	return r.User.Email
}
