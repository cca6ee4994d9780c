package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"soldeser/internal/models"
)

func TestTimesheet(t *testing.T) {
	// Arrange
	madrid := time.FixedZone("CET", 3600)
	base := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	ana := &models.User{Model: gorm.Model{ID: 1}, FirstName: "Ana", LastName: "García", Email: "ana@obra.es"}
	luis := &models.User{Model: gorm.Model{ID: 2}, FirstName: "Luis", Email: "luis@obra.es"}
	site := &models.Worksite{Name: "Obra Sol"}
	within, outside := true, false
	dist := 356

	records := []models.AttendanceRecord{
		{UserID: 1, User: ana, Kind: models.ClockIn, Timestamp: base, Worksite: site, IsWithinGeofence: &within},
		{UserID: 1, User: ana, Kind: models.ClockOut, Timestamp: base.Add(8 * time.Hour), Worksite: site, IsWithinGeofence: &outside, DistanceFromSite: &dist, Notes: "salida"},
		{UserID: 2, User: luis, Kind: models.ClockIn, Timestamp: base.Add(time.Hour)},
		{UserID: 2, User: luis, Kind: models.ClockOut, Timestamp: base.Add(5*time.Hour + 30*time.Minute)},
	}

	// Act
	f, err := Timesheet(records, madrid)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	// Assert
	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	assert.Equal(t, []string{SheetRecords, SheetSummary}, book.GetSheetList())

	rows, err := book.GetRows(SheetRecords)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Fecha", rows[0][0])
	assert.Equal(t, []string{"10/03/2025", "08:00:00", "Entrada", "Ana García", "ana@obra.es", "Obra Sol", "Sí"}, rows[1])
	assert.Equal(t, []string{"10/03/2025", "16:00:00", "Salida", "Ana García", "ana@obra.es", "Obra Sol", "No", "356", "salida"}, rows[2])
	assert.Equal(t, "Sin asignar", rows[3][5])

	summary, err := book.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, []string{"Ana García", "ana@obra.es", "1", "8"}, summary[1])
	assert.Equal(t, []string{"Luis", "luis@obra.es", "1", "4.5"}, summary[2])
}

func TestTimesheet_Empty(t *testing.T) {
	f, err := Timesheet(nil, nil)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Trabajador", rows[0][0])
}
