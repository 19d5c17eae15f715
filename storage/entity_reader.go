package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"review-harvester/models"
	"review-harvester/services"
)

// Recognized header aliases per input column.
var (
	IDColumns    = []string{"id", "firm_id", "2gis_id"}
	NameColumns  = []string{"name", "Название", "title"}
	PhoneColumns = []string{"phones", "phone", "телефон", "номер", "phone_number", "contacts"}
	LatColumns   = []string{"lat", "latitude"}
	LonColumns   = []string{"lon", "longitude", "lng"}
)

// ColumnMap holds the resolved index of each recognized column, -1 if absent.
type ColumnMap struct {
	ID, Name, Phone, Lat, Lon int
}

// PickColumn returns the index of the first alias present in header: exact
// matches first, then case-insensitive. -1 if none match.
func PickColumn(header []string, aliases []string) int {
	for _, a := range aliases {
		for i, h := range header {
			if strings.TrimSpace(h) == a {
				return i
			}
		}
	}
	for _, a := range aliases {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), a) {
				return i
			}
		}
	}
	return -1
}

// ResolveColumns maps a header row onto the recognized columns.
func ResolveColumns(header []string) ColumnMap {
	return ColumnMap{
		ID:    PickColumn(header, IDColumns),
		Name:  PickColumn(header, NameColumns),
		Phone: PickColumn(header, PhoneColumns),
		Lat:   PickColumn(header, LatColumns),
		Lon:   PickColumn(header, LonColumns),
	}
}

// ReadEntities loads source entities from an .xlsx (first sheet) or .csv
// file. Missing columns leave the corresponding fields empty.
func ReadEntities(path string) ([]models.SourceEntity, ColumnMap, error) {
	var (
		table [][]string
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		table, err = readXLSX(path)
	default:
		table, err = readCSV(path)
	}
	if err != nil {
		return nil, ColumnMap{}, err
	}
	if len(table) == 0 {
		return nil, ColumnMap{ID: -1, Name: -1, Phone: -1, Lat: -1, Lon: -1}, nil
	}

	cols := ResolveColumns(table[0])
	entities := make([]models.SourceEntity, 0, len(table)-1)
	for i, row := range table[1:] {
		entities = append(entities, EntityFromRow(i, row, cols))
	}
	return entities, cols, nil
}

// EntityFromRow builds the entity for data row i.
func EntityFromRow(i int, row []string, cols ColumnMap) models.SourceEntity {
	e := models.SourceEntity{
		RowIndex: i,
		IDPrefix: services.IDPrefix(cell(row, cols.ID)),
		Name:     cell(row, cols.Name),
		Phones:   cell(row, cols.Phone),
	}

	lat, latOK := parseCoord(cell(row, cols.Lat))
	lon, lonOK := parseCoord(cell(row, cols.Lon))
	if latOK && lonOK {
		e.Location = &models.GeoPoint{Lat: lat, Lon: lon}
	}
	return e
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[idx])
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}

func parseCoord(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("input: open xlsx %q: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("input: %q has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("input: read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: open csv %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("input: parse csv %q: %w", path, err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], utf8BOM)
	}
	return rows, nil
}
