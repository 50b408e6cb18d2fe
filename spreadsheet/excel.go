// Package spreadsheet reads rosters from and writes rankings to Excel workbooks.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"classroom-rollcall-go/models"
	"classroom-rollcall-go/roster"
)

// ReadStudentNames reads student names from the first sheet of a workbook.
// Row 1 is a header; column A holds the name.
func ReadStudentNames(file io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("excel file does not contain any sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheet, err)
	}

	names := []string{}
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if name := roster.CleanName(row[0]); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

var rankingHeader = []interface{}{"排名", "姓名", "积分", "答题次数"}

// WriteRankings writes ranked students to a single-sheet workbook named
// after the class.
func WriteRankings(w io.Writer, className string, ranked []models.Student) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(className)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &rankingHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, s := range ranked {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{i + 1, s.Name, s.Score, len(s.History)}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// sheetName makes a class name usable as a sheet name: at most 31 runes,
// none of : \ / ? * [ ].
func sheetName(name string) string {
	out := make([]rune, 0, 31)
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			r = '_'
		}
		out = append(out, r)
		if len(out) == 31 {
			break
		}
	}
	if len(out) == 0 {
		return "Rankings"
	}
	return string(out)
}
