package report

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/tcsync/internal/model"
)

// Sheet names of the XLSX report.
const (
	SheetResults  = "Results"
	SheetItems    = "Items"
	SheetValidation = "Validation"
)

// WriteXLSX saves a workbook with a results sheet, a per-item sheet and a
// validation sheet.
func WriteXLSX(path string, results []model.RecordResult) error {
	f, err := BuildWorkbook(results)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save xlsx")
	}
	return nil
}

// BuildWorkbook renders results into an in-memory workbook.
func BuildWorkbook(results []model.RecordResult) (*xlsx.File, error) {
	f := xlsx.NewFile()

	res, err := f.AddSheet(SheetResults)
	if err != nil {
		return nil, eris.Wrap(err, "report: add results sheet")
	}
	addRow(res, "Record", "Tracking", "Outcome", "Key", "Linked", "Failed", "Progress", "Error")
	for _, r := range results {
		linked, failed := itemCounts(r)
		percent := ""
		if r.Progress != nil {
			percent = fmt.Sprintf("%.0f%%", r.Progress.Percent()*100)
		}
		addRow(res,
			r.RecordID,
			r.Tracking,
			string(r.Outcome()),
			deref(r.Key),
			fmt.Sprint(linked),
			fmt.Sprint(failed),
			percent,
			deref(r.Error),
		)
	}

	items, err := f.AddSheet(SheetItems)
	if err != nil {
		return nil, eris.Wrap(err, "report: add items sheet")
	}
	addRow(items, "Record", "Result", "Category", "Label", "Error")
	for _, r := range results {
		if r.Progress == nil {
			continue
		}
		for _, li := range r.Progress.LinkedItems {
			addRow(items, r.RecordID, "linked", string(li.Category), li.Label, "")
		}
		for _, fi := range r.Progress.FailedItems {
			addRow(items, r.RecordID, "failed", "", fi.Label, fi.Error)
		}
	}

	val, err := f.AddSheet(SheetValidation)
	if err != nil {
		return nil, eris.Wrap(err, "report: add validation sheet")
	}
	addRow(val, "Record", "Validated", "Drift", "Details")
	for _, r := range results {
		if r.Progress == nil || r.Progress.Validation == nil {
			continue
		}
		v := *r.Progress.Validation
		addRow(val,
			r.RecordID,
			fmt.Sprint(v.IsValidated),
			fmt.Sprint(v.HasDrift()),
			strings.Join(DriftLines(v), "; "),
		)
	}

	return f, nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
