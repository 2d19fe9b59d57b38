package extract

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// xlsxText renders every sheet as a titled block of tab-separated rows.
func xlsxText(data []byte) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", eris.Wrap(err, "extract: open xlsx")
	}

	var blocks []string
	for _, sheet := range f.Sheets {
		var lines []string
		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cells := rowToStrings(row)
			if strings.TrimSpace(strings.Join(cells, "")) == "" {
				continue
			}
			lines = append(lines, strings.Join(cells, "\t"))
		}
		if len(lines) == 0 {
			continue
		}
		blocks = append(blocks, "## "+sheet.Name+"\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n"), nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
