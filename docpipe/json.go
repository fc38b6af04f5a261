package docpipe

import (
	"encoding/json"
	"fmt"
	"os"
)

// pageDump is the JSON layout written by external table extractors:
//
//	{"pages":[{"number":1,"text":"...","tables":[[["Disciplina","1º Trimestre"],["Matemática","8,5"]]]}]}
//
// Cells may be null.
type pageDump struct {
	Pages []struct {
		Number int           `json:"number"`
		Text   string        `json:"text"`
		Tables [][][]*string `json:"tables"`
	} `json:"pages"`
}

func extractJSON(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dump pageDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("decode page dump: %w", err)
	}

	pages := make([]Page, 0, len(dump.Pages))
	for i, p := range dump.Pages {
		page := Page{Number: p.Number, Text: normalizeNewlines(p.Text)}
		if page.Number <= 0 {
			page.Number = i + 1
		}
		for _, raw := range p.Tables {
			table := make(Table, 0, len(raw))
			for _, rawRow := range raw {
				row := make([]string, len(rawRow))
				for k, c := range rawRow {
					if c != nil {
						row[k] = *c
					}
				}
				table = append(table, row)
			}
			page.Tables = append(page.Tables, table)
		}
		pages = append(pages, page)
	}
	return pages, nil
}
