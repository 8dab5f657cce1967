package steps

// Row is one spreadsheet row enriched with provenance. Cells are raw string
// values in column order.
type Row struct {
	SheetName     string   `json:"sheet_name"`
	SheetOrder    int      `json:"sheet_order"`
	SheetRowIndex int      `json:"sheet_row_index"`
	Cells         []string `json:"cells"`
}

// Draft is a candidate requirement produced by extraction, before
// normalization and persistence.
type Draft struct {
	Text          string    `json:"text"`
	Type          string    `json:"type,omitempty"`
	Categories    [2]string `json:"categories"`
	SheetName     string    `json:"sheet_name"`
	SheetOrder    int       `json:"sheet_order"`
	SheetRowIndex int       `json:"sheet_row_index"`
}

// SheetCategory is the sheet-level half of the dual categorization.
func (d Draft) SheetCategory() string { return d.Categories[0] }

// PrecedingCategory is the nearest-preceding-text half of the dual
// categorization.
func (d Draft) PrecedingCategory() string { return d.Categories[1] }
