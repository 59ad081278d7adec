package viewmodels

type ColumnMapping struct {
	SourceColumn string `json:"source_column"`
	TargetField  string `json:"target_field"`
}

type ImportBatch struct {
	ID             string          `json:"id"`
	EntityType     string          `json:"entity_type"`
	SourceFileName string          `json:"source_file_name"`
	SourceFormat   string          `json:"source_format"`
	ColumnMapping  []ColumnMapping `json:"column_mapping"`
	TotalRows      int             `json:"total_rows"`
	SuccessCount   int             `json:"success_count"`
	ErrorCount     int             `json:"error_count"`
	Status         string          `json:"status"`
	StartedAt      string          `json:"started_at,omitempty"`
	CompletedAt    string          `json:"completed_at,omitempty"`
	UndoneAt       string          `json:"undone_at,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

type Cell struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

type ImportError struct {
	ID           string  `json:"id"`
	RowNumber    int     `json:"row_number"`
	FieldName    *string `json:"field_name"`
	ErrorMessage string  `json:"error_message"`
	Kind         string  `json:"kind"`
	RowData      []Cell  `json:"row_data"`
}

type RunResult struct {
	BatchID      string `json:"batch_id"`
	TotalRows    int    `json:"total_rows"`
	SuccessCount int    `json:"success_count"`
	ErrorCount   int    `json:"error_count"`
	Status       string `json:"status"`
}

type Field struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Type     string   `json:"type"`
	Merge    bool     `json:"merge,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
}

type Schema struct {
	EntityType     string   `json:"entity_type"`
	Label          string   `json:"label"`
	DedupeEligible bool     `json:"dedupe_eligible"`
	DedupeKeys     []string `json:"dedupe_keys,omitempty"`
	Fields         []Field  `json:"fields"`
}
