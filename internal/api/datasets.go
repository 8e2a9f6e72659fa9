package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/promptchart/promptchart/internal/query"
)

const maxDatasetRows = 10000

type datasetRequest struct {
	Prompt  string          `json:"prompt"`
	Columns []string        `json:"columns"`
	Rows    [][]query.Value `json:"rows"`
}

func handleAnalyzeDataset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var request datasetRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid dataset request body", false, map[string]any{"details": err.Error()})
		return
	}
	dataset, err := request.result()
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DATASET", err.Error(), false, nil)
		return
	}

	analysis, err := deps.Charts.AnalyzeDataset(r.Context(), request.Prompt, dataset)
	if err != nil {
		writeFailure(r, w, deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (req datasetRequest) result() (query.Result, error) {
	if len(req.Columns) == 0 {
		return query.Result{}, fmt.Errorf("columns are required")
	}
	for i, column := range req.Columns {
		if strings.TrimSpace(column) == "" {
			return query.Result{}, fmt.Errorf("column %d has no name", i)
		}
	}
	if len(req.Rows) > maxDatasetRows {
		return query.Result{}, fmt.Errorf("dataset has %d rows, limit is %d", len(req.Rows), maxDatasetRows)
	}

	rows := make([]query.Row, 0, len(req.Rows))
	for i, values := range req.Rows {
		if len(values) != len(req.Columns) {
			return query.Result{}, fmt.Errorf("row %d has %d values, want %d", i, len(values), len(req.Columns))
		}
		rows = append(rows, query.Row(values))
	}
	return query.Result{Columns: req.Columns, Rows: rows}, nil
}
