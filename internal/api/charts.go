package api

import (
	"net/http"
	"strconv"

	"github.com/promptchart/promptchart/internal/pinned"
)

type chartRequest struct {
	Prompt string `json:"prompt"`
}

type pinRequest struct {
	Prompt string `json:"prompt"`
	Query  string `json:"query"`
}

type checkPinnedResponse struct {
	IsPinned bool          `json:"isPinned"`
	Chart    *pinned.Chart `json:"chart,omitempty"`
}

func handleGenerateChart(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var request chartRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chart request body", false, map[string]any{"details": err.Error()})
		return
	}
	payload, err := deps.Charts.GenerateChart(r.Context(), request.Prompt)
	if err != nil {
		writeFailure(r, w, deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func handleReplayPinned(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	payloads, err := deps.Charts.ListPinnedCharts(r.Context())
	if err != nil {
		writeFailure(r, w, deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payloads)
}

func handleListPinned(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	charts, err := deps.Charts.PinnedCharts(r.Context())
	if err != nil {
		writeFailure(r, w, deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, charts)
}

func handlePin(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var request pinRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid pin request body", false, map[string]any{"details": err.Error()})
		return
	}
	item, err := deps.Charts.Pin(r.Context(), request.Prompt, request.Query)
	if err != nil {
		writeFailure(r, w, deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func handleCheckPinned(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var request pinRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid check request body", false, map[string]any{"details": err.Error()})
		return
	}
	item, ok, err := deps.Charts.CheckPinned(r.Context(), request.Prompt, request.Query)
	if err != nil {
		writeFailure(r, w, deps.Logger, err)
		return
	}
	response := checkPinnedResponse{IsPinned: ok}
	if ok {
		response.Chart = &item
	}
	writeJSON(w, http.StatusOK, response)
}

func handlePinnedData(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	id, ok := pinnedIDFromPath(w, r)
	if !ok {
		return
	}
	data, err := deps.Charts.PinnedData(r.Context(), id)
	if err != nil {
		writeFailure(r, w, deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func handleUnpin(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	id, ok := pinnedIDFromPath(w, r)
	if !ok {
		return
	}
	if err := deps.Charts.Unpin(r.Context(), id); err != nil {
		writeFailure(r, w, deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "isPinned": false})
}

func pinnedIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_PINNED_ID", "pinned chart id must be a positive integer", false, map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}
