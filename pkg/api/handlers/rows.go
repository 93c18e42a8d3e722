package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"pilotdeck/pkg/logger"
	"pilotdeck/pkg/store"
	"pilotdeck/pkg/utils"
	"pilotdeck/pkg/validation"
)

// DefaultListLimit caps listings when the caller does not pass one.
const DefaultListLimit = 100

// MaxListLimit is a hard cap on a single listing.
const MaxListLimit = 1000

// RegisterRows registers the generic row endpoints on the /v1 subrouter:
//   - GET    /v1/{table}?<field>=<value>&limit=<n>
//   - POST   /v1/{table}
//   - GET    /v1/{table}/{id}
//   - PATCH  /v1/{table}/{id}
//   - DELETE /v1/{table}/{id}
func RegisterRows(r *mux.Router) {
	r.HandleFunc("/{table}", listRows).Methods(http.MethodGet)
	r.HandleFunc("/{table}", insertRow).Methods(http.MethodPost)
	r.HandleFunc("/{table}/{id}", getRow).Methods(http.MethodGet)
	r.HandleFunc("/{table}/{id}", updateRow).Methods(http.MethodPatch)
	r.HandleFunc("/{table}/{id}", deleteRow).Methods(http.MethodDelete)
}

func tableOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	table := mux.Vars(r)["table"]
	if err := validation.ValidateTable(table); err != nil {
		utils.JSONError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return table, true
}

func listRows(w http.ResponseWriter, r *http.Request) {
	table, ok := tableOf(w, r)
	if !ok {
		return
	}
	limit := DefaultListLimit
	filter := map[string]string{}
	for k, vs := range r.URL.Query() {
		if len(vs) == 0 {
			continue
		}
		if k == "limit" {
			if n, err := strconv.Atoi(vs[0]); err == nil && n > 0 {
				limit = n
			}
			continue
		}
		filter[k] = vs[0]
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	rows, err := store.ListRows(table, filter, limit)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	logger.Debug("rows_listed", "table", table, "count", len(rows))
	_ = utils.JSONWrite(w, http.StatusOK, rows)
}

func insertRow(w http.ResponseWriter, r *http.Request) {
	table, ok := tableOf(w, r)
	if !ok {
		return
	}
	var row map[string]any
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	stored, err := store.InsertRow(table, row)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("row_created", "table", table, "id", stored["id"])
	_ = utils.JSONWrite(w, http.StatusCreated, stored)
}

func getRow(w http.ResponseWriter, r *http.Request) {
	table, ok := tableOf(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	row, err := store.GetRow(table, id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, row)
}

func updateRow(w http.ResponseWriter, r *http.Request) {
	table, ok := tableOf(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	row, err := store.UpdateRow(table, id, patch)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, err.Error())
		return
	}
	logger.Info("row_updated", "table", table, "id", id)
	_ = utils.JSONWrite(w, http.StatusOK, row)
}

func deleteRow(w http.ResponseWriter, r *http.Request) {
	table, ok := tableOf(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if err := store.DeleteRow(table, id); err != nil {
		utils.JSONError(w, http.StatusNotFound, err.Error())
		return
	}
	logger.Info("row_deleted", "table", table, "id", id)
	w.WriteHeader(http.StatusNoContent)
}
