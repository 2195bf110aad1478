package http

import (
	"errors"
	"net/http"
	"time"

	"attrition/dataset"

	"go.uber.org/zap"
)

const multipartMemory = 8 << 20

type datasetResponse struct {
	ID         string              `json:"id"`
	Filename   string              `json:"filename"`
	UploadedAt time.Time           `json:"uploaded_at"`
	Columns    []string            `json:"columns"`
	Rows       int                 `json:"rows"`
	Preview    []map[string]string `json:"preview"`
}

func newDatasetResponse(ds *dataset.Dataset) datasetResponse {
	return datasetResponse{
		ID:         ds.ID,
		Filename:   ds.Filename,
		UploadedAt: ds.UploadedAt,
		Columns:    ds.Columns,
		Rows:       ds.Len(),
		Preview:    ds.Head(0),
	}
}

func (h *handlers) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.metrics.ObserveUpload("too_large")
			respondErr(w, err)
			return
		}
		h.metrics.ObserveUpload("invalid")
		respondError(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.metrics.ObserveUpload("invalid")
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	ds, err := dataset.Parse(file, r.FormValue("encoding"))
	if err != nil {
		h.metrics.ObserveUpload("invalid")
		h.logger.Info("dataset rejected", zap.String("filename", header.Filename), zap.Error(err))
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.datasets.Add(header.Filename, ds)
	h.metrics.ObserveUpload("ok")
	h.logger.Info("dataset uploaded",
		zap.String("dataset_id", ds.ID),
		zap.String("filename", header.Filename),
		zap.Int("rows", ds.Len()),
		zap.Int("columns", len(ds.Columns)),
	)
	respondJSON(w, http.StatusCreated, newDatasetResponse(ds))
}

// lookup resolves the {id} path segment, writing a 404 when it is unknown.
func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, bool) {
	ds, err := h.datasets.Get(r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return nil, false
	}
	return ds, true
}

func (h *handlers) handleDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newDatasetResponse(ds))
}

func (h *handlers) handlePreview(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.lookup(w, r)
	if !ok {
		return
	}
	rows, err := intParam(r, "rows", 5)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"columns": ds.Columns,
		"rows":    ds.Head(rows),
	})
}

func (h *handlers) handleSummary(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"columns": ds.Describe()})
}

func (h *handlers) handleQuality(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, dataset.NewQualityChecker(h.form).Check(ds))
}

func (h *handlers) handleAttritionChart(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.lookup(w, r)
	if !ok {
		return
	}
	counts, err := ds.AttritionDistribution()
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (h *handlers) handleIncomeChart(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.lookup(w, r)
	if !ok {
		return
	}
	groups, err := ds.IncomeByAttrition()
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *handlers) handleJobRoleChart(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.lookup(w, r)
	if !ok {
		return
	}
	roles, err := ds.JobRoleByAttrition()
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"roles": roles})
}
