package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"attrition/dataset"
	"attrition/db"
	"attrition/ml"
	"attrition/monitoring"

	"go.uber.org/zap"
)

type handlers struct {
	adapter        *ml.Adapter
	datasets       *dataset.Store
	history        HistoryStore
	metrics        *monitoring.Metrics
	logger         *zap.Logger
	form           ml.Form
	requireDataset bool
}

func (h *handlers) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/model", h.handleModel)
	mux.HandleFunc("GET /api/form", h.handleForm)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/predictions", h.handlePredictions)

	mux.HandleFunc("POST /api/datasets", h.handleUpload)
	mux.HandleFunc("GET /api/datasets/{id}", h.handleDataset)
	mux.HandleFunc("GET /api/datasets/{id}/preview", h.handlePreview)
	mux.HandleFunc("GET /api/datasets/{id}/summary", h.handleSummary)
	mux.HandleFunc("GET /api/datasets/{id}/quality", h.handleQuality)
	mux.HandleFunc("GET /api/datasets/{id}/charts/attrition", h.handleAttritionChart)
	mux.HandleFunc("GET /api/datasets/{id}/charts/income", h.handleIncomeChart)
	mux.HandleFunc("GET /api/datasets/{id}/charts/jobrole", h.handleJobRoleChart)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type modelResponse struct {
	ModelType string           `json:"model_type"`
	Features  ml.FeatureSchema `json:"features"`
}

func (h *handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, modelResponse{
		ModelType: h.adapter.ModelType(),
		Features:  h.adapter.Schema(),
	})
}

func (h *handlers) handleForm(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.form)
}

type predictResponse struct {
	ml.Prediction
	PredictionID string `json:"prediction_id,omitempty"`
	DatasetID    string `json:"dataset_id,omitempty"`
}

func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	datasetID := r.URL.Query().Get("dataset_id")
	if h.requireDataset {
		if _, err := h.datasets.Get(datasetID); err != nil {
			respondError(w, http.StatusPreconditionFailed, msgDatasetRequired)
			return
		}
	} else if datasetID != "" {
		if _, err := h.datasets.Get(datasetID); err != nil {
			respondErr(w, err)
			return
		}
	}

	raw, err := decodeRawInput(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondErr(w, err)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.form.Validate(raw); err != nil {
		respondErr(w, err)
		return
	}
	raw = h.form.Fill(raw)

	prediction, err := h.adapter.Predict(r.Context(), raw)
	if err != nil {
		h.logger.Error("predict failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		respondErr(w, err)
		return
	}

	resp := predictResponse{Prediction: prediction, DatasetID: datasetID}
	if h.history != nil {
		record, err := h.history.SavePrediction(r.Context(), db.PredictionRecord{
			DatasetID:   datasetID,
			ModelType:   h.adapter.ModelType(),
			Label:       prediction.Label,
			Probability: prediction.Probability,
			Message:     prediction.Message,
			Input:       raw,
			Report:      prediction.Report,
		})
		if err != nil {
			h.logger.Warn("prediction not saved to history", zap.Error(err))
		} else {
			resp.PredictionID = record.ID
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// decodeRawInput reads a JSON object of scalar fields. Numbers keep their literal form
// until encoding.
func decodeRawInput(body io.Reader) (ml.RawInput, error) {
	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return ml.RawInput{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw ml.RawInput
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if raw == nil {
		raw = ml.RawInput{}
	}
	return raw, nil
}

func (h *handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusNotFound, "prediction history is disabled")
		return
	}
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := h.history.ListPredictions(r.Context(), limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"predictions": records})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
