package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/google/uuid"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
	"github.com/RyanBlaney/activity-spectra/pkg/model"
)

// Error kinds used only at the HTTP boundary
const (
	kindInvalidRequest  = "InvalidRequest"
	kindRequestTooLarge = "RequestTooLarge"
	kindInternal        = "InternalError"
)

// PredictRequest is the /predict body
type PredictRequest struct {
	Data []float64 `json:"data"`
}

// PredictResponse is the /predict success body
type PredictResponse struct {
	RequestID string `json:"request_id"`
	*model.Prediction
	DisplayClass string `json:"display_class"`
}

// ErrorDetail describes a failed request. Expected and Received are set for
// length errors only, and are always present for them even when zero.
type ErrorDetail struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Expected *int   `json:"expected,omitempty"`
	Received *int   `json:"received,omitempty"`
}

// ErrorResponse wraps ErrorDetail
type ErrorResponse struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"message":        "Activity recognition service is running",
		"input_mode":     s.config.InputMode,
		"expected_len":   s.ExpectedLength(),
		"feature_length": s.pipeline.Config().FeatureLength(),
		"classes":        s.predictor.Labels(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	ctx := common.WithLogFields(r.Context(), logging.Fields{"request_id": requestID})
	log := s.logger.WithContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, log, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:     ErrorDetail{Kind: kindRequestTooLarge, Message: "request body too large"},
				RequestID: requestID,
			})
			return
		}
		writeJSON(w, log, http.StatusBadRequest, ErrorResponse{
			Error:     ErrorDetail{Kind: kindInvalidRequest, Message: "request body must be a JSON object with a numeric data array"},
			RequestID: requestID,
		})
		return
	}

	features := req.Data
	if s.config.InputMode == InputFeatures {
		if expected := s.pipeline.Config().FeatureLength(); len(features) != expected {
			s.writeError(w, log, requestID, common.InvalidInputLength(expected, len(features)))
			return
		}
	} else {
		var err error
		features, err = s.pipeline.RunSingle(req.Data)
		if err != nil {
			s.writeError(w, log, requestID, err)
			return
		}
	}

	prediction, err := s.predictor.Predict(ctx, features)
	if err != nil {
		s.writeError(w, log, requestID, err)
		return
	}

	s.metrics.ObservePrediction(prediction.Class)
	log.Debug("Prediction served", logging.Fields{
		"predicted_index": prediction.Index,
		"predicted_class": prediction.Class,
	})

	writeJSON(w, log, http.StatusOK, PredictResponse{
		RequestID:    requestID,
		Prediction:   prediction,
		DisplayClass: model.DisplayName(prediction.Class),
	})
}

// writeError maps client error kinds to 400 and everything else to a generic 500
func (s *Server) writeError(w http.ResponseWriter, log logging.Logger, requestID string, err error) {
	var pe *common.PipelineError
	if common.IsClientError(err) && errors.As(err, &pe) {
		detail := ErrorDetail{Kind: string(pe.Kind), Message: pe.Message}
		if pe.Kind == common.KindInvalidInputLength || pe.Kind == common.KindInsufficientData {
			expected, received := pe.Expected, pe.Received
			detail.Expected = &expected
			detail.Received = &received
		}

		log.Debug("Rejected prediction request", logging.Fields{
			"kind":    pe.Kind,
			"message": pe.Message,
		})
		writeJSON(w, log, http.StatusBadRequest, ErrorResponse{Error: detail, RequestID: requestID})
		return
	}

	log.Error(err, "Prediction failed")

	detail := ErrorDetail{Kind: kindInternal, Message: "internal server error"}
	if errors.Is(err, common.ErrUpstreamModel) {
		detail = ErrorDetail{Kind: string(common.KindUpstreamModelError), Message: "classifier failed"}
	}
	writeJSON(w, log, http.StatusInternalServerError, ErrorResponse{Error: detail, RequestID: requestID})
}

// writeJSON writes a JSON response with the given status code. The status is
// already sent when encoding fails, so the failure is only logged.
func writeJSON(w http.ResponseWriter, log logging.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error(err, "Failed to encode response", logging.Fields{"status": status})
	}
}
