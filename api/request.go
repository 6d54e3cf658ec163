package api

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"strings"

	"text2phenotype.com/ner/predict"
	"text2phenotype.com/ner/types"
)

type Request struct {
	Current *predict.Current
}

type errorResponse struct {
	Error string `json:"error"`
}

// Predict labels the sentence sent as the raw request body.
func (req *Request) Predict(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	logger := requestLogger(r)

	if r.Method != http.MethodPost {
		logger.Warn().Msg("Only 'POST' method is allowed here")
		writeError(w, http.StatusMethodNotAllowed, "only POST is allowed")
		return
	}

	msg, err := ioutil.ReadAll(r.Body)
	if err != nil {
		logger.Err(err).Msg("Could not read request body")
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	sentence := string(msg)
	if strings.TrimSpace(sentence) == "" {
		logger.Warn().Msg("Empty sentence")
		writeError(w, http.StatusBadRequest, "the request body must contain a sentence")
		return
	}

	engine := req.Current.Engine()
	if engine == nil {
		logger.Error().Msg("No model loaded")
		writeError(w, http.StatusServiceUnavailable, types.ErrModelNotFound.Error())
		return
	}

	logger.Debug().Int("length", len(sentence)).Msg("Predicting")
	result, err := engine.Predict(sentence)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrAlignment) {
			status = http.StatusUnprocessableEntity
		}
		logger.Err(err).Msg("Prediction failed")
		writeError(w, status, err.Error())
		return
	}

	if err = json.NewEncoder(w).Encode(result); err != nil {
		logger.Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}
