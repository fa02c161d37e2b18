package api

import (
	"encoding/json"
	"net/http"

	"codeberg.org/mutker/ecodanctl/internal/ecodan"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/telemetry"
)

const maxBodyBytes = 1 << 10

type response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Status: "error", Message: msg})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	report, err := s.reports.Latest()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "No completed poll cycle yet.")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type targetRequest struct {
	Value *json.RawMessage `json:"value"`
}

// decodeValue extracts a numeric "value" from a body of at most
// maxBodyBytes.
func decodeValue(w http.ResponseWriter, r *http.Request) (float64, error) {
	errFactory := errors.New()

	var req targetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return 0, errFactory.WithMessage(ErrBodyTooLarge, "Request body too large.")
		}
		return 0, errFactory.WithMessage(ErrInvalidBody, "Request body must be a JSON object.")
	}
	if req.Value == nil {
		return 0, errFactory.WithMessage(ErrInvalidBody, "Missing value.")
	}

	var v float64
	if err := json.Unmarshal(*req.Value, &v); err != nil {
		return 0, errFactory.WithMessage(ErrInvalidBody, "Value must be numeric.")
	}
	return v, nil
}

func (s *Server) setTarget(t ecodan.Target) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, err := decodeValue(w, r)
		if err != nil {
			s.recorder.TargetWrite(t.String(), telemetry.WriteInvalid)
			status := http.StatusBadRequest
			if errors.HasCode(err, ErrBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			writeError(w, status, err.Error())
			return
		}

		err = s.device.SetTarget(r.Context(), t, value)
		switch {
		case err == nil:
			s.recorder.TargetWrite(t.String(), telemetry.WriteOK)
			writeJSON(w, http.StatusOK, response{Status: "ok"})
		case errors.HasCode(err, ecodan.ErrInvalidTarget):
			s.recorder.TargetWrite(t.String(), telemetry.WriteInvalid)
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.recorder.TargetWrite(t.String(), telemetry.WriteTransport)
			s.logger.Error().
				Str("target", t.String()).
				Float64("value", value).
				Err(err).
				Msg("Failed to write setpoint")
			writeError(w, http.StatusBadGateway, "Failed to write to heat pump.")
		}
	}
}
