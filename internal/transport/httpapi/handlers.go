package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"pyrefactor/internal/core/errors"
	"pyrefactor/internal/core/ports"
	"pyrefactor/internal/engine/refactor"
	"pyrefactor/internal/engine/syntax"
)

// refactorRequest accepts both {code, options: [...]} and
// {source_text, options: {...}}.
type refactorRequest struct {
	Code       *string         `json:"code"`
	SourceText *string         `json:"source_text"`
	Options    json.RawMessage `json:"options"`
}

type apiError struct {
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorBody struct {
	Error apiError `json:"error"`
}

type refactorResponse struct {
	RequestID string `json:"request_id"`
	refactor.Result
}

// decodeOptions reads a name list or a name→bool map. Absent or null
// options return nil so the configured defaults apply.
func decodeOptions(raw json.RawMessage) (*refactor.Options, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var (
		opts refactor.Options
		err  error
	)
	switch raw[0] {
	case '[':
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "options must be a list of names")
		}
		opts, err = refactor.ParseOptions(names)
	case '{':
		var values map[string]bool
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "options must map names to booleans")
		}
		opts, err = refactor.OptionsFromMap(values)
	default:
		return nil, errors.New(errors.CodeValidationError, "options must be a list or an object")
	}
	if err != nil {
		return nil, err
	}
	return &opts, nil
}

func (s *Server) handleRefactor(w http.ResponseWriter, r *http.Request) {
	var req refactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(err, errors.CodeValidationError, "decode request"))
		return
	}
	var source string
	switch {
	case req.Code != nil:
		source = *req.Code
	case req.SourceText != nil:
		source = *req.SourceText
	default:
		s.writeError(w, r, errors.New(errors.CodeValidationError, "one of code or source_text is required"))
		return
	}
	opts, err := decodeOptions(req.Options)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.runRefactor(w, r, source, opts)
}

func (s *Server) runRefactor(w http.ResponseWriter, r *http.Request, source string, opts *refactor.Options) {
	resp, err := s.deps.Refactor.Refactor(r.Context(), ports.RefactorRequest{
		Source:    source,
		Options:   opts,
		Transport: "http",
		RequestID: requestID(r.Context()),
	})
	if err != nil {
		if pe := resp.Result.Error; pe != nil {
			s.writeStatus(w, r, http.StatusBadRequest, apiError{
				Line:    pe.Line,
				Column:  pe.Column,
				Message: pe.Message,
				Code:    string(errors.CodeParse),
			})
			return
		}
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, refactorResponse{RequestID: resp.RequestID, Result: resp.Result})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := ports.HealthStatus{Status: "up", Components: map[string]string{}}
	if s.deps.Health != nil {
		status = s.deps.Health.Check(r.Context())
	}
	code := http.StatusOK
	if status.Status != "up" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, status)
}

func (s *Server) catalog(ctx context.Context) (ports.SampleCatalog, error) {
	if s.deps.Samples == nil {
		return nil, errors.New(errors.CodeNotSupported, "sample catalog is disabled")
	}
	return s.deps.Samples(ctx)
}

func (s *Server) handleListSamples(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.catalog(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := catalog.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"samples": list})
}

func (s *Server) handleGetSample(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.catalog(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sample, err := catalog.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sample)
}

func (s *Server) handleRefactorSample(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.catalog(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sample, err := catalog.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body struct {
		Options json.RawMessage `json:"options"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, r, errors.Wrap(err, errors.CodeValidationError, "decode request"))
			return
		}
	}
	opts, err := decodeOptions(body.Options)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if opts == nil {
		parsed, err := refactor.ParseOptions(sample.Options)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		opts = &parsed
	}
	s.runRefactor(w, r, sample.Source, opts)
}

func (s *Server) handleContract(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.contract.doc)
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.CodeParse, errors.CodeValidationError:
		return http.StatusBadRequest
	case errors.CodeUnsupportedConstruct:
		return http.StatusUnprocessableEntity
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeRateLimited:
		return http.StatusTooManyRequests
	case errors.CodeNotSupported:
		return http.StatusNotImplemented
	case errors.CodeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.CodeOf(err)
	body := apiError{Message: err.Error(), Code: string(code)}
	if de, ok := err.(*errors.DomainError); ok && de.Message != "" && code != errors.CodeInternal {
		body.Message = de.Message
		if de.Err != nil {
			body.Message += ": " + de.Err.Error()
		}
	}
	if pe, ok := err.(*syntax.ParseError); ok {
		body = apiError{Line: pe.Line, Column: pe.Column, Message: pe.Message, Code: string(errors.CodeParse)}
	}
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", requestID(r.Context()), "error", err)
	}
	s.writeStatus(w, r, status, body)
}

func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request, status int, body apiError) {
	s.writeJSON(w, status, errorBody{Error: body})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}

func slogLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
