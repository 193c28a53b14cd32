package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"ticketgate/internal/domain"
	"ticketgate/internal/domain/model"
	"ticketgate/internal/infra/qr"
	"ticketgate/internal/usecase"
)

type outcomeResponse struct {
	Kind    model.OutcomeKind `json:"kind"`
	Message string            `json:"message"`
	Success bool              `json:"success"`
	Holder  string            `json:"holder,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type scanResponse struct {
	State       model.ScanState  `json:"state"`
	Active      bool             `json:"active"`
	Session     string           `json:"session,omitempty"`
	FacingMode  string           `json:"facing_mode,omitempty"`
	LastOutcome *outcomeResponse `json:"last_outcome,omitempty"`
}

type startResponse struct {
	Started bool   `json:"started"`
	Session string `json:"session,omitempty"`
}

type issueRequest struct {
	Name   string                     `json:"name"`
	Number string                     `json:"number"`
	Email  string                     `json:"email"`
	Key    string                     `json:"key"`
	Extra  map[string]json.RawMessage `json:"extra"`
}

type issueResponse struct {
	DerivedKey string `json:"derived_key"`
	Path       string `json:"path"`
	Key        string `json:"key"`
	Payload    string `json:"payload"`
}

type statusResponse struct {
	DerivedKey string             `json:"derived_key"`
	Status     model.TicketStatus `json:"status"`
}

func (s *Server) scanStartHandler(w http.ResponseWriter, r *http.Request) {
	started, err := s.scanner.Start(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, model.MsgCameraError)
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{Started: started, Session: s.scanner.Status().SessionID})
}

func (s *Server) scanCancelHandler(w http.ResponseWriter, _ *http.Request) {
	s.scanner.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) scanStatusHandler(w http.ResponseWriter, _ *http.Request) {
	st := s.scanner.Status()
	resp := scanResponse{State: st.State, Active: st.Active, Session: st.SessionID}
	if s.frames != nil {
		resp.FacingMode = s.frames.FacingMode()
	}
	if o := st.LastOutcome; o != nil {
		out := &outcomeResponse{Kind: o.Kind, Message: o.Message, Success: o.Success()}
		if o.Record != nil {
			out.Holder = o.Record.Name
		}
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
		resp.LastOutcome = out
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) frameHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}
	switch err := s.frames.SubmitImage(body); {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, domain.ErrNoActiveStream):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusUnsupportedMediaType, "frame is not a decodable JPEG or PNG")
	default:
		s.log.Error().Err(err).Msg("submit frame")
		writeError(w, http.StatusInternalServerError, "failed to accept frame")
	}
}

func (s *Server) issueHandler(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	issued, err := s.issueUC.Issue(r.Context(), usecase.IssueRequest{
		Name:   req.Name,
		Number: req.Number,
		Email:  req.Email,
		Key:    req.Key,
		Extra:  req.Extra,
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
		return
	default:
		s.log.Error().Err(err).Msg("issue ticket")
		writeError(w, http.StatusInternalServerError, "failed to issue ticket")
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "image/png") {
		png, err := qr.EncodePNG(issued.Payload, qr.DefaultSize)
		if err != nil {
			s.log.Error().Err(err).Msg("encode qr")
			writeError(w, http.StatusInternalServerError, "failed to render code")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(png)
		return
	}
	writeJSON(w, http.StatusCreated, issueResponse{
		DerivedKey: issued.Record.DerivedKey(),
		Path:       issued.Path,
		Key:        issued.Record.Key,
		Payload:    issued.Payload,
	})
}

func (s *Server) ticketStatusHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.statusUC.Status(r.Context(), q.Get("name"), q.Get("key"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, statusResponse{DerivedKey: res.DerivedKey, Status: res.Status})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("ticket status")
		writeError(w, http.StatusInternalServerError, "failed to read ticket status")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
