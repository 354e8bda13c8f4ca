package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BioHazard786/SyncPlayer/internal/chat"
	"github.com/BioHazard786/SyncPlayer/internal/mailbox"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type offerBody struct {
	Offer json.RawMessage `json:"offer"`
}

type answerBody struct {
	Answer json.RawMessage `json:"answer"`
}

type candidateBody struct {
	Candidate json.RawMessage `json:"candidate"`
}

type chatSendBody struct {
	RoomID  string `json:"roomId"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type chatListResponse struct {
	Messages []chat.Message `json:"messages"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRawField writes {"<field>":<raw>} with raw copied verbatim, so stored
// payloads come back byte for byte.
func writeRawField(w http.ResponseWriter, field string, raw json.RawMessage) {
	var buf bytes.Buffer
	buf.WriteString(`{"` + field + `":`)
	buf.Write(raw)
	buf.WriteString("}\n")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeRawList(w http.ResponseWriter, field string, items []json.RawMessage) {
	var buf bytes.Buffer
	buf.WriteString(`{"` + field + `":[`)
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(item)
	}
	buf.WriteString("]}\n")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}

// decodeBody reads a JSON body of at most maxBodySize bytes into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

// present reports whether a JSON field carried a value. Falsy values
// (null, false, "", 0) count as missing, as browser clients expect.
func present(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch string(v) {
	case "", "null", "false", `""`:
		return false
	}
	if c := v[0]; c == '-' || (c >= '0' && c <= '9') {
		f, err := strconv.ParseFloat(string(v), 64)
		return err != nil || f != 0
	}
	return true
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, mailbox.ErrInvalidRoomID):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
	case errors.Is(err, mailbox.ErrInvalidPayload):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payload"})
	default:
		s.log.Error("handler."+op, slog.Any("err", err), slog.String("req_id", RequestIDFrom(r.Context())))
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "mailbox unavailable"})
	}
}

func (s *Server) bodyError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "body too large"})
		return
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
}

// POST /room/{roomID}/offer
func (s *Server) postOffer(w http.ResponseWriter, r *http.Request) {
	var body offerBody
	if err := decodeBody(w, r, &body); err != nil {
		s.bodyError(w, err)
		return
	}
	if !present(body.Offer) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "offer is required"})
		return
	}
	if err := s.store.SetOffer(r.Context(), chi.URLParam(r, "roomID"), body.Offer); err != nil {
		s.storeError(w, r, "SetOffer", err)
		return
	}
	writeOK(w)
}

// GET /room/{roomID}/offer
func (s *Server) getOffer(w http.ResponseWriter, r *http.Request) {
	room, err := s.store.Get(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		s.storeError(w, r, "GetOffer", err)
		return
	}
	if room.Offer == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "offer not found"})
		return
	}
	writeRawField(w, "offer", room.Offer)
}

// POST /room/{roomID}/answer
func (s *Server) postAnswer(w http.ResponseWriter, r *http.Request) {
	var body answerBody
	if err := decodeBody(w, r, &body); err != nil {
		s.bodyError(w, err)
		return
	}
	if !present(body.Answer) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "answer is required"})
		return
	}
	if err := s.store.SetAnswer(r.Context(), chi.URLParam(r, "roomID"), body.Answer); err != nil {
		s.storeError(w, r, "SetAnswer", err)
		return
	}
	writeOK(w)
}

// GET /room/{roomID}/answer
func (s *Server) getAnswer(w http.ResponseWriter, r *http.Request) {
	room, err := s.store.Get(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		s.storeError(w, r, "GetAnswer", err)
		return
	}
	if room.Answer == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "answer not found"})
		return
	}
	writeRawField(w, "answer", room.Answer)
}

// POST /room/{roomID}/candidate. A body without a candidate is accepted
// and ignored.
func (s *Server) postCandidate(w http.ResponseWriter, r *http.Request) {
	var body candidateBody
	if err := decodeBody(w, r, &body); err != nil {
		s.bodyError(w, err)
		return
	}
	if !present(body.Candidate) {
		writeOK(w)
		return
	}
	if err := s.store.AppendCandidate(r.Context(), chi.URLParam(r, "roomID"), body.Candidate); err != nil {
		s.storeError(w, r, "AppendCandidate", err)
		return
	}
	writeOK(w)
}

// GET /room/{roomID}/candidates
func (s *Server) getCandidates(w http.ResponseWriter, r *http.Request) {
	room, err := s.store.Get(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		s.storeError(w, r, "GetCandidates", err)
		return
	}
	writeRawList(w, "candidates", room.Candidates)
}

// DELETE /room/{roomID}
func (s *Server) clearRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if err := s.store.Clear(r.Context(), roomID); err != nil {
		s.storeError(w, r, "Clear", err)
		return
	}
	s.history.Clear(roomID)
	writeOK(w)
}

// POST /api/chat/send
func (s *Server) sendChat(w http.ResponseWriter, r *http.Request) {
	var body chatSendBody
	if err := decodeBody(w, r, &body); err != nil {
		s.bodyError(w, err)
		return
	}
	if strings.TrimSpace(body.RoomID) == "" || body.Sender == "" || body.Message == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing required fields"})
		return
	}
	s.history.Append(body.RoomID, chat.Message{Sender: body.Sender, Message: body.Message})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /api/chat/get?roomId=
func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "roomId is required"})
		return
	}
	writeJSON(w, http.StatusOK, chatListResponse{Messages: s.history.List(roomID)})
}
