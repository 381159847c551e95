package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hackdash/apiserver/internal/services"
	"github.com/hackdash/apiserver/internal/storage"
	"github.com/hackdash/apiserver/internal/store"
	"github.com/hackdash/apiserver/types"
	"go.uber.org/zap"
)

const (
	maxDeckMemory = 32 << 20
	maxDeckBytes  = 64 << 20
	formFieldDeck = "deck"
)

// HackathonHandler provides hackathon CRUD and deck upload endpoints.
type HackathonHandler struct {
	hackathonService *services.HackathonService
	decks            *storage.DeckStore
	logger           *zap.Logger
}

func NewHackathonHandler(hackathonService *services.HackathonService, decks *storage.DeckStore, logger *zap.Logger) *HackathonHandler {
	return &HackathonHandler{
		hackathonService: hackathonService,
		decks:            decks,
		logger:           logger,
	}
}

// HackathonRouter registers hackathon routes. Reads need authentication;
// writes need at least the admin role.
func HackathonRouter(r chi.Router, handler *HackathonHandler, gate *AccessGate) {
	r.Use(gate.RequireAuth)

	r.Get("/", handler.ListHackathons)
	r.With(gate.RequireRole(types.RoleAdmin)).Post("/", handler.CreateHackathon)
	r.Route("/{hackathonID}", func(r chi.Router) {
		r.Get("/", handler.GetHackathon)
		r.With(gate.RequireRole(types.RoleAdmin)).Put("/", handler.UpdateHackathon)
		r.Get("/deck", handler.DownloadDeck)
		r.Post("/deck", handler.UploadDeck)
	})
}

func (h *HackathonHandler) ListHackathons(w http.ResponseWriter, r *http.Request) {
	hackathons, err := h.hackathonService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list hackathons")
		return
	}
	if hackathons == nil {
		hackathons = []types.Hackathon{}
	}
	writeJSON(w, http.StatusOK, HackathonListResponse{Items: hackathons})
}

func (h *HackathonHandler) GetHackathon(w http.ResponseWriter, r *http.Request) {
	hackathon, ok := h.loadHackathon(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, hackathon)
}

func (h *HackathonHandler) CreateHackathon(w http.ResponseWriter, r *http.Request) {
	var req HackathonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	hackathon, err := h.hackathonService.Create(r.Context(), types.Hackathon{
		Title:        req.Title,
		Status:       req.Status,
		RoundDates:   req.RoundDates,
		Participants: req.Participants,
		LeaderEmail:  services.NormalizeEmail(req.LeaderEmail),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, hackathon)
}

func (h *HackathonHandler) UpdateHackathon(w http.ResponseWriter, r *http.Request) {
	hackathon, ok := h.loadHackathon(w, r)
	if !ok {
		return
	}

	var req HackathonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Title != "" {
		hackathon.Title = req.Title
	}
	if req.Status != "" {
		hackathon.Status = req.Status
	}
	if req.RoundDates != nil {
		hackathon.RoundDates = req.RoundDates
	}
	if req.Participants != nil {
		hackathon.Participants = req.Participants
	}
	if req.LeaderEmail != "" {
		hackathon.LeaderEmail = services.NormalizeEmail(req.LeaderEmail)
	}

	updated, err := h.hackathonService.Update(r.Context(), hackathon)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// UploadDeck stores the hackathon's PPT deck in object storage and records
// the object key on the record.
func (h *HackathonHandler) UploadDeck(w http.ResponseWriter, r *http.Request) {
	if h.decks == nil {
		writeError(w, http.StatusServiceUnavailable, "deck storage is not configured")
		return
	}

	hackathon, ok := h.loadHackathon(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxDeckMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile(formFieldDeck)
	if err != nil {
		writeError(w, http.StatusBadRequest, "deck file is required")
		return
	}
	defer file.Close()

	if header.Size > maxDeckBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "deck file too large")
		return
	}

	key := storage.DeckKey(hackathon.ID, filepath.Base(header.Filename))
	contentType := header.Header.Get("Content-Type")
	if err := h.decks.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		h.logger.Error("failed to store deck",
			zap.Int("hackathon_id", hackathon.ID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store deck")
		return
	}

	if err := h.hackathonService.SetDeckObjectKey(r.Context(), hackathon.ID, key); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record deck")
		return
	}
	writeJSON(w, http.StatusCreated, DeckResponse{ObjectKey: key})
}

func (h *HackathonHandler) DownloadDeck(w http.ResponseWriter, r *http.Request) {
	if h.decks == nil {
		writeError(w, http.StatusServiceUnavailable, "deck storage is not configured")
		return
	}

	hackathon, ok := h.loadHackathon(w, r)
	if !ok {
		return
	}
	if hackathon.DeckObjectKey == "" {
		writeError(w, http.StatusNotFound, "no deck uploaded")
		return
	}

	reader, err := h.decks.Get(r.Context(), hackathon.DeckObjectKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch deck")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func (h *HackathonHandler) loadHackathon(w http.ResponseWriter, r *http.Request) (types.Hackathon, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "hackathonID"))
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid hackathon id")
		return types.Hackathon{}, false
	}

	hackathon, err := h.hackathonService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "hackathon not found")
			return types.Hackathon{}, false
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch hackathon")
		return types.Hackathon{}, false
	}
	return hackathon, true
}

type HackathonRequest struct {
	Title        string                `json:"title"`
	Status       types.HackathonStatus `json:"status"`
	RoundDates   types.RoundDates      `json:"round_dates"`
	Participants []string              `json:"participants"`
	LeaderEmail  string                `json:"leader_email"`
}

type HackathonListResponse struct {
	Items []types.Hackathon `json:"items"`
}

type DeckResponse struct {
	ObjectKey string `json:"object_key"`
}
