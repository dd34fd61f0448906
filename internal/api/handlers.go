package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"drawsync/internal/hub"
	"drawsync/internal/middleware"
	"drawsync/internal/models"

	"github.com/gorilla/mux"
)

// Handler serves the REST collaborator endpoints: room directory CRUD
// and archived chat history. The live synchronization path never goes
// through here; it belongs to the gateway.
type Handler struct {
	roomRepo RoomRepository
	chatRepo ChatRepository
	gateway  *hub.Gateway
}

func NewHandler(roomRepo RoomRepository, chatRepo ChatRepository, gateway *hub.Gateway) *Handler {
	return &Handler{
		roomRepo: roomRepo,
		chatRepo: chatRepo,
		gateway:  gateway,
	}
}

// Room handlers

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var create models.RoomCreate
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if create.Name == "" {
		http.Error(w, "room name is required", http.StatusBadRequest)
		return
	}

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	created, err := h.roomRepo.Create(r.Context(), &create, identity.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)

	rooms, err := h.roomRepo.List(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rooms":  rooms,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	room, err := h.roomRepo.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

// GetRoomMessages serves the archived chat history for a room,
// oldest-first, for pre-populating a client before it joins live.
func (h *Handler) GetRoomMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	limit, offset := pagination(r, 100)

	records, err := h.chatRepo.ListByRoom(r.Context(), id, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages": records,
		"limit":    limit,
		"offset":   offset,
	})
}

// HandleWebSocket hands the connection to the gateway
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.gateway.HandleConnection(w, r)
}

func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit

	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}
	if parsed, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && parsed > 0 {
		offset = parsed
	}
	return limit, offset
}
