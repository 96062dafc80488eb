package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/playgroundai/playground-api/internal/auth"
	"github.com/playgroundai/playground-api/internal/core"
	"github.com/playgroundai/playground-api/internal/store"
)

type APIHandler struct {
	chatService *core.ChatService
}

func NewAPIHandler(cs *core.ChatService) *APIHandler {
	return &APIHandler{chatService: cs}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// UsernameHandler registers a new username or resolves an existing token,
// depending on which query parameter is present.
func (h *APIHandler) UsernameHandler(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	token := r.URL.Query().Get("token")

	switch {
	case username != "":
		newToken, err := h.chatService.Register(username)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidUsername):
				writeError(w, http.StatusBadRequest, "Invalid username")
			case errors.Is(err, auth.ErrUsernameTaken):
				writeError(w, http.StatusBadRequest, "Username already exists")
			default:
				log.Printf("Error registering username %q: %v", username, err)
				writeError(w, http.StatusInternalServerError, "An error occurred")
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": newToken, "username": username})

	case token != "":
		resolved, err := h.chatService.ResolveUsername(token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			log.Printf("Error resolving token: %v", err)
			writeError(w, http.StatusInternalServerError, "An error occurred")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"username": resolved})

	default:
		writeError(w, http.StatusBadRequest, "Either 'username' or 'token' is required")
	}
}

// ChatHandler runs one conversation turn. History tracking defaults to on and
// requires a non-negative integer section.
func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	message := q.Get("message")
	token := q.Get("token")
	useHistory := q.Get("history") != "false"

	if message == "" || token == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	section := 0
	if useHistory {
		var ok bool
		if section, ok = parseSection(q.Get("section")); !ok {
			writeError(w, http.StatusBadRequest, "'section' is required with 'history'")
			return
		}
	}

	reply, err := h.chatService.Converse(r.Context(), token, section, message, r.UserAgent(), useHistory)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		log.Printf("Error in chat processing: %v", err)
		writeError(w, http.StatusInternalServerError, "An error occurred")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

// HistoryHandler returns or deletes the stored transcript for a section.
func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("token")
	section, ok := parseSection(q.Get("section"))
	if token == "" || !ok {
		writeError(w, http.StatusBadRequest, "Both 'token' and 'section' are required")
		return
	}

	if q.Get("delete") == "true" {
		deleted, err := h.chatService.DeleteHistory(token, section)
		if err != nil {
			h.writeServiceError(w, err, "deleting history")
			return
		}
		if !deleted {
			writeError(w, http.StatusNotFound, "No history found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("History %d deleted successfully", section),
		})
		return
	}

	transcript, _, err := h.chatService.History(token, section)
	if err != nil {
		h.writeServiceError(w, err, "loading history")
		return
	}
	if transcript.History == nil {
		// Absent sections render as an empty history, not null.
		transcript.History = []store.Turn{}
	}
	writeJSON(w, http.StatusOK, transcript)
}

// ConversationHandler returns the transcript rendered as alternating
// speaker-prefixed lines.
func (h *APIHandler) ConversationHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("token")
	section, ok := parseSection(q.Get("section"))
	if token == "" || !ok {
		writeError(w, http.StatusBadRequest, "Both 'token' and 'section' are required")
		return
	}

	conversation, title, found, err := h.chatService.RenderConversation(token, section)
	if err != nil {
		h.writeServiceError(w, err, "rendering conversation")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "No history found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversation": conversation, "title": title})
}

func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, auth.ErrInvalidToken) {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	log.Printf("Error %s: %v", action, err)
	writeError(w, http.StatusInternalServerError, "An error occurred")
}

func parseSection(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	section, err := strconv.Atoi(s)
	if err != nil || section < 0 {
		return 0, false
	}
	return section, true
}
