package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chat-service-backend/internal/api/middleware"
	"chat-service-backend/internal/events"
	"chat-service-backend/internal/identity"
	"chat-service-backend/internal/model"
	chatservice "chat-service-backend/internal/service/chat"
)

type ChatEndpoints interface {
	Chats(http.ResponseWriter, *http.Request) error
	ChatByID(http.ResponseWriter, *http.Request) error
}

type ChatPaths struct {
	ChatsPath  string
	ChatPrefix string
}

type chatEndpoints struct {
	service *chatservice.Service
	paths   ChatPaths
}

func NewChatEndpoints(service *chatservice.Service, prefix string) ChatEndpoints {
	base := strings.TrimRight(prefix, "/")
	return &chatEndpoints{
		service: service,
		paths: ChatPaths{
			ChatsPath:  base + "/chats",
			ChatPrefix: base + "/chats/",
		},
	}
}

type chatResponse struct {
	Chat events.CleanChat `json:"chat"`
}

type chatListResponse struct {
	Chats []events.CleanChat `json:"chats"`
}

type participantListResponse struct {
	Participants []events.CleanParticipant `json:"participants"`
}

type messageResponse struct {
	Message events.CleanMessage `json:"message"`
}

type messagePageResponse struct {
	Messages []events.CleanMessage `json:"messages"`
	HasMore  bool                  `json:"hasMore"`
	// NextFromDate feeds the next request's fromDate parameter.
	NextFromDate string `json:"nextFromDate,omitempty"`
}

type postMessageRequest struct {
	Text string `json:"text"`
}

type patchChatRequest struct {
	Status string `json:"status"`
}

type composeRequest struct {
	Text string `json:"text"`
}

func (h *chatEndpoints) Chats(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleCreateChat,
		http.MethodGet:  h.handleListChats,
	})
}

// ChatByID serves everything under /chats/{uuid}: the chat itself, its
// participant roster and its message history.
func (h *chatEndpoints) ChatByID(w http.ResponseWriter, r *http.Request) error {
	rest := strings.TrimPrefix(r.URL.Path, h.paths.ChatPrefix)
	segments := strings.Split(strings.TrimRight(rest, "/"), "/")

	chatID := segments[0]
	if chatID == "" {
		return notFoundError(fmt.Errorf("empty chat id"))
	}

	switch {
	case len(segments) == 1:
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleGetChat(w, r, chatID)
			},
			http.MethodPatch: func(w http.ResponseWriter, r *http.Request) error {
				return h.handlePatchChat(w, r, chatID)
			},
		})
	case len(segments) == 2 && segments[1] == "participants":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleListParticipants(w, r, chatID)
			},
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleJoinChat(w, r, chatID)
			},
		})
	case len(segments) == 2 && segments[1] == "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleListMessages(w, r, chatID)
			},
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
				return h.handlePostMessage(w, r, chatID)
			},
		})
	case len(segments) == 3 && segments[1] == "messages" && segments[2] == "compose":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleCompose(w, r, chatID)
			},
		})
	}
	return notFoundError(fmt.Errorf("unknown chat path %q", r.URL.Path))
}

func (h *chatEndpoints) handleCreateChat(w http.ResponseWriter, r *http.Request) error {
	actor, err := requireActor(r)
	if err != nil {
		return err
	}

	result, err := h.service.CreateChat(r.Context(), actor)
	if err != nil {
		return translateServiceError(err)
	}
	return WriteJSON(w, http.StatusCreated, chatResponse{
		Chat: events.CleanChatView(result.Chat, result.Participants),
	})
}

func (h *chatEndpoints) handleListChats(w http.ResponseWriter, r *http.Request) error {
	actor, err := requireActor(r)
	if err != nil {
		return err
	}

	summaries, err := h.service.ListChats(r.Context(), actor)
	if err != nil {
		return translateServiceError(err)
	}

	response := chatListResponse{Chats: make([]events.CleanChat, 0, len(summaries))}
	for _, summary := range summaries {
		chat := events.CleanChatView(summary.Chat, summary.Participants)
		if summary.LatestMessage != nil {
			latest := events.CleanMessageView(*summary.LatestMessage, summary.LatestAuthor, summary.Chat.ChatID)
			chat.LatestMessage = &latest
		}
		response.Chats = append(response.Chats, chat)
	}
	return WriteJSON(w, http.StatusOK, response)
}

func (h *chatEndpoints) handleGetChat(w http.ResponseWriter, r *http.Request, chatID string) error {
	actor, err := requireActor(r)
	if err != nil {
		return err
	}

	result, err := h.service.GetChat(r.Context(), actor, chatID)
	if err != nil {
		return translateServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, chatResponse{
		Chat: events.CleanChatView(result.Chat, result.Participants),
	})
}

func (h *chatEndpoints) handlePatchChat(w http.ResponseWriter, r *http.Request, chatID string) error {
	actor, err := requireActor(r)
	if err != nil {
		return err
	}

	var body patchChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return badRequestError("invalid request body", err)
	}
	if body.Status != string(model.ChatStatusClosed) {
		return badRequestError("only status \"closed\" can be requested", nil)
	}

	result, err := h.service.CloseChat(r.Context(), actor, chatID)
	if err != nil {
		return translateServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, chatResponse{
		Chat: events.CleanChatView(result.Chat, result.Participants),
	})
}

func (h *chatEndpoints) handleJoinChat(w http.ResponseWriter, r *http.Request, chatID string) error {
	actor, err := requireActor(r)
	if err != nil {
		return err
	}

	result, err := h.service.JoinChat(r.Context(), actor, chatID)
	if err != nil {
		return translateServiceError(err)
	}
	return WriteJSON(w, http.StatusOK, chatResponse{
		Chat: events.CleanChatView(result.Chat, result.Participants),
	})
}

func (h *chatEndpoints) handleListParticipants(w http.ResponseWriter, r *http.Request, chatID string) error {
	actor, err := requireActor(r)
	if err != nil {
		return err
	}

	result, err := h.service.GetChat(r.Context(), actor, chatID)
	if err != nil {
		return translateServiceError(err)
	}

	response := participantListResponse{
		Participants: make([]events.CleanParticipant, 0, len(result.Participants)),
	}
	for _, participant := range result.Participants {
		response.Participants = append(response.Participants, events.CleanParticipantView(participant))
	}
	return WriteJSON(w, http.StatusOK, response)
}

func (h *chatEndpoints) handlePostMessage(w http.ResponseWriter, r *http.Request, chatID string) error {
	actor, err := requireActor(r)
	if err != nil {
		return err
	}

	var body postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return badRequestError("invalid request body", err)
	}

	result, err := h.service.PostMessage(r.Context(), actor, chatID, body.Text)
	if err != nil {
		return translateServiceError(err)
	}
	return WriteJSON(w, http.StatusCreated, messageResponse{
		Message: events.CleanMessageView(result.Message, result.Author, result.Chat.ChatID),
	})
}

func (h *chatEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request, chatID string) error {
	actor, err := requireActor(r)
	if err != nil {
		return err
	}

	params := chatservice.ListMessagesParams{}
	if raw := r.URL.Query().Get("fromDate"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return badRequestError("invalid fromDate cursor", err)
		}
		params.Before = before
	}
	if raw := r.URL.Query().Get("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 0 {
			return badRequestError("invalid page size", err)
		}
		params.PageSize = size
	}

	page, err := h.service.ListMessages(r.Context(), actor, chatID, params)
	if err != nil {
		return translateServiceError(err)
	}

	response := messagePageResponse{
		Messages: page.Messages,
		HasMore:  page.HasMore,
	}
	if page.HasMore {
		response.NextFromDate = page.NextBefore.UTC().Format(time.RFC3339Nano)
	}
	return WriteJSON(w, http.StatusOK, response)
}

func (h *chatEndpoints) handleCompose(w http.ResponseWriter, r *http.Request, chatID string) error {
	actor, err := requireActor(r)
	if err != nil {
		return err
	}

	var body composeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return badRequestError("invalid request body", err)
	}

	if err := h.service.ComposeSignal(r.Context(), actor, chatID, body.Text); err != nil {
		return translateServiceError(err)
	}
	return WriteJSON(w, http.StatusAccepted, ApiMessageResponse{Message: "ok"})
}

func requireActor(r *http.Request) (identity.Actor, error) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		return nil, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("no actor on request context"),
		}
	}
	return actor, nil
}

func badRequestError(message string, err error) *HTTPError {
	if err == nil {
		err = fmt.Errorf("%s", message)
	}
	return &HTTPError{
		StatusCode: http.StatusBadRequest,
		Message:    message,
		ErrorLog:   err,
	}
}

func notFoundError(err error) *HTTPError {
	return &HTTPError{
		StatusCode: http.StatusNotFound,
		Message:    "Not found.",
		ErrorLog:   err,
	}
}

// translateServiceError maps chat service error codes onto HTTP statuses.
// Tenant mismatches deliberately read as 404.
func translateServiceError(err error) error {
	var svcErr *chatservice.Error
	if !errors.As(err, &svcErr) {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   err,
		}
	}

	status := http.StatusInternalServerError
	switch svcErr.Code {
	case chatservice.ErrorCodeValidation:
		status = http.StatusBadRequest
	case chatservice.ErrorCodeNotFound, chatservice.ErrorCodeTenantMismatch:
		status = http.StatusNotFound
	case chatservice.ErrorCodeConflict:
		status = http.StatusConflict
	}

	message := svcErr.Message
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	return &HTTPError{
		StatusCode: status,
		Message:    message,
		ErrorLog:   err,
	}
}
