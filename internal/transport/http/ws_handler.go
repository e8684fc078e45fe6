package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/session"
)

var (
	errInvalidPayload  = errors.New("invalid payload")
	errUnsupportedType = errors.New("unsupported message type")
)

// WSHandler drives one respondent session per websocket connection.
type WSHandler struct {
	service  *session.Service
	upgrader websocket.Upgrader
}

func NewWSHandler(service *session.Service) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type identityPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type answerPayload struct {
	QuestionID string             `json:"questionId"`
	Value      domain.AnswerValue `json:"value"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// questionView is the question as the respondent sees it: correctness
// data never leaves the server.
type questionView struct {
	ID       string              `json:"id"`
	Text     string              `json:"text"`
	Kind     domain.QuestionKind `json:"type"`
	Required bool                `json:"required"`
	Options  []string            `json:"options,omitempty"`
	Order    int                 `json:"order"`
}

type stateView struct {
	Stage            session.Stage        `json:"stage"`
	StepIndex        int                  `json:"stepIndex"`
	TotalSteps       int                  `json:"totalSteps"`
	Question         *questionView        `json:"question,omitempty"`
	Answer           *domain.AnswerValue  `json:"answer,omitempty"`
	Errors           map[string]string    `json:"errors,omitempty"`
	RemainingSeconds *int                 `json:"remainingSeconds,omitempty"`
	Result           *domain.ScoreSummary `json:"result,omitempty"`
	Message          string               `json:"message,omitempty"`
}

func viewOf(snap session.Snapshot) stateView {
	view := stateView{
		Stage:            snap.Stage,
		StepIndex:        snap.StepIndex,
		TotalSteps:       snap.TotalSteps,
		Errors:           snap.Errors,
		RemainingSeconds: snap.RemainingSeconds,
		Result:           snap.Result,
		Message:          snap.Message,
	}
	if snap.Question != nil {
		view.Question = &questionView{
			ID:       snap.Question.ID,
			Text:     snap.Question.Text,
			Kind:     snap.Question.Kind,
			Required: snap.Question.Required,
			Options:  snap.Question.Options,
			Order:    snap.Question.Order,
		}
		answer := snap.Answer
		view.Answer = &answer
	}
	return view
}

// ServeWS upgrades the request and walks the respondent through the
// session: inbound identity/answer/next/back/submit commands, outbound
// state snapshots.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	clientKey := r.URL.Query().Get("client")
	if slug == "" {
		http.Error(w, "missing slug", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	nav, err := h.service.Start(r.Context(), slug, clientKey)
	if err != nil {
		// the navigator is already in its terminal stage; stream it so the
		// client can render the full-screen message
		log.Printf("session start %s: %v", slug, err)
	}
	defer nav.Close()

	updates, cancel := nav.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: viewOf(snap)}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(r, nav, inbound); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, nav *session.Navigator, inbound inboundMessage) error {
	switch inbound.Type {
	case "identity":
		var payload identityPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errInvalidPayload
		}
		return nav.SetIdentity(payload.Name, payload.Email)
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errInvalidPayload
		}
		return nav.SetAnswer(payload.QuestionID, payload.Value)
	case "next":
		return nav.Next()
	case "back":
		return nav.Back()
	case "submit":
		return nav.Submit(r.Context())
	default:
		return errUnsupportedType
	}
}
