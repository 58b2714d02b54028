// Package api is the HTTP surface: route handlers, the error envelope,
// and request middleware. Handlers translate between wire payloads and
// the services; no domain logic lives here.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/divitutor/backend/internal/answers"
	"github.com/divitutor/backend/internal/apperr"
	"github.com/divitutor/backend/internal/chat"
	"github.com/divitutor/backend/internal/logger"
	"github.com/divitutor/backend/internal/mastery"
	"github.com/divitutor/backend/internal/progress"
	"github.com/divitutor/backend/internal/questions"
	"github.com/divitutor/backend/internal/store"
	"github.com/divitutor/backend/internal/users"
	"github.com/divitutor/backend/internal/video"
)

// Handlers holds the services behind the HTTP surface.
type Handlers struct {
	chat      *chat.Service
	questions *questions.Service
	answers   *answers.Service
	video     *video.Service
	users     *users.Service
	progress  *progress.Service
	mastery   *mastery.Service

	webhookSecret string
	log           *logger.Logger
}

// NewHandlers wires the services into the HTTP layer. An empty
// webhookSecret disables signature verification.
func NewHandlers(
	chatSvc *chat.Service,
	questionSvc *questions.Service,
	answerSvc *answers.Service,
	videoSvc *video.Service,
	userSvc *users.Service,
	progressSvc *progress.Service,
	masterySvc *mastery.Service,
	webhookSecret string,
	log *logger.Logger,
) *Handlers {
	return &Handlers{
		chat:          chatSvc,
		questions:     questionSvc,
		answers:       answerSvc,
		video:         videoSvc,
		users:         userSvc,
		progress:      progressSvc,
		mastery:       masterySvc,
		webhookSecret: webhookSecret,
		log:           log.With("component", "api"),
	}
}

func (h *Handlers) health(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok", "service": "divitutor"})
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handlers) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &apperr.Validation{Field: "body", Reason: err.Error()})
		return
	}
	sess, err := h.chat.StartSession(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, sess)
}

type sendMessageRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

func (h *Handlers) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &apperr.Validation{Field: "body", Reason: err.Error()})
		return
	}
	sid, err := uuid.Parse(req.SessionID)
	if err != nil {
		respondError(c, &apperr.Validation{Field: "session_id", Reason: "not a uuid"})
		return
	}
	reply, err := h.chat.SendMessage(c.Request.Context(), sid, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, reply)
}

func (h *Handlers) messageHistory(c *gin.Context) {
	sid, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		respondError(c, &apperr.Validation{Field: "session_id", Reason: "not a uuid"})
		return
	}
	msgs, err := h.chat.History(c.Request.Context(), sid)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"messages": msgs})
}

// questionPayload is a Question without the answer fields; the answer
// never leaves the server before a wrong submission.
type questionPayload struct {
	ID         uuid.UUID `json:"id"`
	Question   string    `json:"question"`
	TopicID    string    `json:"topic_id"`
	Difficulty int       `json:"difficulty"`
}

func (h *Handlers) nextQuestion(c *gin.Context) {
	sid, err := uuid.Parse(c.Query("session_id"))
	if err != nil {
		respondError(c, &apperr.Validation{Field: "session_id", Reason: "not a uuid"})
		return
	}
	difficulty := 0
	if raw := c.Query("difficulty"); raw != "" {
		difficulty, err = strconv.Atoi(raw)
		if err != nil {
			respondError(c, &apperr.Validation{Field: "difficulty", Reason: "not an integer"})
			return
		}
	}

	q, err := h.questions.NextQuestion(c.Request.Context(), sid, difficulty)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, questionPayload{
		ID:         q.ID,
		Question:   q.Text,
		TopicID:    q.TopicID,
		Difficulty: q.Difficulty,
	})
}

type validateRequest struct {
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

func (h *Handlers) validateAnswer(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &apperr.Validation{Field: "body", Reason: err.Error()})
		return
	}
	sid, err := uuid.Parse(req.SessionID)
	if err != nil {
		respondError(c, &apperr.Validation{Field: "session_id", Reason: "not a uuid"})
		return
	}
	qid, err := uuid.Parse(req.QuestionID)
	if err != nil {
		respondError(c, &apperr.Validation{Field: "question_id", Reason: "not a uuid"})
		return
	}

	res, err := h.answers.Validate(c.Request.Context(), sid, qid, req.Answer)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

type generateVideoRequest struct {
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id"`
}

func (h *Handlers) generateVideo(c *gin.Context) {
	var req generateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &apperr.Validation{Field: "body", Reason: err.Error()})
		return
	}
	sid, err := uuid.Parse(req.SessionID)
	if err != nil {
		respondError(c, &apperr.Validation{Field: "session_id", Reason: "not a uuid"})
		return
	}
	qid, err := uuid.Parse(req.QuestionID)
	if err != nil {
		respondError(c, &apperr.Validation{Field: "question_id", Reason: "not a uuid"})
		return
	}

	v, err := h.video.Generate(c.Request.Context(), sid, qid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, v)
}

func (h *Handlers) videoStatus(c *gin.Context) {
	vid, err := uuid.Parse(c.Param("video_id"))
	if err != nil {
		respondError(c, &apperr.Validation{Field: "video_id", Reason: "not a uuid"})
		return
	}
	v, err := h.video.Status(c.Request.Context(), vid)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, v)
}

func (h *Handlers) cleanupVideos(c *gin.Context) {
	res, err := h.video.CleanupOld(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *Handlers) clerkWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, &apperr.Validation{Field: "body", Reason: "unreadable"})
		return
	}

	if h.webhookSecret != "" {
		err := users.VerifySignature(
			h.webhookSecret,
			c.GetHeader("svix-id"),
			c.GetHeader("svix-timestamp"),
			c.GetHeader("svix-signature"),
			body,
			time.Now(),
		)
		if err != nil {
			respondError(c, err)
			return
		}
	} else {
		h.log.Warn("webhook secret unset, skipping signature verification")
	}

	var ev users.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		respondError(c, &apperr.Validation{Field: "body", Reason: err.Error()})
		return
	}
	res, err := h.users.Apply(c.Request.Context(), &ev)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *Handlers) getUser(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, u)
}

type progressSnapshot struct {
	Progress *store.Progress      `json:"progress"`
	Mastery  []store.TopicMastery `json:"mastery"`
}

func (h *Handlers) userProgress(c *gin.Context) {
	userID := c.Param("user_id")
	p, err := h.progress.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	rows, err := h.mastery.Overview(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, progressSnapshot{Progress: p, Mastery: rows})
}
