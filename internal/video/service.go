// Package video runs the explanation-video pipeline: a narration script
// from the text model, animation scene code from the code model, a
// sandboxed render, and an upload to public storage. Generation is
// decoupled from the request; callers poll Status until the job leaves
// the processing states.
package video

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/divitutor/backend/internal/apperr"
	"github.com/divitutor/backend/internal/llm"
	"github.com/divitutor/backend/internal/logger"
	"github.com/divitutor/backend/internal/sandbox"
	"github.com/divitutor/backend/internal/storage"
	"github.com/divitutor/backend/internal/store"
)

// renderTimeout bounds one whole pipeline run.
const renderTimeout = 10 * time.Minute

// sceneName is the animation class the generated code must define.
const sceneName = "ExplanationScene"

const explanationSystemPrompt = `You are a math tutor writing the narration for a short explainer
video about one division problem. Produce a clear spoken-word script that
walks through the solution step by step for a young student.`

const sceneCodeSystemPrompt = `You write Manim Community Edition code. Given a division question and
its narration script, produce a complete Python file defining a single class
ExplanationScene(Scene) that animates the solution in sync with the script.
Output only Python code, no commentary.`

var explanationSchema = &llm.Schema{
	Name:        "video-explanation",
	Description: "Narration script for a division explainer video",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"explanation": map[string]any{
				"type":        "string",
				"description": "The spoken-word narration walking through the solution",
			},
		},
		"required":             []string{"explanation"},
		"additionalProperties": false,
	},
}

// Service owns the render pipeline and video job records.
type Service struct {
	videos   store.VideoRepo
	sessions store.SessionRepo
	pool     store.QuestionRepo
	attempts store.AttemptRepo
	text     llm.Provider
	code     llm.Provider
	sandbox  sandbox.Client
	storage  storage.Client
	log      *logger.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

// NewService creates the video pipeline. text scripts the narration;
// code writes the animation source.
func NewService(
	videos store.VideoRepo,
	sessions store.SessionRepo,
	pool store.QuestionRepo,
	attempts store.AttemptRepo,
	text, code llm.Provider,
	sb sandbox.Client,
	st storage.Client,
	log *logger.Logger,
) *Service {
	return &Service{
		videos:   videos,
		sessions: sessions,
		pool:     pool,
		attempts: attempts,
		text:     text,
		code:     code,
		sandbox:  sb,
		storage:  st,
		log:      log.With("service", "video"),
		now:      time.Now,
	}
}

// Generate records a pending video job for the question, kicks off the
// pipeline in the background, and returns the handle immediately. A
// failed render is terminal; the caller must re-request explicitly.
func (s *Service) Generate(ctx context.Context, sessionID, questionID uuid.UUID) (*store.Video, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "session.get", Err: err}
	}
	if sess == nil {
		return nil, &apperr.NotFound{Kind: "session", ID: sessionID.String()}
	}
	q, err := s.pool.Get(ctx, questionID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "question.get", Err: err}
	}
	if q == nil {
		return nil, &apperr.NotFound{Kind: "question", ID: questionID.String()}
	}

	v := &store.Video{
		ID:         uuid.New(),
		QuestionID: questionID,
		SessionID:  sessionID,
		UserID:     sess.UserID,
		Status:     store.VideoStatusPending,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.videos.Create(ctx, v); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "video.create", Err: err}
	}
	if err := s.attempts.SetVideoRequested(ctx, sess.UserID, questionID); err != nil {
		s.log.Warn("could not flag attempt as video-requested", "error", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runCtx, cancel := context.WithTimeout(context.Background(), renderTimeout)
		defer cancel()
		s.run(runCtx, v.ID, q)
	}()

	s.log.Info("video job enqueued", "video_id", v.ID, "question_id", questionID)
	return v, nil
}

// Status returns the job record for polling.
func (s *Service) Status(ctx context.Context, videoID uuid.UUID) (*store.Video, error) {
	v, err := s.videos.Get(ctx, videoID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "video.get", Err: err}
	}
	if v == nil {
		return nil, &apperr.NotFound{Kind: "video", ID: videoID.String()}
	}
	return v, nil
}

// Wait blocks until all in-flight pipeline runs finish. Used at shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

// run executes the pipeline stages and records the terminal outcome.
func (s *Service) run(ctx context.Context, videoID uuid.UUID, q *store.Question) {
	if err := s.videos.SetStatus(ctx, videoID, store.VideoStatusProcessing, nil, nil); err != nil {
		s.log.Error("could not mark video processing", "video_id", videoID, "error", err)
		return
	}

	url, err := s.render(ctx, videoID, q)
	if err != nil {
		msg := err.Error()
		if serr := s.videos.SetStatus(ctx, videoID, store.VideoStatusFailed, nil, &msg); serr != nil {
			s.log.Error("could not mark video failed", "video_id", videoID, "error", serr)
		}
		s.log.Warn("video render failed", "video_id", videoID, "error", err)
		return
	}

	if err := s.videos.SetStatus(ctx, videoID, store.VideoStatusCompleted, &url, nil); err != nil {
		s.log.Error("could not mark video completed", "video_id", videoID, "error", err)
		return
	}
	s.log.Info("video completed", "video_id", videoID, "url", url)
}

func (s *Service) render(ctx context.Context, videoID uuid.UUID, q *store.Question) (string, error) {
	if s.sandbox == nil || s.storage == nil {
		return "", &apperr.UpstreamGeneration{Stage: "render", Err: fmt.Errorf("sandbox or storage not configured")}
	}

	explanation, err := s.generateExplanation(ctx, q.Text)
	if err != nil {
		return "", &apperr.UpstreamGeneration{Stage: "explanation", Err: err}
	}

	sceneCode, err := s.generateSceneCode(ctx, q.Text, explanation)
	if err != nil {
		return "", &apperr.UpstreamGeneration{Stage: "scene-code", Err: err}
	}

	content, err := s.renderInSandbox(ctx, sceneCode)
	if err != nil {
		return "", &apperr.UpstreamGeneration{Stage: "render", Err: err}
	}

	url, err := s.storage.Upload(ctx, videoID.String()+".mp4", content, "video/mp4")
	if err != nil {
		return "", &apperr.UpstreamGeneration{Stage: "upload", Err: err}
	}
	return url, nil
}

func (s *Service) generateExplanation(ctx context.Context, question string) (string, error) {
	ctx = llm.WithPurpose(ctx, "explanation")
	resp, err := s.text.Generate(ctx, llm.Request{
		System: explanationSystemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Write the narration for this question: %s", question),
		}},
		Schema:    explanationSchema,
		MaxTokens: 1024,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("parse explanation: %w", err)
	}
	if strings.TrimSpace(out.Explanation) == "" {
		return "", fmt.Errorf("model returned empty explanation")
	}
	return out.Explanation, nil
}

func (s *Service) generateSceneCode(ctx context.Context, question, explanation string) (string, error) {
	ctx = llm.WithPurpose(ctx, "scene-code")
	resp, err := s.code.Generate(ctx, llm.Request{
		System: sceneCodeSystemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Question: %s\n\nNarration script:\n%s", question, explanation),
		}},
		MaxTokens: 2048,
	})
	if err != nil {
		return "", err
	}
	code := resp.Text()
	if code == "" {
		return "", fmt.Errorf("model returned empty scene code")
	}
	return code, nil
}

// renderInSandbox writes the scene file, renders it, and reads the
// resulting mp4 back. The sandbox is deleted whatever the outcome.
func (s *Service) renderInSandbox(ctx context.Context, sceneCode string) ([]byte, error) {
	id, err := s.sandbox.Create(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if derr := s.sandbox.Delete(context.WithoutCancel(ctx), id); derr != nil {
			s.log.Warn("sandbox cleanup failed", "sandbox_id", id, "error", derr)
		}
	}()

	// Ship the file through base64 so quoting in the shell line cannot
	// mangle the code.
	encoded := base64.StdEncoding.EncodeToString([]byte(sceneCode))
	if _, err := s.sandbox.Exec(ctx, id, fmt.Sprintf("echo '%s' | base64 -d > scene.py", encoded)); err != nil {
		return nil, fmt.Errorf("write scene file: %w", err)
	}

	renderOut, err := s.sandbox.Exec(ctx, id, fmt.Sprintf("python3 -m manim -ql scene.py %s 2>&1", sceneName))
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	pathOut, err := s.sandbox.Exec(ctx, id, fmt.Sprintf("find media -name '%s.mp4' -type f 2>/dev/null", sceneName))
	if err != nil {
		return nil, fmt.Errorf("locate output: %w", err)
	}
	videoPath := strings.TrimSpace(pathOut)
	if videoPath == "" {
		return nil, fmt.Errorf("render produced no video: %s", firstN(renderOut, 1000))
	}

	encodedVideo, err := s.sandbox.Exec(ctx, id, fmt.Sprintf(`cat %s | base64 | tr -d '\n'`, videoPath))
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	content, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encodedVideo))
	if err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	return content, nil
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
