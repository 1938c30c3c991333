package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/phillipshepard1/phillipsnotes/internal/ai"
	"github.com/phillipshepard1/phillipsnotes/internal/config"
	appErr "github.com/phillipshepard1/phillipsnotes/internal/pkg/errors"
	"github.com/phillipshepard1/phillipsnotes/internal/repo"
)

type ChatRequest struct {
	Query      string
	DocumentID string
	History    []ai.ChatMessage
}

type ChatSource struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
}

// ChatEvent is one increment of a streamed answer. Err terminates the
// stream; channel close without Err is the done marker.
type ChatEvent struct {
	Content string
	Err     error
}

// ChatStream is a started answer: the grounding sources are known up front,
// the content arrives incrementally. Cancelling the request context stops
// upstream consumption; nothing partial is persisted.
type ChatStream struct {
	Sources []ChatSource
	Events  <-chan ChatEvent
}

// ChatService answers questions grounded in the owner's notes. Retrieval
// happens before any streaming starts, so retrieval failures surface as a
// plain error, never as a broken stream.
type ChatService struct {
	index     ChunkIndex
	embedder  ai.IEmbedder
	streamer  ai.IChatStreamer
	generator ai.IGenerator
	cfg       config.RetrievalConfig
	maxChars  int
}

func NewChatService(index ChunkIndex, embedder ai.IEmbedder, streamer ai.IChatStreamer, generator ai.IGenerator, cfg config.RetrievalConfig, maxContextChars int) *ChatService {
	return &ChatService{index: index, embedder: embedder, streamer: streamer, generator: generator, cfg: cfg, maxChars: maxContextChars}
}

func (s *ChatService) Ask(ctx context.Context, userID string, req ChatRequest) (*ChatStream, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, appErr.ErrInvalid
	}
	if s.streamer == nil {
		return nil, ai.ErrUnavailable
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))

	sources, contextParts, err := s.retrieveContext(ctx, userID, query, req.DocumentID)
	if err != nil {
		return nil, err
	}

	messages := make([]ai.ChatMessage, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, ai.ChatMessage{Role: "user", Content: buildGroundedPrompt(contextParts, query)})

	deltas, err := s.streamer.ChatStream(ctx, messages)
	if err != nil {
		logger.Error("failed to start chat stream", zap.Error(err))
		return nil, err
	}
	events := make(chan ChatEvent)
	go func() {
		defer close(events)
		for delta := range deltas {
			if delta.Err != nil {
				logger.Warn("chat stream error", zap.Error(delta.Err))
				select {
				case events <- ChatEvent{Err: delta.Err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case events <- ChatEvent{Content: delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	logger.Info("chat stream started", zap.Int("sources", len(sources)), zap.Int("context_chunks", len(contextParts)))
	return &ChatStream{Sources: sources, Events: events}, nil
}

// AskSync is the non-streaming variant: the full answer comes back in one
// response. Clients that cannot consume server-sent events use this path.
func (s *ChatService) AskSync(ctx context.Context, userID string, req ChatRequest) (string, []ChatSource, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "", nil, appErr.ErrInvalid
	}
	if s.generator == nil {
		return "", nil, ai.ErrUnavailable
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))

	sources, contextParts, err := s.retrieveContext(ctx, userID, query, req.DocumentID)
	if err != nil {
		return "", nil, err
	}
	prompt := buildGroundedPrompt(contextParts, query)
	if len(req.History) > 0 {
		prompt = foldHistory(req.History) + "\n\n" + prompt
	}
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Error("chat generation failed", zap.Error(err))
		return "", nil, err
	}
	logger.Info("chat answered", zap.Int("sources", len(sources)), zap.Int("answer_chars", len(answer)))
	return answer, sources, nil
}

// retrieveContext embeds the query and pulls the best matching chunks, capped
// at maxChars of note text. The first chunk always fits, even if oversized.
func (s *ChatService) retrieveContext(ctx context.Context, userID, query, docID string) ([]ChatSource, []string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	vec, err := s.embedder.Embed(ctx, query, ai.TaskTypeQuery)
	if err != nil {
		logger.Error("failed to embed chat query", zap.Error(err))
		return nil, nil, err
	}
	matches, err := s.index.SearchSimilar(ctx, userID, vec, repo.SearchOptions{
		Threshold: s.cfg.SearchThreshold,
		Limit:     s.cfg.ChatContextChunks,
		OnlyDocID: docID,
	})
	if err != nil {
		logger.Error("grounding retrieval failed", zap.Error(err))
		return nil, nil, err
	}

	var (
		sources      []ChatSource
		contextParts []string
		seen         = make(map[string]bool)
		used         = 0
	)
	for _, match := range matches {
		if used+len(match.Content) > s.maxChars && used > 0 {
			break
		}
		used += len(match.Content)
		contextParts = append(contextParts, fmt.Sprintf("[%s]\n%s", match.Title, match.Content))
		if !seen[match.DocumentID] {
			seen[match.DocumentID] = true
			sources = append(sources, ChatSource{DocumentID: match.DocumentID, Title: match.Title})
		}
	}
	return sources, contextParts, nil
}

func foldHistory(history []ai.ChatMessage) string {
	var sb strings.Builder
	sb.WriteString("Earlier conversation:\n")
	for _, msg := range history {
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func buildGroundedPrompt(contextParts []string, query string) string {
	if len(contextParts) == 0 {
		return fmt.Sprintf(`You are an assistant for a personal note-taking app.
No stored notes matched the question. Say so briefly, then answer from general knowledge if you can.

QUESTION:
%s`, query)
	}
	return fmt.Sprintf(`You are an assistant for a personal note-taking app.
Answer the question using the notes below. Prefer the notes over general knowledge; if they do not contain the answer, say so.
- Use the same language as the question.
- Be concise.

NOTES:
%s

QUESTION:
%s`, strings.Join(contextParts, "\n\n---\n\n"), query)
}
