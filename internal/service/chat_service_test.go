package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phillipshepard1/phillipsnotes/internal/ai"
	"github.com/phillipshepard1/phillipsnotes/internal/model"
	appErr "github.com/phillipshepard1/phillipsnotes/internal/pkg/errors"
)

type fakeStreamer struct {
	deltas      []ai.StreamDelta
	startErr    error
	gotMessages []ai.ChatMessage
}

func (f *fakeStreamer) ChatStream(ctx context.Context, messages []ai.ChatMessage) (<-chan ai.StreamDelta, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.gotMessages = messages
	ch := make(chan ai.StreamDelta, len(f.deltas))
	for _, delta := range f.deltas {
		ch <- delta
	}
	close(ch)
	return ch, nil
}

func chatTestIndex() *fakeIndex {
	return &fakeIndex{
		titles: map[string]string{"d1": "Go notes", "d2": "K8s notes"},
		chunks: []*model.NoteChunk{
			chunkWithEmbedding("u1", "d1", 0, "goroutines are cheap", []float32{0.9, 0}),
			chunkWithEmbedding("u1", "d1", 1, "channels synchronize goroutines", []float32{0.8, 0}),
			chunkWithEmbedding("u1", "d2", 0, "pods restart on failure", []float32{0.7, 0}),
		},
	}
}

type fakeGenerator struct {
	answer    string
	err       error
	gotPrompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.gotPrompt = prompt
	return f.answer, f.err
}

func newChatService(index *fakeIndex, streamer ai.IChatStreamer) *ChatService {
	return NewChatService(index, &fakeEmbedder{}, streamer, nil, retrievalTestConfig(), 24000)
}

func newSyncChatService(index *fakeIndex, generator ai.IGenerator) *ChatService {
	return NewChatService(index, &fakeEmbedder{}, nil, generator, retrievalTestConfig(), 24000)
}

func collectEvents(t *testing.T, events <-chan ChatEvent) (string, error) {
	t.Helper()
	var sb strings.Builder
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return sb.String(), nil
			}
			if event.Err != nil {
				return sb.String(), event.Err
			}
			sb.WriteString(event.Content)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for chat events")
		}
	}
}

func TestAsk_EmptyQueryIsInvalid(t *testing.T) {
	svc := newChatService(chatTestIndex(), &fakeStreamer{})

	_, err := svc.Ask(context.Background(), "u1", ChatRequest{Query: "   "})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestAsk_NoStreamerIsUnavailable(t *testing.T) {
	svc := newChatService(chatTestIndex(), nil)

	_, err := svc.Ask(context.Background(), "u1", ChatRequest{Query: "how do goroutines work"})
	require.ErrorIs(t, err, ai.ErrUnavailable)
}

func TestAsk_StreamsAnswerWithDedupedSources(t *testing.T) {
	streamer := &fakeStreamer{deltas: []ai.StreamDelta{
		{Content: "Goroutines "},
		{Content: "are lightweight."},
	}}
	svc := newChatService(chatTestIndex(), streamer)

	stream, err := svc.Ask(context.Background(), "u1", ChatRequest{Query: "how do goroutines work"})
	require.NoError(t, err)
	// Two d1 chunks collapse into one source.
	require.Len(t, stream.Sources, 2)
	require.Equal(t, "d1", stream.Sources[0].DocumentID)
	require.Equal(t, "Go notes", stream.Sources[0].Title)
	require.Equal(t, "d2", stream.Sources[1].DocumentID)

	answer, streamErr := collectEvents(t, stream.Events)
	require.NoError(t, streamErr)
	require.Equal(t, "Goroutines are lightweight.", answer)

	// The grounding prompt goes to the model with the retrieved notes.
	require.NotEmpty(t, streamer.gotMessages)
	prompt := streamer.gotMessages[len(streamer.gotMessages)-1]
	require.Equal(t, "user", prompt.Role)
	require.Contains(t, prompt.Content, "goroutines are cheap")
	require.Contains(t, prompt.Content, "how do goroutines work")
}

func TestAsk_HistoryPrecedesPrompt(t *testing.T) {
	streamer := &fakeStreamer{deltas: []ai.StreamDelta{{Content: "ok"}}}
	svc := newChatService(chatTestIndex(), streamer)

	history := []ai.ChatMessage{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	stream, err := svc.Ask(context.Background(), "u1", ChatRequest{Query: "follow-up", History: history})
	require.NoError(t, err)
	_, _ = collectEvents(t, stream.Events)

	require.Len(t, streamer.gotMessages, 3)
	require.Equal(t, "earlier question", streamer.gotMessages[0].Content)
	require.Equal(t, "earlier answer", streamer.gotMessages[1].Content)
}

func TestAsk_ScopedToSingleDocument(t *testing.T) {
	streamer := &fakeStreamer{deltas: []ai.StreamDelta{{Content: "ok"}}}
	svc := newChatService(chatTestIndex(), streamer)

	stream, err := svc.Ask(context.Background(), "u1", ChatRequest{Query: "what about pods", DocumentID: "d2"})
	require.NoError(t, err)
	require.Len(t, stream.Sources, 1)
	require.Equal(t, "d2", stream.Sources[0].DocumentID)

	_, _ = collectEvents(t, stream.Events)
	prompt := streamer.gotMessages[len(streamer.gotMessages)-1]
	require.Contains(t, prompt.Content, "pods restart on failure")
	require.NotContains(t, prompt.Content, "goroutines are cheap")
}

func TestAsk_NoMatchesStillAnswers(t *testing.T) {
	streamer := &fakeStreamer{deltas: []ai.StreamDelta{{Content: "no notes"}}}
	svc := newChatService(&fakeIndex{}, streamer)

	stream, err := svc.Ask(context.Background(), "u1", ChatRequest{Query: "anything indexed?"})
	require.NoError(t, err)
	require.Empty(t, stream.Sources)

	answer, streamErr := collectEvents(t, stream.Events)
	require.NoError(t, streamErr)
	require.Equal(t, "no notes", answer)

	prompt := streamer.gotMessages[len(streamer.gotMessages)-1]
	require.Contains(t, prompt.Content, "No stored notes matched")
}

func TestAsk_MidStreamErrorTerminatesStream(t *testing.T) {
	modelErr := errors.New("model overloaded")
	streamer := &fakeStreamer{deltas: []ai.StreamDelta{
		{Content: "partial "},
		{Err: modelErr},
		{Content: "never delivered"},
	}}
	svc := newChatService(chatTestIndex(), streamer)

	stream, err := svc.Ask(context.Background(), "u1", ChatRequest{Query: "how do goroutines work"})
	require.NoError(t, err)

	answer, streamErr := collectEvents(t, stream.Events)
	require.ErrorIs(t, streamErr, modelErr)
	require.Equal(t, "partial ", answer)

	// Channel is closed after the terminal error.
	_, open := <-stream.Events
	require.False(t, open)
}

func TestAsk_RetrievalFailureIsSynchronous(t *testing.T) {
	index := chatTestIndex()
	index.searchErr = errors.New("index down")
	svc := newChatService(index, &fakeStreamer{})

	_, err := svc.Ask(context.Background(), "u1", ChatRequest{Query: "how do goroutines work"})
	require.ErrorIs(t, err, index.searchErr)
}

func TestAskSync_ReturnsWholeAnswer(t *testing.T) {
	generator := &fakeGenerator{answer: "Goroutines are lightweight threads."}
	svc := newSyncChatService(chatTestIndex(), generator)

	answer, sources, err := svc.AskSync(context.Background(), "u1", ChatRequest{Query: "how do goroutines work"})
	require.NoError(t, err)
	require.Equal(t, "Goroutines are lightweight threads.", answer)
	require.Len(t, sources, 2)
	require.Contains(t, generator.gotPrompt, "goroutines are cheap")
	require.Contains(t, generator.gotPrompt, "how do goroutines work")
}

func TestAskSync_FoldsHistoryIntoPrompt(t *testing.T) {
	generator := &fakeGenerator{answer: "ok"}
	svc := newSyncChatService(chatTestIndex(), generator)

	history := []ai.ChatMessage{{Role: "user", Content: "earlier question"}}
	_, _, err := svc.AskSync(context.Background(), "u1", ChatRequest{Query: "follow-up", History: history})
	require.NoError(t, err)
	require.Contains(t, generator.gotPrompt, "earlier question")
}

func TestAskSync_NoGeneratorIsUnavailable(t *testing.T) {
	svc := newChatService(chatTestIndex(), &fakeStreamer{})

	_, _, err := svc.AskSync(context.Background(), "u1", ChatRequest{Query: "anything"})
	require.ErrorIs(t, err, ai.ErrUnavailable)
}

func TestAsk_CancelledContextClosesStream(t *testing.T) {
	deltas := make([]ai.StreamDelta, 0, 64)
	for i := 0; i < 64; i++ {
		deltas = append(deltas, ai.StreamDelta{Content: "x"})
	}
	streamer := &fakeStreamer{deltas: deltas}
	svc := newChatService(chatTestIndex(), streamer)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := svc.Ask(ctx, "u1", ChatRequest{Query: "how do goroutines work"})
	require.NoError(t, err)
	cancel()

	// Consumer may see a few buffered fragments, but the channel must close.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream.Events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}
