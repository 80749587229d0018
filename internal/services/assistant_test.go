package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"courseta-backend/internal/config"
	"courseta-backend/internal/llm"
	"courseta-backend/internal/models"
)

// fakeLLM scripts classifier and completion replies. Calls with MaxTokens
// set are the Yes/No classifier calls; the rest are full completions.
type fakeLLM struct {
	yesNoReplies []string
	chatReplies  []string

	yesNoPrompts []string
	chatSystems  []string
	chatQueries  []string
	embedInputs  []string
	embedErr     error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []models.ChatMessage, opts *llm.ChatOptions) (string, error) {
	if opts != nil && opts.MaxTokens > 0 {
		f.yesNoPrompts = append(f.yesNoPrompts, messages[len(messages)-1].Content)
		if len(f.yesNoReplies) == 0 {
			return "No", nil
		}
		reply := f.yesNoReplies[0]
		f.yesNoReplies = f.yesNoReplies[1:]
		return reply, nil
	}

	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			f.chatSystems = append(f.chatSystems, m.Content)
		case models.RoleUser:
			f.chatQueries = append(f.chatQueries, m.Content)
		}
	}
	if len(f.chatReplies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := f.chatReplies[0]
	f.chatReplies = f.chatReplies[1:]
	return reply, nil
}

func (f *fakeLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	f.embedInputs = append(f.embedInputs, texts...)
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *fakeLLM) Close() {}

type fakeSearcher struct {
	hits    []models.ScoredChunk
	lastK   int
	queries int
}

func (f *fakeSearcher) Search(query []float32, k int) ([]models.ScoredChunk, error) {
	f.lastK = k
	f.queries++
	if k > len(f.hits) {
		k = len(f.hits)
	}
	return f.hits[:k], nil
}

type fakeSessions struct {
	last  string
	saved []string
}

func (f *fakeSessions) LastContext(ctx context.Context, clientKey string) string {
	return f.last
}

func (f *fakeSessions) SaveContext(ctx context.Context, clientKey, text string) error {
	f.saved = append(f.saved, text)
	return nil
}

func testCourse() *config.Course {
	return &config.Course{
		ClassName:        "Graduate Macroeconomics",
		Professor:        "Dr. Keynes",
		Assistants:       "two TAs",
		ClassDescription: "a PhD field course",
		AssistantName:    "MacroTA",
	}
}

func scoredChunks(texts ...string) []models.ScoredChunk {
	out := make([]models.ScoredChunk, len(texts))
	for i, t := range texts {
		out[i] = models.ScoredChunk{Chunk: models.Chunk{Text: t}}
	}
	return out
}

func TestAnswer_NormalQuestion(t *testing.T) {
	client := &fakeLLM{
		yesNoReplies: []string{"No", "Yes"}, // syllabus check, verification
		chatReplies:  []string{"The Solow model predicts convergence."},
	}
	ix := &fakeSearcher{hits: scoredChunks("chunk one", "chunk two", "chunk three")}
	sessions := &fakeSessions{}

	a := NewAssistant(client, ix, sessions, testCourse(), 3, 2)
	reply, err := a.Answer(context.Background(), "client-1", "What does the Solow model predict?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	if reply != "The Solow model predicts convergence." {
		t.Errorf("Unexpected reply: %q", reply)
	}
	if ix.lastK != 3 {
		t.Errorf("Expected retrieval k=3, got %d", ix.lastK)
	}
	if len(client.chatSystems) != 1 || !strings.Contains(client.chatSystems[0], "chunk one\n\nchunk two") {
		t.Errorf("Retrieved context missing from system prompt: %v", client.chatSystems)
	}
	if len(sessions.saved) != 1 || !strings.Contains(sessions.saved[0], "chunk one") {
		t.Errorf("Expected retrieved context saved to session, got %v", sessions.saved)
	}
}

func TestAnswer_EmptyQuery(t *testing.T) {
	a := NewAssistant(&fakeLLM{}, &fakeSearcher{}, &fakeSessions{}, testCourse(), 3, 1)

	for _, q := range []string{"", "   ", "\n\t", "m:   "} {
		_, err := a.Answer(context.Background(), "client-1", q)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Expected ValidationError for %q, got %v", q, err)
		}
	}
}

func TestAnswer_SyllabusRewrite(t *testing.T) {
	client := &fakeLLM{
		yesNoReplies: []string{"Yes", "Yes"}, // syllabus check hits, verification passes
		chatReplies:  []string{"Office hours are on Tuesdays."},
	}
	ix := &fakeSearcher{hits: scoredChunks("syllabus text")}
	a := NewAssistant(client, ix, &fakeSessions{}, testCourse(), 3, 1)

	_, err := a.Answer(context.Background(), "client-1", "When are office hours?")
	if err != nil {
		t.Fatal(err)
	}

	if len(client.embedInputs) != 1 || !strings.Contains(client.embedInputs[0], "syllabus for Graduate Macroeconomics") {
		t.Errorf("Expected rewritten retrieval query, got %v", client.embedInputs)
	}
}

func TestAnswer_FollowupIncludesPreviousContext(t *testing.T) {
	client := &fakeLLM{
		yesNoReplies: []string{"No", "Yes", "Yes"}, // syllabus no, follow-up yes, verification yes
		chatReplies:  []string{"As discussed, convergence is conditional."},
	}
	ix := &fakeSearcher{hits: scoredChunks("growth chunk")}
	sessions := &fakeSessions{last: "previous exchange context"}
	a := NewAssistant(client, ix, sessions, testCourse(), 3, 1)

	_, err := a.Answer(context.Background(), "client-1", "Why is that?")
	if err != nil {
		t.Fatal(err)
	}

	if len(client.embedInputs) != 1 || !strings.Contains(client.embedInputs[0], "previous exchange context") {
		t.Errorf("Expected follow-up query to include previous context, got %v", client.embedInputs)
	}
	if len(client.chatQueries) != 1 || !strings.Contains(client.chatQueries[0], "follow-up") {
		t.Errorf("Expected final query to carry the follow-up phrasing, got %v", client.chatQueries)
	}
}

func TestAnswer_MultipleChoiceMode(t *testing.T) {
	client := &fakeLLM{
		chatReplies: []string{"Which assumption drives convergence? A) ..."},
	}
	ix := &fakeSearcher{hits: scoredChunks("model chunk")}
	a := NewAssistant(client, ix, &fakeSessions{}, testCourse(), 3, 1)

	reply, err := a.Answer(context.Background(), "client-1", "m: the Solow model")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(reply, "Which assumption") {
		t.Errorf("Unexpected reply: %q", reply)
	}
	// No classifier calls in multiple-choice mode: no syllabus check, no verification.
	if len(client.yesNoPrompts) != 0 {
		t.Errorf("Expected no yes/no calls, got %v", client.yesNoPrompts)
	}
	if !strings.Contains(client.chatQueries[0], "Construct a challenging multiple-choice question") {
		t.Errorf("Expected multiple-choice query framing, got %q", client.chatQueries[0])
	}
	if !strings.Contains(client.chatSystems[0], "multiple choice question") {
		t.Errorf("Expected multiple-choice instructions, got %q", client.chatSystems[0])
	}
}

func TestAnswer_AnswerCheckUsesSessionContext(t *testing.T) {
	client := &fakeLLM{
		yesNoReplies: []string{"Yes"}, // verification
		chatReplies:  []string{"Correct: B is the right answer."},
	}
	ix := &fakeSearcher{}
	sessions := &fakeSessions{last: "stored quiz context"}
	a := NewAssistant(client, ix, sessions, testCourse(), 3, 1)

	_, err := a.Answer(context.Background(), "client-1", "a: I think the answer is B")
	if err != nil {
		t.Fatal(err)
	}

	if ix.queries != 0 {
		t.Errorf("Expected no retrieval in answer-check mode, got %d searches", ix.queries)
	}
	if !strings.Contains(client.chatSystems[0], "stored quiz context") {
		t.Errorf("Expected session context in system prompt, got %q", client.chatSystems[0])
	}
	if len(sessions.saved) != 0 {
		t.Errorf("Answer-check must not overwrite session context, saved %v", sessions.saved)
	}
}

func TestAnswer_VerificationRetryThenApology(t *testing.T) {
	client := &fakeLLM{
		yesNoReplies: []string{"No", "No", "No"}, // syllabus no, verify no, retry verify no
		chatReplies:  []string{"first attempt", "second attempt"},
	}
	ix := &fakeSearcher{hits: scoredChunks("c1", "c2", "c3", "c4", "c5")}
	a := NewAssistant(client, ix, &fakeSessions{}, testCourse(), 3, 1)

	reply, err := a.Answer(context.Background(), "client-1", "An unanswerable question")
	if err != nil {
		t.Fatal(err)
	}

	if reply != apologyReply {
		t.Errorf("Expected apology reply, got %q", reply)
	}
	if ix.lastK != 5 {
		t.Errorf("Expected retry retrieval with k=5, got %d", ix.lastK)
	}
	if len(client.chatQueries) != 2 {
		t.Errorf("Expected two completion attempts, got %d", len(client.chatQueries))
	}
}

func TestAnswer_VerificationRetrySucceeds(t *testing.T) {
	client := &fakeLLM{
		yesNoReplies: []string{"No", "No", "Yes"}, // syllabus no, verify no, retry verify yes
		chatReplies:  []string{"weak answer", "better answer"},
	}
	ix := &fakeSearcher{hits: scoredChunks("c1", "c2", "c3", "c4", "c5")}
	a := NewAssistant(client, ix, &fakeSessions{}, testCourse(), 3, 1)

	reply, err := a.Answer(context.Background(), "client-1", "A hard question")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "better answer" {
		t.Errorf("Expected the verified retry answer, got %q", reply)
	}
}

func TestAnswer_EmbedFailureIsUpstreamError(t *testing.T) {
	client := &fakeLLM{embedErr: errors.New("connection refused")}
	a := NewAssistant(client, &fakeSearcher{}, &fakeSessions{}, testCourse(), 3, 1)

	_, err := a.Answer(context.Background(), "client-1", "m: anything")
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
}
