package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"courseta-backend/internal/config"
	"courseta-backend/internal/llm"
	"courseta-backend/internal/models"
)

// Question modes, selected by the prefix students type.
const (
	modeNormal         = "normal"
	modeMultipleChoice = "multiple_choice"
	modeAnswerCheck    = "answer_check"
)

const apologyReply = "I'm sorry but I cannot answer that question. Can you rephrase or ask an alternative?"

var zeroTemperature = 0.0

// yesNoOptions keeps the classifier calls cheap and deterministic.
var yesNoOptions = &llm.ChatOptions{MaxTokens: 5, Temperature: &zeroTemperature}

type searcher interface {
	Search(query []float32, k int) ([]models.ScoredChunk, error)
}

type sessionStore interface {
	LastContext(ctx context.Context, clientKey string) string
	SaveContext(ctx context.Context, clientKey, text string) error
}

// Assistant runs the full question-answering pipeline behind /api/chat:
// mode detection, query classification, retrieval, completion and answer
// verification.
type Assistant struct {
	llm        llm.Client
	index      searcher
	sessions   sessionStore
	course     *config.Course
	retrievalK int
	rateChan   chan struct{} // token bucket capping concurrent model usage
}

func NewAssistant(client llm.Client, ix searcher, sessions sessionStore, course *config.Course, retrievalK, concurrent int) *Assistant {
	if retrievalK <= 0 {
		retrievalK = 3
	}
	if concurrent <= 0 {
		concurrent = 5
	}

	rateChan := make(chan struct{}, concurrent)
	for i := 0; i < concurrent; i++ {
		rateChan <- struct{}{}
	}

	return &Assistant{
		llm:        client,
		index:      ix,
		sessions:   sessions,
		course:     course,
		retrievalK: retrievalK,
		rateChan:   rateChan,
	}
}

// acquireRate blocks until a rate slot is available.
func (a *Assistant) acquireRate(ctx context.Context) error {
	select {
	case <-a.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Minute):
		return fmt.Errorf("timeout waiting for model rate slot")
	}
}

func (a *Assistant) releaseRate() {
	a.rateChan <- struct{}{}
}

// Answer resolves one chat exchange. clientKey identifies the browser for
// follow-up context; it never leaves the server.
func (a *Assistant) Answer(ctx context.Context, clientKey, rawQuery string) (string, error) {
	question := strings.TrimSpace(rawQuery)
	if question == "" {
		return "", &ValidationError{Message: "No query provided"}
	}

	if err := a.acquireRate(ctx); err != nil {
		return "", &UpstreamError{Op: "assistant: acquire rate slot", Err: err}
	}
	defer a.releaseRate()

	mode := modeNormal
	lower := strings.ToLower(question)
	switch {
	case strings.HasPrefix(lower, "m:"):
		mode = modeMultipleChoice
		question = strings.TrimSpace(question[2:])
	case strings.HasPrefix(lower, "a:"):
		mode = modeAnswerCheck
		question = strings.TrimSpace(question[2:])
	}
	if question == "" {
		return "", &ValidationError{Message: "No query provided"}
	}

	lastSession := a.sessions.LastContext(ctx, clientKey)

	retrievalQuery := question
	if mode == modeNormal {
		if a.checkSyllabus(ctx, question) {
			log.Printf("assistant: syllabus-related question detected, rewriting query")
			retrievalQuery = fmt.Sprintf("I may be asking about a detail on the syllabus for %s. %s", a.course.ClassName, question)
		}
		if lastSession != "" && a.checkFollowup(ctx, question, lastSession) {
			log.Printf("assistant: follow-up question detected, including previous context")
			retrievalQuery = fmt.Sprintf("I have a follow-up on the previous question and response. %s My new question is: %s", lastSession, question)
		}
	}

	var materialContext string
	if mode == modeAnswerCheck {
		materialContext = lastSession
	} else {
		retrieved, err := a.retrieve(ctx, retrievalQuery, a.retrievalK)
		if err != nil {
			return "", err
		}
		materialContext = retrieved
	}

	instructions := a.promptInstructions(mode)
	finalQuery := retrievalQuery
	if mode == modeMultipleChoice {
		finalQuery = fmt.Sprintf("Construct a challenging multiple-choice question to test me on a concept related to %s", retrievalQuery)
	}

	reply, err := a.complete(ctx, instructions, materialContext, finalQuery)
	if err != nil {
		return "", err
	}

	if mode != modeAnswerCheck {
		if err := a.sessions.SaveContext(ctx, clientKey, materialContext); err != nil {
			log.Printf("assistant: failed to save session context: %v", err)
		}
	}

	if mode == modeMultipleChoice {
		return reply, nil
	}

	// Verification pass: ask the model whether the answer actually addressed
	// the question, and retry once with alternate context if it did not.
	if a.verifyAnswer(ctx, question, reply) {
		return reply, nil
	}
	if mode == modeAnswerCheck {
		return reply, nil
	}

	log.Printf("assistant: answer failed verification, retrying with alternate context")
	altContext, err := a.retrieve(ctx, retrievalQuery+" "+materialContext, a.retrievalK+2)
	if err != nil {
		return "", err
	}
	retry, err := a.complete(ctx, instructions, altContext, finalQuery)
	if err != nil {
		return "", err
	}
	if a.verifyAnswer(ctx, question, retry) {
		return retry, nil
	}

	return apologyReply, nil
}

// retrieve embeds the query and pulls the k nearest material chunks.
func (a *Assistant) retrieve(ctx context.Context, query string, k int) (string, error) {
	vectors, err := a.llm.Embed(ctx, []string{query})
	if err != nil {
		return "", &UpstreamError{Op: "assistant: embed query", Err: err}
	}
	if len(vectors) != 1 {
		return "", &UpstreamError{Op: "assistant: embed query", Err: fmt.Errorf("expected 1 vector, got %d", len(vectors))}
	}

	hits, err := a.index.Search(vectors[0], k)
	if err != nil {
		return "", &UpstreamError{Op: "assistant: search index", Err: err}
	}

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Chunk.Text)
	}
	return strings.Join(texts, "\n\n"), nil
}

func (a *Assistant) complete(ctx context.Context, instructions, materialContext, query string) (string, error) {
	system := instructions + "\n\nContext:\n" + materialContext
	reply, err := a.llm.Chat(ctx, []models.ChatMessage{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: query},
	}, nil)
	if err != nil {
		return "", &UpstreamError{Op: "assistant: chat completion", Err: err}
	}
	return strings.TrimSpace(reply), nil
}

// checkSyllabus asks the model whether a question is about course logistics
// rather than content. Classifier failures fall through to a plain No.
func (a *Assistant) checkSyllabus(ctx context.Context, question string) bool {
	prompt := fmt.Sprintf(
		"This question is from a student in an %s taught by %s with the help of %s. "+
			"The class is %s. I want to know whether this question is likely about logistical details, "+
			"schedule, nature, teachers, assignments, or the syllabus of the course? Answer Yes or No and nothing else: %s",
		a.course.ClassName, a.course.Professor, a.course.Assistants, a.course.ClassDescription, question,
	)
	return a.askYesNo(ctx, []models.ChatMessage{{Role: models.RoleUser, Content: prompt}})
}

// checkFollowup asks whether the previous exchange's context would help with
// the new question.
func (a *Assistant) checkFollowup(ctx context.Context, question, previousContext string) bool {
	prompt := fmt.Sprintf(
		"Consider this new question: %s. The previous question and response was: %s. "+
			"Would it be helpful to include the previous context to answer the new question? Answer Yes or No.",
		question, previousContext,
	)
	return a.askYesNo(ctx, []models.ChatMessage{{Role: models.RoleUser, Content: prompt}})
}

// verifyAnswer asks the model whether the assistant actually answered the
// student's question.
func (a *Assistant) verifyAnswer(ctx context.Context, question, answer string) bool {
	return a.askYesNo(ctx, []models.ChatMessage{
		{Role: models.RoleSystem, Content: "Just say 'Yes' or 'No'. Do not give any other answer."},
		{Role: models.RoleUser, Content: fmt.Sprintf("User: %s\nAttendant: %s\nWas the Attendant able to answer the user's question?", question, answer)},
	})
}

func (a *Assistant) askYesNo(ctx context.Context, messages []models.ChatMessage) bool {
	reply, err := a.llm.Chat(ctx, messages, yesNoOptions)
	if err != nil {
		log.Printf("assistant: yes/no classifier call failed: %v", err)
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(reply)), "y")
}

func (a *Assistant) promptInstructions(mode string) string {
	switch mode {
	case modeMultipleChoice:
		return fmt.Sprintf(
			"You are a very truthful, precise TA in a %s. You think step by step. A strong graduate student "+
				"is using you as a tutor. The student would like you to prepare a challenging multiple choice question on "+
				"the requested topic drawing ONLY on the attached context. Do not refer to 'the attached context' explicitly. "+
				"Present the question followed by options A to D. After the question, write <span style='display:none'> then give "+
				"your answer and a short explanation, then close the span with </span>.",
			a.course.ClassName,
		)
	case modeAnswerCheck:
		return fmt.Sprintf(
			"You are a very truthful, precise TA in a %s. You think step by step. You are testing a strong graduate student "+
				"on their knowledge. Using the attached context, tell me whether the attached multiple choice answer is correct. "+
				"Draw ONLY on the context for definitions and theoretical content. Do not refer to 'the attached context'. Just state "+
				"your answer and rationale.",
			a.course.ClassName,
		)
	default:
		base := fmt.Sprintf(
			"You are a very truthful, precise TA in a %s, a %s. You think step by step. A strong graduate "+
				"student is asking you questions. Answer in no more than three paragraphs if the answer is found in the attached context. "+
				"Do not restate the question or refer explicitly to the context. If you cannot find the answer in the context, say 'I don't know'.",
			a.course.ClassName, a.course.ClassDescription,
		)
		if a.course.Instructions != "" {
			base += " " + a.course.Instructions
		}
		return base
	}
}
