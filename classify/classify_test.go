package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/m4xw311/aide/llm"
	"github.com/m4xw311/aide/task"
)

// scriptedClient returns canned content and counts calls.
type scriptedClient struct {
	content string
	err     error
	calls   int
}

func (s *scriptedClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content, FinishReason: llm.FinishStop}, nil
}

func (s *scriptedClient) StreamComplete(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk)
	close(ch)
	return ch, nil
}

func newTestClassifier(client llm.Client) *Classifier {
	return NewClassifier(client, "mock", 0.8, 0.5, nil)
}

func TestExplicitTagWins(t *testing.T) {
	client := &scriptedClient{}
	c := newTestClassifier(client)

	result := c.Classify(context.Background(), "[personal] plan my weekend trip")
	if result.Intent.Type != task.TypePersonal {
		t.Errorf("expected personal, got %q", result.Intent.Type)
	}
	if result.Intent.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0 for explicit tag, got %v", result.Intent.Confidence)
	}
	if result.Intent.Category != CategoryChat {
		t.Errorf("expected chat category, got %q", result.Intent.Category)
	}
	if result.ExtractedTask.Priority != task.PriorityMedium {
		t.Errorf("expected medium priority, got %q", result.ExtractedTask.Priority)
	}
	if client.calls != 0 {
		t.Errorf("explicit tag must not reach the model, got %d calls", client.calls)
	}

	work := c.Classify(context.Background(), "  [WORK] review the numbers")
	if work.Intent.Type != task.TypeWork || work.Intent.Confidence != 1.0 {
		t.Errorf("tag should be case-insensitive, got %+v", work.Intent)
	}
}

func TestHeuristicConfidence(t *testing.T) {
	c := newTestClassifier(nil)

	// Three work indicators, zero personal ones: margin/total = 1, capped
	// at 0.9.
	result := c.Classify(context.Background(), "prepare the quarterly report for the client")
	if result.Intent.Type != task.TypeWork {
		t.Errorf("expected work, got %q", result.Intent.Type)
	}
	if result.Intent.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", result.Intent.Confidence)
	}

	// No indicators at all: tie, baseline 0.5.
	tie := c.Classify(context.Background(), "do the thing")
	if tie.Intent.Type != task.TypeUnclear {
		t.Errorf("expected unclear on a tie, got %q", tie.Intent.Type)
	}
	if tie.Intent.Confidence != 0.5 {
		t.Errorf("expected baseline 0.5 on a tie, got %v", tie.Intent.Confidence)
	}
}

func TestConfidentHeuristicSkipsModel(t *testing.T) {
	client := &scriptedClient{content: `{"intent":{"type":"personal","confidence":0.99}}`}
	c := newTestClassifier(client)

	result := c.Classify(context.Background(), "prepare the quarterly report for the client")
	if result.Intent.Type != task.TypeWork {
		t.Errorf("expected heuristic verdict, got %q", result.Intent.Type)
	}
	if client.calls != 0 {
		t.Errorf("confident heuristic must not reach the model, got %d calls", client.calls)
	}
}

func TestModelFallbackRefines(t *testing.T) {
	client := &scriptedClient{content: "Sure, here you go:\n```json\n" +
		`{"intent":{"type":"work","confidence":0.85,"category":"email","reasoning":"mentions a reply"},` +
		`"extractedTask":{"title":"Reply to Sam","description":"Reply to Sam about the offsite","priority":"high"}}` +
		"\n```"}
	c := newTestClassifier(client)

	result := c.Classify(context.Background(), "get back to sam about that thing")
	if client.calls != 1 {
		t.Fatalf("expected one model call, got %d", client.calls)
	}
	if result.Intent.Type != task.TypeWork || result.Intent.Confidence != 0.85 {
		t.Errorf("model verdict not used: %+v", result.Intent)
	}
	if result.Intent.Category != CategoryEmail {
		t.Errorf("expected email category, got %q", result.Intent.Category)
	}
	if !result.Intent.RequiresHumanApproval {
		t.Error("email category must require approval even when the model omits it")
	}
	if result.Intent.SuggestedAgent != "communicator" {
		t.Errorf("expected suggested agent filled in, got %q", result.Intent.SuggestedAgent)
	}
	if result.ExtractedTask.Priority != task.PriorityHigh {
		t.Errorf("expected high priority, got %q", result.ExtractedTask.Priority)
	}
}

func TestUnparseableModelOutputFallsBackToHeuristic(t *testing.T) {
	client := &scriptedClient{content: "I think this is probably a work task."}
	c := newTestClassifier(client)

	// Two work indicators against one personal one lands at 0.63, below
	// the accept threshold, so the model is consulted.
	input := "meeting about the project at the gym"
	result := c.Classify(context.Background(), input)
	if client.calls != 1 {
		t.Fatalf("expected one model call, got %d", client.calls)
	}
	heuristic := c.heuristic(input)
	if result.Intent.Type != heuristic.Intent.Type || result.Intent.Confidence != heuristic.Intent.Confidence {
		t.Errorf("expected heuristic result on parse failure, got %+v", result.Intent)
	}
}

func TestModelErrorFallsBackToHeuristic(t *testing.T) {
	client := &scriptedClient{err: errors.New("connection refused")}
	c := newTestClassifier(client)

	result := c.Classify(context.Background(), "do the thing")
	if result.Intent.Type != task.TypeUnclear || result.Intent.Confidence != 0.5 {
		t.Errorf("expected heuristic result on provider error, got %+v", result.Intent)
	}
}

func TestDetectCategoryOrder(t *testing.T) {
	cases := []struct {
		input string
		want  Category
	}{
		{"review the pull request with the buggy code", CategoryGithub}, // github outranks coding
		{"fix the bug in the login function", CategoryCoding},
		{"post an update in the slack channel", CategorySlack},
		{"schedule a doctor appointment", CategoryCalendar},
		{"look up flight prices and compare them", CategoryResearch},
		{"write a short story about autumn", CategoryCreative},
		{"buy a birthday gift for mom", CategorySocial},
		{"hello there", CategoryChat},
	}
	for _, tc := range cases {
		if got := DetectCategory(tc.input); got != tc.want {
			t.Errorf("DetectCategory(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestDetectPriority(t *testing.T) {
	cases := []struct {
		input string
		want  task.Priority
	}{
		{"fix this asap", task.PriorityUrgent},
		{"need it by tomorrow", task.PriorityHigh},
		{"no rush on this one", task.PriorityLow},
		{"plain request", task.PriorityMedium},
	}
	for _, tc := range cases {
		if got := detectPriority(tc.input); got != tc.want {
			t.Errorf("detectPriority(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestFirstJSONObject(t *testing.T) {
	raw, ok := firstJSONObject("prefix {\"a\": \"b {not a brace}\", \"c\": {\"d\": 1}} suffix")
	if !ok {
		t.Fatal("expected a JSON object")
	}
	if raw != "{\"a\": \"b {not a brace}\", \"c\": {\"d\": 1}}" {
		t.Errorf("wrong extraction: %q", raw)
	}
	if _, ok := firstJSONObject("no json here"); ok {
		t.Error("expected no object")
	}
	if _, ok := firstJSONObject("unbalanced { \"a\": 1"); ok {
		t.Error("expected no object for unbalanced input")
	}
}

func TestRouterClarifiesLowConfidenceUnclear(t *testing.T) {
	client := &scriptedClient{content: `{"intent":{"type":"unclear","confidence":0.2,"reasoning":"too vague"},` +
		`"extractedTask":{"title":"do the thing"}}`}
	r := NewRouter(newTestClassifier(client), nil)

	result := r.Route(context.Background(), "do the thing")
	if result.Task != nil {
		t.Error("expected no task for a low-confidence unclear request")
	}
	if result.Clarification == nil || result.Clarification.Question == "" {
		t.Fatal("expected a clarification question")
	}
}

func TestRouterDefaultsUnclearToPersonal(t *testing.T) {
	// Heuristic tie sits exactly at the clarify threshold, so it routes
	// rather than asking.
	r := NewRouter(newTestClassifier(nil), nil)

	result := r.Route(context.Background(), "do the thing")
	if result.Clarification != nil {
		t.Fatal("expected a task, got a clarification")
	}
	if result.Task == nil || result.Task.Type != task.TypePersonal {
		t.Fatalf("expected personal default, got %+v", result.Task)
	}
	if result.Task.Status != task.StatusPending {
		t.Errorf("expected pending task, got %q", result.Task.Status)
	}
	if result.Task.Metadata["category"] != string(CategoryChat) {
		t.Errorf("expected category metadata, got %v", result.Task.Metadata)
	}
}

func TestRouterCarriesApprovalMetadata(t *testing.T) {
	r := NewRouter(newTestClassifier(nil), nil)

	result := r.Route(context.Background(), "email the client the quarterly report today")
	if result.Task == nil {
		t.Fatal("expected a task")
	}
	if result.Task.Type != task.TypeWork {
		t.Errorf("expected work task, got %q", result.Task.Type)
	}
	if result.Task.Metadata["requires_approval"] != true {
		t.Error("email tasks must carry the approval flag")
	}
	if result.Task.Priority != task.PriorityHigh {
		t.Errorf("expected high priority from 'today', got %q", result.Task.Priority)
	}
}
