package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/m4xw311/aide/llm"
	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/task"
)

// Intent is the classification verdict for one request.
type Intent struct {
	Type                  task.Type `json:"type"`
	Confidence            float64   `json:"confidence"`
	Category              Category  `json:"category"`
	SuggestedAgent        string    `json:"suggestedAgent"`
	RequiresHumanApproval bool      `json:"requiresHumanApproval"`
	Reasoning             string    `json:"reasoning"`
}

// ExtractedTask is the task material pulled out of the request text.
type ExtractedTask struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Priority    task.Priority `json:"priority"`
	Tools       []string      `json:"tools"`
}

// Classification bundles the intent with the extracted task. This is also
// the JSON shape the model is asked to produce in the fallback stage.
type Classification struct {
	Intent        Intent        `json:"intent"`
	ExtractedTask ExtractedTask `json:"extractedTask"`
}

var workIndicators = []string{
	"work", "meeting", "deadline", "project", "client", "boss", "colleague",
	"report", "presentation", "standup", "sprint", "ticket", "deploy",
	"production", "review", "office", "quarterly",
}

var personalIndicators = []string{
	"personal", "family", "home", "weekend", "vacation", "holiday", "doctor",
	"grocery", "groceries", "birthday", "dinner", "gym", "hobby", "friend",
	"kids", "pet", "movie",
}

var urgentKeywords = []string{"urgent", "asap", "immediately", "right away", "critical", "emergency"}

var highKeywords = []string{"today", "by tomorrow", "end of day", "eod", "soon"}

var lowKeywords = []string{"whenever", "no rush", "sometime", "eventually", "low priority"}

// Classifier decides whether a request is work or personal and extracts a
// task from it. Classification never fails: every stage has a downstream
// fallback and the final answer is always usable.
type Classifier struct {
	client           llm.Client
	model            string
	acceptThreshold  float64
	clarifyThreshold float64
	log              *logrus.Entry
}

// NewClassifier builds a classifier. client may be nil, in which case the
// model fallback stage is skipped and heuristics decide everything.
func NewClassifier(client llm.Client, model string, acceptThreshold, clarifyThreshold float64, log *logrus.Entry) *Classifier {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if acceptThreshold <= 0 {
		acceptThreshold = 0.8
	}
	if clarifyThreshold <= 0 {
		clarifyThreshold = 0.5
	}
	return &Classifier{
		client:           client,
		model:            model,
		acceptThreshold:  acceptThreshold,
		clarifyThreshold: clarifyThreshold,
		log:              log.WithField("component", "classifier"),
	}
}

// ClarifyThreshold reports the confidence below which an unclear verdict
// should turn into a clarification question instead of a task.
func (c *Classifier) ClarifyThreshold() float64 {
	return c.clarifyThreshold
}

// Classify runs the staged pipeline: explicit tag, keyword heuristic, then
// model fallback for the cases the heuristic is unsure about.
func (c *Classifier) Classify(ctx context.Context, input string) Classification {
	if typ, rest, ok := explicitTag(input); ok {
		result := c.heuristic(rest)
		result.Intent.Type = typ
		result.Intent.Confidence = 1.0
		result.Intent.Reasoning = fmt.Sprintf("explicit [%s] tag", typ)
		return result
	}

	result := c.heuristic(input)
	if result.Intent.Confidence > c.acceptThreshold {
		return result
	}
	if c.client == nil {
		return result
	}

	refined, err := c.classifyWithModel(ctx, input)
	if err != nil {
		c.log.WithError(err).Debug("Model classification failed, keeping heuristic result")
		return result
	}
	return refined
}

// explicitTag recognizes a leading [work] or [personal] marker.
func explicitTag(input string) (task.Type, string, bool) {
	trimmed := strings.TrimSpace(input)
	lowered := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lowered, "[work]"):
		return task.TypeWork, strings.TrimSpace(trimmed[len("[work]"):]), true
	case strings.HasPrefix(lowered, "[personal]"):
		return task.TypePersonal, strings.TrimSpace(trimmed[len("[personal]"):]), true
	}
	return "", "", false
}

// heuristic scores the input against the work and personal keyword lists.
// Confidence grows with the margin between the two counts and is capped at
// 0.9 so a keyword match never outranks an explicit tag.
func (c *Classifier) heuristic(input string) Classification {
	lowered := strings.ToLower(input)
	work := countMatches(lowered, workIndicators)
	personal := countMatches(lowered, personalIndicators)

	typ := task.TypeUnclear
	if work > personal {
		typ = task.TypeWork
	} else if personal > work {
		typ = task.TypePersonal
	}

	margin := math.Abs(float64(work - personal))
	total := math.Max(float64(work+personal), 1)
	confidence := math.Min(0.9, 0.5+0.4*margin/total)

	category := DetectCategory(input)
	return Classification{
		Intent: Intent{
			Type:                  typ,
			Confidence:            confidence,
			Category:              category,
			SuggestedAgent:        SuggestedAgent(category),
			RequiresHumanApproval: approvalCategories[category],
			Reasoning:             fmt.Sprintf("keyword score: %d work, %d personal", work, personal),
		},
		ExtractedTask: ExtractedTask{
			Title:       titleFromInput(input),
			Description: strings.TrimSpace(input),
			Priority:    detectPriority(lowered),
			Tools:       categoryTools[category],
		},
	}
}

func countMatches(lowered string, indicators []string) int {
	count := 0
	for _, word := range indicators {
		if strings.Contains(lowered, word) {
			count++
		}
	}
	return count
}

func detectPriority(lowered string) task.Priority {
	for _, word := range urgentKeywords {
		if strings.Contains(lowered, word) {
			return task.PriorityUrgent
		}
	}
	for _, word := range highKeywords {
		if strings.Contains(lowered, word) {
			return task.PriorityHigh
		}
	}
	for _, word := range lowKeywords {
		if strings.Contains(lowered, word) {
			return task.PriorityLow
		}
	}
	return task.PriorityMedium
}

// titleFromInput uses the first line of the request, truncated to keep task
// lists readable.
func titleFromInput(input string) string {
	line := strings.TrimSpace(input)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	const maxTitle = 72
	if len(line) > maxTitle {
		line = strings.TrimSpace(line[:maxTitle]) + "..."
	}
	return line
}

const classifyPrompt = `Classify the user request below as a work or personal task and extract the task from it.

Respond with a single JSON object, no prose, in exactly this shape:
{
  "intent": {
    "type": "work|personal|unclear",
    "confidence": 0.0,
    "category": "coding|github|slack|email|calendar|research|creative|social|chat",
    "suggestedAgent": "",
    "requiresHumanApproval": false,
    "reasoning": ""
  },
  "extractedTask": {
    "title": "",
    "description": "",
    "priority": "low|medium|high|urgent",
    "tools": []
  }
}

Request:
%s`

// classifyWithModel asks the configured model for a structured verdict.
// The reply is searched for the first balanced JSON object so prose or
// markdown fences around it do not break parsing.
func (c *Classifier) classifyWithModel(ctx context.Context, input string) (Classification, error) {
	resp, err := c.client.Complete(ctx, llm.Request{
		Model: c.model,
		Messages: []session.Message{
			session.NewMessage(session.RoleUser, fmt.Sprintf(classifyPrompt, input)),
		},
		Temperature: 0.1,
		MaxTokens:   512,
	})
	if err != nil {
		return Classification{}, err
	}

	raw, ok := firstJSONObject(resp.Content)
	if !ok {
		return Classification{}, fmt.Errorf("no JSON object in model reply")
	}
	var result Classification
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Classification{}, fmt.Errorf("failed to decode model reply: %w", err)
	}
	return c.sanitize(result, input), nil
}

// sanitize fills in anything the model left blank or out of range so the
// rest of the system never sees a half-formed classification.
func (c *Classifier) sanitize(result Classification, input string) Classification {
	switch result.Intent.Type {
	case task.TypeWork, task.TypePersonal, task.TypeUnclear:
	default:
		result.Intent.Type = task.TypeUnclear
	}
	if result.Intent.Confidence < 0 {
		result.Intent.Confidence = 0
	}
	if result.Intent.Confidence > 1 {
		result.Intent.Confidence = 1
	}
	if _, ok := categoryAgents[result.Intent.Category]; !ok {
		result.Intent.Category = DetectCategory(input)
	}
	if result.Intent.SuggestedAgent == "" {
		result.Intent.SuggestedAgent = SuggestedAgent(result.Intent.Category)
	}
	if approvalCategories[result.Intent.Category] {
		result.Intent.RequiresHumanApproval = true
	}
	switch result.ExtractedTask.Priority {
	case task.PriorityLow, task.PriorityMedium, task.PriorityHigh, task.PriorityUrgent:
	default:
		result.ExtractedTask.Priority = task.PriorityMedium
	}
	if result.ExtractedTask.Title == "" {
		result.ExtractedTask.Title = titleFromInput(input)
	}
	if result.ExtractedTask.Description == "" {
		result.ExtractedTask.Description = strings.TrimSpace(input)
	}
	return result
}
