package classify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/m4xw311/aide/task"
)

// Clarification is a question back to the user instead of a task. It is
// produced when the request is unclear and confidence is too low to guess.
type Clarification struct {
	Question string `json:"question"`
}

// RouteResult is the outcome of routing one request: either a task ready
// for dispatch or a clarification question, never both.
type RouteResult struct {
	Classification Classification `json:"classification"`
	Task           *task.Task     `json:"task,omitempty"`
	Clarification  *Clarification `json:"clarification,omitempty"`
}

// Router turns raw request text into dispatchable tasks.
type Router struct {
	classifier *Classifier
	log        *logrus.Entry
}

func NewRouter(classifier *Classifier, log *logrus.Entry) *Router {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Router{classifier: classifier, log: log.WithField("component", "router")}
}

// Route classifies the input and builds a task from it. Unclear requests
// below the clarify threshold come back as a question; everything else
// becomes a task, with unclear-but-plausible requests defaulting to
// personal so their content stays local.
func (r *Router) Route(ctx context.Context, input string) *RouteResult {
	result := r.classifier.Classify(ctx, input)

	log := r.log.WithFields(logrus.Fields{
		"type":       result.Intent.Type,
		"confidence": result.Intent.Confidence,
		"category":   result.Intent.Category,
	})

	if result.Intent.Type == task.TypeUnclear && result.Intent.Confidence < r.classifier.ClarifyThreshold() {
		log.Info("Request needs clarification")
		return &RouteResult{
			Classification: result,
			Clarification: &Clarification{
				Question: fmt.Sprintf("Is %q a work or a personal request? You can prefix it with [work] or [personal].",
					result.ExtractedTask.Title),
			},
		}
	}

	typ := result.Intent.Type
	if typ == task.TypeUnclear {
		typ = task.TypePersonal
	}

	t := task.New(result.ExtractedTask.Title, result.ExtractedTask.Description, typ, result.ExtractedTask.Priority)
	t.Metadata["category"] = string(result.Intent.Category)
	t.Metadata["confidence"] = result.Intent.Confidence
	t.Metadata["suggested_agent"] = result.Intent.SuggestedAgent
	t.Metadata["requires_approval"] = result.Intent.RequiresHumanApproval
	if len(result.ExtractedTask.Tools) > 0 {
		t.Metadata["tools"] = result.ExtractedTask.Tools
	}

	log.WithField("task_id", t.ID).Info("Routed request to task")
	return &RouteResult{Classification: result, Task: t}
}
