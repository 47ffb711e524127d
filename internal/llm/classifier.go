package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tsawler/pragma"
)

const classifierSystemPrompt = `You are a linguistic annotator. For each sentence decide how the target verb is used.
Answer with a strict JSON array only. Do not include explanations or markdown.`

// Classifier asks a Completer to label sentences. It implements
// pragma.Classifier.
type Classifier struct {
	completer pragma.Completer
}

// NewClassifier returns a Classifier over c.
func NewClassifier(c pragma.Completer) *Classifier {
	return &Classifier{completer: c}
}

// Classify implements pragma.Classifier.
func (c *Classifier) Classify(ctx context.Context, req pragma.ClassificationRequest) (string, error) {
	return c.completer.Complete(ctx, classifierSystemPrompt, ClassificationPrompt(req))
}

// ClassificationPrompt lists the sentences with 0-based indices and asks for
// one {"index", "tag"} object per sentence.
func ClassificationPrompt(req pragma.ClassificationRequest) string {
	labels := req.Labels
	if len(labels) == 0 {
		labels = pragma.DefaultLabels
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Target verb: %s\n", req.Lemma)
	fmt.Fprintf(&b, "Allowed tags: %s\n", strings.Join(labels, ", "))
	b.WriteString("LITERAL means the verb keeps its basic physical or concrete meaning; ")
	b.WriteString("IDIOMATIC means it is part of a fixed expression, phrasal verb or figurative use.\n\n")
	b.WriteString("Sentences:\n")
	for i, s := range req.Sentences {
		fmt.Fprintf(&b, "%d. %s\n", i, s)
	}
	fmt.Fprintf(&b, "\nReturn exactly %d tags as a JSON array of objects in sentence order, ", len(req.Sentences))
	b.WriteString(`for example [{"index": 0, "tag": "LITERAL"}].`)
	return b.String()
}
