package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/grandpal/internal/llm"
	"github.com/blueberrycongee/grandpal/internal/metrics"
	"github.com/blueberrycongee/grandpal/internal/observability"
)

const extractionPrompt = `Analyze this conversation and extract any important information to remember about the user.

Conversation:
%s

Extract and return a JSON object with these fields (use null if not mentioned):
{
    "family_members": [
        {"name": "string", "relation": "string", "details": "string or null"}
    ],
    "health_mentions": ["string"],
    "interests": ["string"],
    "important_stories": ["brief summary of any significant story or memory shared"],
    "topics_discussed": ["string"],
    "emotional_state": "happy/sad/lonely/anxious/neutral",
    "needs_followup": "anything that should be followed up on next conversation"
}

Only include information that was explicitly mentioned. Return valid JSON only.`

// defaultRelation is used when the model names a person without a relation.
const defaultRelation = "family"

// Extractor derives structured facts from transcripts and folds them into
// user memory.
type Extractor struct {
	model  llm.Model
	logger *slog.Logger
	tracer trace.Tracer
}

// NewExtractor creates an Extractor. A nil logger uses slog.Default.
func NewExtractor(model llm.Model, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		model:  model,
		logger: logger,
		tracer: otel.Tracer(observability.TracerName),
	}
}

// Extract analyses transcript and folds the facts into mem. Model failures
// and unparseable output yield an empty Extraction and a nil error. The
// only error returned is a failed persist, which stops folding; facts folded
// before it stay persisted.
func (e *Extractor) Extract(ctx context.Context, mem *UserMemory, transcript string) (*Extraction, error) {
	ctx, span := observability.StartExtractionSpan(ctx, e.tracer, mem.UserID())
	defer span.End()

	logger := observability.LoggerFromContext(ctx, e.logger).With("user_id", mem.UserID())

	out, err := e.model.Generate(ctx, fmt.Sprintf(extractionPrompt, transcript))
	if err != nil {
		logger.Warn("memory extraction call failed", "error", err)
		metrics.RecordExtractionFailure("model_error")
		return &Extraction{}, nil
	}

	span.AddEvent("model.responded")

	raw, ok := jsonSpan(out)
	if !ok {
		logger.Warn("memory extraction returned no JSON object")
		metrics.RecordExtractionFailure("no_json")
		return &Extraction{}, nil
	}

	var ext Extraction
	if err := unmarshalExtraction(raw, &ext); err != nil {
		logger.Warn("memory extraction returned invalid JSON", "error", err)
		metrics.RecordExtractionFailure("invalid_json")
		return &Extraction{}, nil
	}

	if err := e.fold(ctx, mem, &ext); err != nil {
		observability.RecordError(span, err)
		return &ext, err
	}

	logger.Info("memories extracted",
		"family_members", len(ext.FamilyMembers),
		"interests", len(ext.Interests),
		"health_mentions", len(ext.HealthMentions),
		"stories", len(ext.ImportantStories),
		"topics", len(ext.TopicsDiscussed),
		"emotional_state", string(ext.EmotionalState),
		"needs_followup", string(ext.NeedsFollowup),
	)
	return &ext, nil
}

func (e *Extractor) fold(ctx context.Context, mem *UserMemory, ext *Extraction) error {
	for _, fm := range ext.FamilyMembers {
		name := strings.TrimSpace(string(fm.Name))
		if name == "" {
			continue
		}
		relation := strings.TrimSpace(string(fm.Relation))
		if relation == "" {
			relation = defaultRelation
		}
		if err := mem.AddFamilyMember(ctx, name, relation, strings.TrimSpace(string(fm.Details))); err != nil {
			return err
		}
		metrics.RecordExtractionFacts("family_member", 1)
	}

	steps := []struct {
		kind  string
		items TextList
		add   func(context.Context, string) error
	}{
		{"interest", ext.Interests, mem.AddInterest},
		{"health_note", ext.HealthMentions, mem.AddHealthNote},
		{"story", ext.ImportantStories, mem.AddStory},
		{"topic", ext.TopicsDiscussed, mem.AddRecentTopic},
	}
	for _, step := range steps {
		for _, item := range step.items {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if err := step.add(ctx, item); err != nil {
				return err
			}
			metrics.RecordExtractionFacts(step.kind, 1)
		}
	}
	return nil
}
