package memory

import (
	"strings"

	"github.com/goccy/go-json"
)

// Text is a string field of model output. It tolerates null, numbers and
// booleans so one odd value does not discard the whole extraction.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*t = ""
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case trimmed == "false":
		*t = ""
	default:
		*t = Text(trimmed)
	}
	return nil
}

// TextList is a list field of model output. Non-string entries are dropped
// and a bare string is read as a one-element list.
type TextList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *TextList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*l = nil
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = TextList{s}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(TextList, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// ExtractedMember is a family member mentioned in a transcript.
type ExtractedMember struct {
	Name     Text `json:"name"`
	Relation Text `json:"relation"`
	Details  Text `json:"details"`
}

// Extraction is the structured result of analysing one transcript.
// EmotionalState and NeedsFollowup are reported but not persisted.
type Extraction struct {
	FamilyMembers    []ExtractedMember `json:"family_members"`
	HealthMentions   TextList          `json:"health_mentions"`
	Interests        TextList          `json:"interests"`
	ImportantStories TextList          `json:"important_stories"`
	TopicsDiscussed  TextList          `json:"topics_discussed"`
	EmotionalState   Text              `json:"emotional_state"`
	NeedsFollowup    Text              `json:"needs_followup"`
}

// Empty reports whether the extraction carries no facts.
func (e *Extraction) Empty() bool {
	return len(e.FamilyMembers) == 0 &&
		len(e.HealthMentions) == 0 &&
		len(e.Interests) == 0 &&
		len(e.ImportantStories) == 0 &&
		len(e.TopicsDiscussed) == 0 &&
		e.EmotionalState == "" &&
		e.NeedsFollowup == ""
}

// jsonSpan returns the text from the first '{' to the last '}', or false
// when there is no such span.
func jsonSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

func unmarshalExtraction(span string, e *Extraction) error {
	return json.Unmarshal([]byte(span), e)
}
