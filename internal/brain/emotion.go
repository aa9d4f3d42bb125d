package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/grandpal/internal/cache"
	"github.com/blueberrycongee/grandpal/internal/metrics"
)

const emotionPrompt = `Analyze the emotional tone of this message and respond with ONLY a JSON object:

Message: "%s"

Respond with exactly this format, no other text:
{"emotion": "happy|sad|anxious|lonely|neutral|excited", "confidence": 0.0-1.0, "needs_support": true|false}`

var emotions = map[string]bool{
	"happy":   true,
	"sad":     true,
	"anxious": true,
	"lonely":  true,
	"neutral": true,
	"excited": true,
}

// Emotion is the detected tone of a message.
type Emotion struct {
	Emotion      string  `json:"emotion"`
	Confidence   float64 `json:"confidence"`
	NeedsSupport bool    `json:"needs_support"`
}

// NeutralEmotion is returned whenever analysis fails.
func NeutralEmotion() Emotion {
	return Emotion{Emotion: "neutral", Confidence: 0.5}
}

// AnalyzeEmotion classifies text with a stateless model call. It never
// fails: model errors and malformed answers yield NeutralEmotion. Valid
// results are cached by text for the cache's configured TTL.
func (b *Brain) AnalyzeEmotion(ctx context.Context, text string) Emotion {
	logger := b.log(ctx)
	key := cache.Key("emotion", text)

	if cached, err := b.cache.Get(ctx, key); err != nil {
		logger.Warn("emotion cache read failed", "error", err)
	} else if cached != nil {
		var e Emotion
		if err := json.Unmarshal(cached, &e); err == nil {
			metrics.RecordEmotionCache(true)
			return e
		}
	}
	metrics.RecordEmotionCache(false)

	out, err := b.model.Generate(ctx, fmt.Sprintf(emotionPrompt, text))
	if err != nil {
		logger.Warn("emotion analysis failed", "error", err)
		return NeutralEmotion()
	}

	e, err := parseEmotion(out)
	if err != nil {
		logger.Warn("emotion analysis returned an unusable answer", "error", err)
		return NeutralEmotion()
	}

	if data, err := json.Marshal(e); err == nil {
		if err := b.cache.Set(ctx, key, data, 0); err != nil {
			logger.Warn("emotion cache write failed", "error", err)
		}
	}
	return e
}

// parseEmotion accepts a bare JSON object, optionally inside a markdown code
// fence.
func parseEmotion(out string) (Emotion, error) {
	s := strings.TrimSpace(out)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	var raw struct {
		Emotion      *string  `json:"emotion"`
		Confidence   *float64 `json:"confidence"`
		NeedsSupport *bool    `json:"needs_support"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return Emotion{}, fmt.Errorf("decode: %w", err)
	}
	if raw.Emotion == nil || raw.Confidence == nil || raw.NeedsSupport == nil {
		return Emotion{}, fmt.Errorf("missing field")
	}

	name := strings.ToLower(strings.TrimSpace(*raw.Emotion))
	if !emotions[name] {
		return Emotion{}, fmt.Errorf("unknown emotion %q", *raw.Emotion)
	}
	if *raw.Confidence < 0 || *raw.Confidence > 1 {
		return Emotion{}, fmt.Errorf("confidence %v out of range", *raw.Confidence)
	}
	return Emotion{Emotion: name, Confidence: *raw.Confidence, NeedsSupport: *raw.NeedsSupport}, nil
}
