package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blueberrycongee/grandpal/internal/metrics"
)

// UserMemory is the live, persisted memory of one user. All methods are safe
// for concurrent use; each mutation and its write happen under one lock.
type UserMemory struct {
	mu       sync.Mutex
	userID   string
	userName string
	rec      *Record
	store    Store
	now      func() time.Time
}

func newUserMemory(userID, userName string, rec *Record, store Store, now func() time.Time) *UserMemory {
	rec.normalize()
	return &UserMemory{
		userID:   userID,
		userName: userName,
		rec:      rec,
		store:    store,
		now:      now,
	}
}

// UserID returns the normalized storage key.
func (m *UserMemory) UserID() string { return m.userID }

// UserName returns the display name the memory was opened with.
func (m *UserMemory) UserName() string { return m.userName }

// ConversationCount returns the number of sessions started so far.
func (m *UserMemory) ConversationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.ConversationCount
}

// Snapshot returns a deep copy of the current record.
func (m *UserMemory) Snapshot() Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.clone()
}

// AddFamilyMember adds a family member, or updates the relation (and the
// details, when non-empty) of an existing member with the same name,
// compared case-insensitively.
func (m *UserMemory) AddFamilyMember(ctx context.Context, name, relation, details string) error {
	return m.update(ctx, func(rec *Record) bool {
		family := rec.Profile.FamilyMembers
		for i := range family {
			if strings.EqualFold(family[i].Name, name) {
				family[i].Relation = relation
				if details != "" {
					family[i].Details = details
				}
				return true
			}
		}
		rec.Profile.FamilyMembers = append(family, FamilyMember{Name: name, Relation: relation, Details: details})
		return true
	})
}

// AddInterest appends an interest unless an equal one (case-insensitive) is
// already known. A duplicate is a no-op and does not write.
func (m *UserMemory) AddInterest(ctx context.Context, interest string) error {
	return m.update(ctx, func(rec *Record) bool {
		for _, existing := range rec.Profile.Interests {
			if strings.EqualFold(existing, interest) {
				return false
			}
		}
		rec.Profile.Interests = append(rec.Profile.Interests, interest)
		return true
	})
}

// AddHealthNote appends a health note, keeping the last MaxHealthNotes.
func (m *UserMemory) AddHealthNote(ctx context.Context, note string) error {
	return m.update(ctx, func(rec *Record) bool {
		rec.Profile.HealthNotes = keepLast(append(rec.Profile.HealthNotes, note), MaxHealthNotes)
		return true
	})
}

// AddRecentTopic appends a topic, keeping the last MaxRecentTopics.
func (m *UserMemory) AddRecentTopic(ctx context.Context, topic string) error {
	return m.update(ctx, func(rec *Record) bool {
		rec.RecentTopics = keepLast(append(rec.RecentTopics, topic), MaxRecentTopics)
		return true
	})
}

// AddStory records a story summary dated now, keeping the last MaxStories.
func (m *UserMemory) AddStory(ctx context.Context, summary string) error {
	return m.update(ctx, func(rec *Record) bool {
		story := Story{Summary: summary, Date: NewTimestamp(m.now())}
		rec.Stories = keepLast(append(rec.Stories, story), MaxStories)
		return true
	})
}

// IncrementConversation counts a new session.
func (m *UserMemory) IncrementConversation(ctx context.Context) error {
	return m.update(ctx, func(rec *Record) bool {
		rec.ConversationCount++
		return true
	})
}

// ContextSummary renders the record as prompt context. Sections without data
// are omitted.
func (m *UserMemory) ContextSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := []string{"User's name: " + m.userName}

	if family := m.rec.Profile.FamilyMembers; len(family) > 0 {
		parts := make([]string, 0, 5)
		for _, fm := range first(family, 5) {
			entry := fmt.Sprintf("%s (%s)", fm.Name, fm.Relation)
			if fm.Details != "" {
				entry += " - " + fm.Details
			}
			parts = append(parts, entry)
		}
		lines = append(lines, "Family: "+strings.Join(parts, ", "))
	}
	if notes := m.rec.Profile.HealthNotes; len(notes) > 0 {
		lines = append(lines, "Health notes: "+strings.Join(last(notes, 3), "; "))
	}
	if interests := m.rec.Profile.Interests; len(interests) > 0 {
		lines = append(lines, "Interests: "+strings.Join(first(interests, 5), ", "))
	}
	if topics := m.rec.RecentTopics; len(topics) > 0 {
		lines = append(lines, "Recent conversation topics: "+strings.Join(last(topics, 3), ", "))
	}
	if n := m.rec.ConversationCount; n > 0 {
		lines = append(lines, fmt.Sprintf("You've had %d conversations with %s", n, m.userName))
	}

	return strings.Join(lines, "\n")
}

// update applies mutate to a copy of the record and writes it. The live
// record is replaced only when the write succeeds, so a failed call can be
// retried without applying the change twice. A mutate that reports no change
// skips the write.
func (m *UserMemory) update(ctx context.Context, mutate func(rec *Record) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.rec.clone()
	if !mutate(&next) {
		return nil
	}
	ts := NewTimestamp(m.now())
	next.LastConversation = &ts

	err := m.store.Save(ctx, m.userID, &next)
	metrics.RecordMemoryWrite(m.store.Name(), err)
	if err != nil {
		return fmt.Errorf("persist memory for %s: %w", m.userID, err)
	}
	m.rec = &next
	return nil
}

func first[T any](list []T, n int) []T {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func last[T any](list []T, n int) []T {
	if len(list) > n {
		return list[len(list)-n:]
	}
	return list
}
