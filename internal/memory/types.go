package memory

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// List bounds.
const (
	MaxHealthNotes  = 10
	MaxStories      = 20
	MaxRecentTopics = 5
)

// Timestamp is a time that serializes as RFC 3339. It also accepts the naive
// ISO 8601 form (no zone) written by earlier versions of the service, which
// is read as local time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// FamilyMember is someone the user has talked about.
type FamilyMember struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
	Details  string `json:"details"`
}

// ImportantDate is reserved for anniversaries and birthdays.
type ImportantDate struct {
	Date  string `json:"date"`
	Event string `json:"event"`
}

// Profile holds the structured facts about a user.
type Profile struct {
	FamilyMembers  []FamilyMember  `json:"family_members"`
	HealthNotes    []string        `json:"health_notes"`
	Interests      []string        `json:"interests"`
	ImportantDates []ImportantDate `json:"important_dates"`
	Location       *string         `json:"location"`
	Occupation     *string         `json:"occupation"`
}

// Story is a significant memory the user shared.
type Story struct {
	Summary string    `json:"summary"`
	Date    Timestamp `json:"date"`
}

// Record is the persisted memory of one user.
type Record struct {
	UserName          string     `json:"user_name"`
	CreatedAt         Timestamp  `json:"created_at"`
	LastConversation  *Timestamp `json:"last_conversation"`
	Profile           Profile    `json:"profile"`
	Stories           []Story    `json:"stories"`
	RecentTopics      []string   `json:"recent_topics"`
	ConversationCount int        `json:"conversation_count"`
}

// NewRecord returns a fully initialized empty record.
func NewRecord(userName string, now time.Time) *Record {
	r := &Record{
		UserName:  userName,
		CreatedAt: NewTimestamp(now),
	}
	r.normalize()
	return r
}

// normalize replaces nil lists so the stored form never carries nulls.
func (r *Record) normalize() {
	if r.Profile.FamilyMembers == nil {
		r.Profile.FamilyMembers = []FamilyMember{}
	}
	if r.Profile.HealthNotes == nil {
		r.Profile.HealthNotes = []string{}
	}
	if r.Profile.Interests == nil {
		r.Profile.Interests = []string{}
	}
	if r.Profile.ImportantDates == nil {
		r.Profile.ImportantDates = []ImportantDate{}
	}
	if r.Stories == nil {
		r.Stories = []Story{}
	}
	if r.RecentTopics == nil {
		r.RecentTopics = []string{}
	}
}

// clone returns a deep copy of r.
func (r *Record) clone() Record {
	out := *r
	out.Profile.FamilyMembers = append([]FamilyMember{}, r.Profile.FamilyMembers...)
	out.Profile.HealthNotes = append([]string{}, r.Profile.HealthNotes...)
	out.Profile.Interests = append([]string{}, r.Profile.Interests...)
	out.Profile.ImportantDates = append([]ImportantDate{}, r.Profile.ImportantDates...)
	out.Stories = append([]Story{}, r.Stories...)
	out.RecentTopics = append([]string{}, r.RecentTopics...)
	if r.LastConversation != nil {
		ts := *r.LastConversation
		out.LastConversation = &ts
	}
	if r.Profile.Location != nil {
		v := *r.Profile.Location
		out.Profile.Location = &v
	}
	if r.Profile.Occupation != nil {
		v := *r.Profile.Occupation
		out.Profile.Occupation = &v
	}
	return out
}

// NormalizeUserID derives the storage key for a display name: lower-cased,
// spaces replaced by underscores.
func NormalizeUserID(userName string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(userName)), " ", "_")
}

// ValidUserID reports whether id is safe to use as a storage key.
func ValidUserID(id string) bool {
	if id == "" || id == "." || id == ".." || len(id) > 200 {
		return false
	}
	return !strings.ContainsAny(id, "/\\\x00")
}

// keepLast trims list to its last n elements, preserving order.
func keepLast[T any](list []T, n int) []T {
	if len(list) <= n {
		return list
	}
	return append(list[:0:0], list[len(list)-n:]...)
}
