package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserMemory_AddInterestDeduplicates(t *testing.T) {
	store := &countingStore{Store: newFileStore(t)}
	mem := openMemory(t, store, "Margaret")
	ctx := context.Background()

	require.NoError(t, mem.AddInterest(ctx, "Gardening"))
	require.NoError(t, mem.AddInterest(ctx, "gardening"))
	require.NoError(t, mem.AddInterest(ctx, "GARDENING"))

	assert.Equal(t, []string{"Gardening"}, mem.Snapshot().Profile.Interests)
	assert.Equal(t, 1, store.Saves(), "duplicates must not write")
}

func TestUserMemory_HealthNotesKeepLastTen(t *testing.T) {
	mem := openMemory(t, newFileStore(t), "Margaret")
	ctx := context.Background()

	for i := 1; i <= 11; i++ {
		require.NoError(t, mem.AddHealthNote(ctx, fmt.Sprintf("note %d", i)))
	}

	notes := mem.Snapshot().Profile.HealthNotes
	require.Len(t, notes, MaxHealthNotes)
	assert.Equal(t, "note 2", notes[0])
	assert.Equal(t, "note 11", notes[9])
}

func TestUserMemory_RecentTopicsKeepLastFive(t *testing.T) {
	mem := openMemory(t, newFileStore(t), "Margaret")
	ctx := context.Background()

	for _, topic := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, mem.AddRecentTopic(ctx, topic))
	}

	assert.Equal(t, []string{"b", "c", "d", "e", "f"}, mem.Snapshot().RecentTopics)
}

func TestUserMemory_StoriesBounded(t *testing.T) {
	mem := openMemory(t, newFileStore(t), "Margaret")
	ctx := context.Background()

	for i := 0; i < MaxStories+3; i++ {
		require.NoError(t, mem.AddStory(ctx, fmt.Sprintf("story %d", i)))
	}

	stories := mem.Snapshot().Stories
	require.Len(t, stories, MaxStories)
	assert.Equal(t, "story 3", stories[0].Summary)
	assert.True(t, stories[0].Date.Equal(testNow))
}

func TestUserMemory_FamilyMemberUpdate(t *testing.T) {
	mem := openMemory(t, newFileStore(t), "Margaret")
	ctx := context.Background()

	require.NoError(t, mem.AddFamilyMember(ctx, "Emma", "granddaughter", "loves painting"))
	require.NoError(t, mem.AddFamilyMember(ctx, "emma", "great-granddaughter", ""))

	family := mem.Snapshot().Profile.FamilyMembers
	require.Len(t, family, 1)
	assert.Equal(t, "Emma", family[0].Name)
	assert.Equal(t, "great-granddaughter", family[0].Relation)
	assert.Equal(t, "loves painting", family[0].Details)

	require.NoError(t, mem.AddFamilyMember(ctx, "Emma", "granddaughter", "started school"))
	family = mem.Snapshot().Profile.FamilyMembers
	assert.Equal(t, "started school", family[0].Details)
}

func TestUserMemory_IncrementConversationStampsRecord(t *testing.T) {
	mem := openMemory(t, newFileStore(t), "Margaret")

	require.NoError(t, mem.IncrementConversation(context.Background()))

	snap := mem.Snapshot()
	assert.Equal(t, 1, snap.ConversationCount)
	require.NotNil(t, snap.LastConversation)
	assert.True(t, snap.LastConversation.Equal(testNow))
}

func TestUserMemory_ContextSummaryFreshUser(t *testing.T) {
	mem := openMemory(t, newFileStore(t), "Margaret")

	assert.Equal(t, "User's name: Margaret", mem.ContextSummary())
}

func TestUserMemory_ContextSummary(t *testing.T) {
	mem := openMemory(t, newFileStore(t), "Margaret")
	ctx := context.Background()

	for i, name := range []string{"Emma", "Tom", "Lucy", "Sam", "Ann", "Joe"} {
		details := ""
		if i == 0 {
			details = "loves painting"
		}
		require.NoError(t, mem.AddFamilyMember(ctx, name, "grandchild", details))
	}
	for _, note := range []string{"bad knee", "new glasses", "sleeps poorly", "flu shot"} {
		require.NoError(t, mem.AddHealthNote(ctx, note))
	}
	for _, interest := range []string{"gardening", "baking", "birds", "jazz", "chess", "knitting"} {
		require.NoError(t, mem.AddInterest(ctx, interest))
	}
	for _, topic := range []string{"weather", "church", "roses", "soup"} {
		require.NoError(t, mem.AddRecentTopic(ctx, topic))
	}
	require.NoError(t, mem.IncrementConversation(ctx))
	require.NoError(t, mem.IncrementConversation(ctx))

	want := "User's name: Margaret\n" +
		"Family: Emma (grandchild) - loves painting, Tom (grandchild), Lucy (grandchild), Sam (grandchild), Ann (grandchild)\n" +
		"Health notes: new glasses; sleeps poorly; flu shot\n" +
		"Interests: gardening, baking, birds, jazz, chess\n" +
		"Recent conversation topics: church, roses, soup\n" +
		"You've had 2 conversations with Margaret"
	assert.Equal(t, want, mem.ContextSummary())
}

func TestUserMemory_PersistError(t *testing.T) {
	boom := errors.New("disk full")
	store := &countingStore{Store: newFileStore(t), saveErr: boom, failAt: 1}
	mem := openMemory(t, store, "Margaret")

	err := mem.AddHealthNote(context.Background(), "bad knee")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "margaret")
	assert.Empty(t, mem.Snapshot().Profile.HealthNotes)
	assert.Nil(t, mem.Snapshot().LastConversation)
}

func TestUserMemory_RetryAfterFailedSaveAppliesOnce(t *testing.T) {
	store := &countingStore{Store: newFileStore(t), failAt: 1}
	mem := openMemory(t, store, "Margaret")
	ctx := context.Background()

	store.setSaveErr(errors.New("not a directory"))
	require.Error(t, mem.IncrementConversation(ctx))
	assert.Equal(t, 0, mem.ConversationCount())

	store.setSaveErr(nil)
	require.NoError(t, mem.IncrementConversation(ctx))
	assert.Equal(t, 1, mem.ConversationCount())

	rec, err := NewRegistry(store.Store).Lookup(ctx, "margaret")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ConversationCount)
}

func TestUserMemory_SnapshotIsCopy(t *testing.T) {
	mem := openMemory(t, newFileStore(t), "Margaret")
	require.NoError(t, mem.AddInterest(context.Background(), "birds"))

	snap := mem.Snapshot()
	snap.Profile.Interests[0] = "changed"

	assert.Equal(t, []string{"birds"}, mem.Snapshot().Profile.Interests)
}
