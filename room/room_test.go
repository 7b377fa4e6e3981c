package room

import (
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Rabder/Planning-Poker/logger"
	"github.com/Rabder/Planning-Poker/state"
	"github.com/Rabder/Planning-Poker/timer"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// mockBroadcaster records every broadcast for inspection.
type mockBroadcaster struct {
	mutex sync.Mutex
	calls []broadcastCall
}

type broadcastCall struct {
	roomID    string
	memberIDs []string
	msgID     uint16
	data      []byte
}

func (b *mockBroadcaster) BroadcastToRoom(roomID string, memberIDs []string, msgID uint16, data []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.calls = append(b.calls, broadcastCall{roomID, memberIDs, msgID, data})
	return nil
}

func (b *mockBroadcaster) count() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.calls)
}

func (b *mockBroadcaster) lastView(t *testing.T) *View {
	t.Helper()
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if len(b.calls) == 0 {
		t.Fatal("No broadcasts recorded")
	}
	var view View
	if err := json.Unmarshal(b.calls[len(b.calls)-1].data, &view); err != nil {
		t.Fatalf("Failed to decode broadcast view: %v", err)
	}
	return &view
}

const testWindow = 200 * time.Millisecond

func newTestManager(t *testing.T) (*Manager, *mockBroadcaster) {
	t.Helper()
	broadcaster := &mockBroadcaster{}
	timers := timer.NewTimerManager()
	t.Cleanup(timers.Stop)
	return NewManager(broadcaster, timers, testWindow, 100*time.Millisecond, nil), broadcaster
}

// getRoom fetches a room straight from the registry for assertions.
func getRoom(t *testing.T, m *Manager, roomID string) *Room {
	t.Helper()
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r, exists := m.rooms[roomID]
	if !exists {
		t.Fatalf("Room %s not found in registry", roomID)
	}
	return r
}

func (r *Room) stageForTest() state.Stage {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.stage
}

func (r *Room) moderatorForTest() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.moderatorID
}

func joinThree(t *testing.T, m *Manager, roomID string) {
	t.Helper()
	m.Join("A", roomID, "Alice")
	m.Join("B", roomID, "Bob")
	m.Join("C", roomID, "Carol")
}

func startGame(t *testing.T, m *Manager, roomID string) *Room {
	t.Helper()
	joinThree(t, m, roomID)
	m.VoteToStart("A", roomID)
	m.VoteToStart("B", roomID)
	m.VoteToStart("C", roomID)
	r := getRoom(t, m, roomID)
	if got := r.stageForTest(); got != state.StoryInput {
		t.Fatalf("Setup failed: expected stage STORY_INPUT, got %s", got)
	}
	return r
}

func submitStoryAsModerator(t *testing.T, m *Manager, r *Room) string {
	t.Helper()
	mod := r.moderatorForTest()
	m.SubmitStory(mod, r.ID, "Login", "As a user...")
	if got := r.stageForTest(); got != state.Thinking {
		t.Fatalf("Setup failed: expected stage THINKING after story, got %s", got)
	}
	return mod
}

func TestJoinCreatesRoom(t *testing.T) {
	m, broadcaster := newTestManager(t)

	m.Join("A", "R1", "Alice")

	r := getRoom(t, m, "R1")
	if got := r.stageForTest(); got != state.Waiting {
		t.Errorf("Expected new room in WAITING, got %s", got)
	}
	if m.Count() != 1 {
		t.Errorf("Expected 1 room, got %d", m.Count())
	}
	view := broadcaster.lastView(t)
	if len(view.Players) != 1 || view.Players[0].Name != "Alice" {
		t.Errorf("Broadcast should list the joined player, got %+v", view.Players)
	}
	if view.ModeratorID != "" {
		t.Errorf("Moderator must be absent in WAITING, got %s", view.ModeratorID)
	}
}

func TestJoinUpsertsExistingSession(t *testing.T) {
	m, _ := newTestManager(t)

	m.Join("A", "R1", "Alice")
	m.Join("A", "R1", "Alicia")

	r := getRoom(t, m, "R1")
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if len(r.members) != 1 {
		t.Fatalf("Reconnect must not duplicate the member, got %d members", len(r.members))
	}
	if len(r.order) != 1 {
		t.Fatalf("Reconnect must not duplicate the ring entry, got %d", len(r.order))
	}
	if r.members["A"].Name != "Alicia" {
		t.Errorf("Reconnect should update the name, got %s", r.members["A"].Name)
	}
}

func TestVoteToStartTransitionsWhenAllReady(t *testing.T) {
	m, broadcaster := newTestManager(t)
	joinThree(t, m, "R1")
	r := getRoom(t, m, "R1")

	m.VoteToStart("A", "R1")
	m.VoteToStart("B", "R1")
	if got := r.stageForTest(); got != state.Waiting {
		t.Fatalf("Stage must stay WAITING until everyone is ready, got %s", got)
	}

	m.VoteToStart("C", "R1")
	if got := r.stageForTest(); got != state.StoryInput {
		t.Fatalf("Expected STORY_INPUT after all voted to start, got %s", got)
	}

	mod := r.moderatorForTest()
	if mod != "A" && mod != "B" && mod != "C" {
		t.Errorf("Moderator must be one of the members, got %q", mod)
	}

	view := broadcaster.lastView(t)
	if len(view.ReadyPlayers) != 0 {
		t.Errorf("Ready set must be cleared entering STORY_INPUT, got %v", view.ReadyPlayers)
	}
}

func TestVoteToStartIgnoredOutsideWaiting(t *testing.T) {
	m, _ := newTestManager(t)
	r := startGame(t, m, "R1")

	m.VoteToStart("A", "R1")

	if got := r.stageForTest(); got != state.StoryInput {
		t.Errorf("vote-to-start outside WAITING must be a no-op, stage is %s", got)
	}
}

func TestActionsOnUnknownRoomAreNoOps(t *testing.T) {
	m, broadcaster := newTestManager(t)

	m.VoteToStart("A", "nope")
	m.SubmitStory("A", "nope", "x", "y")
	m.SelectCard("A", "nope", "5")
	m.PlayerReady("A", "nope")
	m.Disconnect("A", "nope")

	if m.Count() != 0 {
		t.Errorf("Non-join actions must not create rooms, got %d", m.Count())
	}
	if broadcaster.count() != 0 {
		t.Errorf("No broadcast expected for unknown rooms, got %d", broadcaster.count())
	}
}

func TestSubmitStoryRequiresModerator(t *testing.T) {
	m, _ := newTestManager(t)
	r := startGame(t, m, "R1")
	mod := r.moderatorForTest()

	other := "A"
	if other == mod {
		other = "B"
	}

	m.SubmitStory(other, "R1", "Login", "As a user...")
	if got := r.stageForTest(); got != state.StoryInput {
		t.Fatalf("Non-moderator story must be dropped, stage is %s", got)
	}

	m.SubmitStory(mod, "R1", "Login", "As a user...")
	if got := r.stageForTest(); got != state.Thinking {
		t.Fatalf("Expected THINKING after moderator story, got %s", got)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.currentStory == nil || r.currentStory.Name != "Login" {
		t.Errorf("Story not recorded: %+v", r.currentStory)
	}
	for id, p := range r.members {
		if p.Vote != "" {
			t.Errorf("Votes must be cleared entering THINKING, %s has %q", id, p.Vote)
		}
	}
}

func TestSelectCardOverwritesAndDefersCountdown(t *testing.T) {
	m, _ := newTestManager(t)
	r := startGame(t, m, "R1")
	submitStoryAsModerator(t, m, r)

	m.SelectCard("A", "R1", "3")
	m.SelectCard("A", "R1", "8")

	r.mutex.Lock()
	if r.members["A"].Vote != "8" {
		t.Errorf("Resubmission must overwrite, got %q", r.members["A"].Vote)
	}
	if r.countdown != nil {
		t.Error("Countdown must not start before all members voted")
	}
	r.mutex.Unlock()

	if got := r.stageForTest(); got != state.Thinking {
		t.Errorf("Partial votes must not transition, stage is %s", got)
	}
}

func TestAllVotedStartsCountdownThenReveals(t *testing.T) {
	m, _ := newTestManager(t)
	r := startGame(t, m, "R1")
	submitStoryAsModerator(t, m, r)

	m.SelectCard("A", "R1", "3")
	m.SelectCard("B", "R1", "5")
	m.SelectCard("C", "R1", "3")

	r.mutex.Lock()
	if r.countdown == nil {
		t.Fatal("Countdown must be armed once all members voted")
	}
	r.mutex.Unlock()

	if got := r.stageForTest(); got != state.Thinking {
		t.Fatalf("The fixed window must run to completion, stage is %s", got)
	}

	// let the real timer expire
	time.Sleep(testWindow + 300*time.Millisecond)

	if got := r.stageForTest(); got != state.Reveal {
		t.Fatalf("Expected REVEAL after the window elapsed, got %s", got)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.countdown != nil {
		t.Error("Countdown must be cleared after expiry")
	}
	if r.members["A"].Vote != "3" || r.members["B"].Vote != "5" || r.members["C"].Vote != "3" {
		t.Error("Votes must survive the reveal transition")
	}
}

func TestCountdownExpiryIsSingleShot(t *testing.T) {
	m, _ := newTestManager(t)
	r := startGame(t, m, "R1")
	submitStoryAsModerator(t, m, r)

	m.SelectCard("A", "R1", "3")
	m.SelectCard("B", "R1", "5")
	m.SelectCard("C", "R1", "3")

	r.mutex.Lock()
	gen := r.countdown.gen
	r.mutex.Unlock()

	m.onCountdownExpired("R1", gen)
	if got := r.stageForTest(); got != state.Reveal {
		t.Fatalf("Expected REVEAL after expiry, got %s", got)
	}

	// a duplicate or racing expiry must be a no-op
	m.onCountdownExpired("R1", gen)
	if got := r.stageForTest(); got != state.Reveal {
		t.Fatalf("Duplicate expiry double-transitioned the room to %s", got)
	}
}

func TestStaleCountdownGenerationIgnored(t *testing.T) {
	m, _ := newTestManager(t)
	r := startGame(t, m, "R1")
	submitStoryAsModerator(t, m, r)

	m.SelectCard("A", "R1", "3")
	m.SelectCard("B", "R1", "5")
	m.SelectCard("C", "R1", "3")

	r.mutex.Lock()
	staleGen := r.countdown.gen
	r.mutex.Unlock()

	// a re-vote while everyone has voted re-arms the window
	m.SelectCard("B", "R1", "8")

	m.onCountdownExpired("R1", staleGen)
	if got := r.stageForTest(); got != state.Thinking {
		t.Fatalf("Stale expiry must not transition, stage is %s", got)
	}
}

func TestFullEstimationCycle(t *testing.T) {
	m, broadcaster := newTestManager(t)
	r := startGame(t, m, "R1")

	firstMod := submitStoryAsModerator(t, m, r)

	m.SelectCard("A", "R1", "3")
	m.SelectCard("B", "R1", "5")
	m.SelectCard("C", "R1", "3")

	r.mutex.Lock()
	gen := r.countdown.gen
	r.mutex.Unlock()
	m.onCountdownExpired("R1", gen)

	if got := r.stageForTest(); got != state.Reveal {
		t.Fatalf("Expected REVEAL, got %s", got)
	}
	view := broadcaster.lastView(t)
	votes := map[string]string{}
	for _, p := range view.Players {
		votes[p.ID] = p.Vote
	}
	if votes["A"] != "3" || votes["B"] != "5" || votes["C"] != "3" {
		t.Errorf("Votes must be visible as submitted, got %v", votes)
	}

	m.PlayerReady("A", "R1")
	m.PlayerReady("B", "R1")
	if got := r.stageForTest(); got != state.Reveal {
		t.Fatalf("Partial ready set must not advance, stage is %s", got)
	}
	m.PlayerReady("C", "R1")
	if got := r.stageForTest(); got != state.Discussion {
		t.Fatalf("Expected DISCUSSION once all ready, got %s", got)
	}

	m.PlayerReady("A", "R1")
	m.PlayerReady("B", "R1")
	m.PlayerReady("C", "R1")
	if got := r.stageForTest(); got != state.StoryInput {
		t.Fatalf("Expected STORY_INPUT for the next round, got %s", got)
	}

	// the moderator advanced to the ring successor
	ring := []string{"A", "B", "C"}
	var want string
	for i, id := range ring {
		if id == firstMod {
			want = ring[(i+1)%len(ring)]
		}
	}
	if got := r.moderatorForTest(); got != want {
		t.Errorf("Expected moderator to rotate %s -> %s, got %s", firstMod, want, got)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.currentStory != nil {
		t.Error("Story must be cleared entering STORY_INPUT")
	}
	for id, p := range r.members {
		if p.Vote != "" {
			t.Errorf("Votes must be cleared for the next round, %s has %q", id, p.Vote)
		}
	}
}

func TestReadySetAlwaysSubsetOfMembers(t *testing.T) {
	m, _ := newTestManager(t)
	r := startGame(t, m, "R1")
	submitStoryAsModerator(t, m, r)

	m.SelectCard("A", "R1", "3")
	m.SelectCard("B", "R1", "5")
	m.SelectCard("C", "R1", "3")

	r.mutex.Lock()
	gen := r.countdown.gen
	r.mutex.Unlock()
	m.onCountdownExpired("R1", gen)

	m.PlayerReady("A", "R1")
	m.Disconnect("A", "R1")

	r.mutex.Lock()
	defer r.mutex.Unlock()
	for id := range r.readyPlayers {
		if _, exists := r.members[id]; !exists {
			t.Errorf("readyPlayers contains non-member %s", id)
		}
	}
}
