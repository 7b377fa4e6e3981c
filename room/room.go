// room/room.go
package room

import (
	"sync"
	"time"

	"github.com/Rabder/Planning-Poker/logger"
	"github.com/Rabder/Planning-Poker/state"
	"github.com/Rabder/Planning-Poker/timer"
)

// Story 是当前估算的用户故事
type Story struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Player is one connected member of a Room. ID is the connection identifier
// and is unique within the room for the life of the connection.
type Player struct {
	ID           string
	Name         string
	Vote         string // empty until the player selects a card
	ReadyToStart bool   // meaningful only in WAITING
}

// Room 是一局估算会话的核心结构
//
// All fields below mutex are guarded by it. Every action, including timer
// callbacks, locks the room before touching state, so at most one action is
// ever applied to a room at a time.
type Room struct {
	ID string

	mutex     sync.Mutex
	destroyed bool

	stage        state.Stage
	revealed     bool
	members      map[string]*Player
	order        []string // join order; doubles as the moderator ring
	currentStory *Story
	moderatorID  string
	readyPlayers map[string]struct{}

	countdown    *countdown
	countdownGen uint64
}

func newRoom(id string) *Room {
	return &Room{
		ID:           id,
		stage:        state.Waiting,
		members:      make(map[string]*Player),
		readyPlayers: make(map[string]struct{}),
	}
}

// memberIDsLocked returns member ids in join order.
func (r *Room) memberIDsLocked() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

func (r *Room) removeFromOrderLocked(sessionID string) {
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *Room) allReadyToStartLocked() bool {
	for _, p := range r.members {
		if !p.ReadyToStart {
			return false
		}
	}
	return true
}

func (r *Room) allVotedLocked() bool {
	for _, p := range r.members {
		if p.Vote == "" {
			return false
		}
	}
	return true
}

func (r *Room) allReadyLocked() bool {
	return len(r.readyPlayers) == len(r.members)
}

// --- 房间管理器 ---

// Manager owns the registry of live rooms and applies every action against
// them. The registry lock only covers create/lookup/delete; all room state
// mutation happens under the room's own lock.
type Manager struct {
	mutex sync.RWMutex
	rooms map[string]*Room

	timers      *timer.TimerManager
	broadcaster Broadcaster
	history     HistoryRecorder

	window time.Duration // countdown length
	tick   time.Duration // countdown re-broadcast period
}

// NewManager creates a room manager. history may be nil when round archiving
// is disabled.
func NewManager(broadcaster Broadcaster, timers *timer.TimerManager, window, tick time.Duration, history HistoryRecorder) *Manager {
	return &Manager{
		rooms:       make(map[string]*Room),
		timers:      timers,
		broadcaster: broadcaster,
		history:     history,
		window:      window,
		tick:        tick,
	}
}

func (m *Manager) getOrCreate(roomID string) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if r, exists := m.rooms[roomID]; exists {
		return r
	}
	r := newRoom(roomID)
	m.rooms[roomID] = r
	logger.Log.Infof("Created new room: %s", roomID)
	return r
}

// withRoom runs fn with exclusive access to the room. Unknown room codes and
// rooms destroyed between lookup and lock are silent no-ops.
func (m *Manager) withRoom(roomID string, fn func(r *Room)) {
	m.mutex.RLock()
	r, exists := m.rooms[roomID]
	m.mutex.RUnlock()
	if !exists {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.destroyed {
		return
	}
	fn(r)
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Snapshot projects a room into its broadcast view, for the RPC surface.
func (m *Manager) Snapshot(roomID string) (*View, bool) {
	var view *View
	m.withRoom(roomID, func(r *Room) {
		view = r.snapshotLocked(m.window)
	})
	if view == nil {
		return nil, false
	}
	return view, true
}

// destroyLocked tears the room down: cancels any armed countdown so no timer
// fires into a recycled room code, and removes it from the registry. Caller
// holds the room lock.
func (m *Manager) destroyLocked(r *Room) {
	m.cancelCountdownLocked(r)
	r.destroyed = true

	m.mutex.Lock()
	delete(m.rooms, r.ID)
	m.mutex.Unlock()

	logger.Log.Infof("Room %s deleted (empty)", r.ID)
}

// --- 玩家动作 ---

// Join adds the session to the room, creating the room on first join. A
// rejoin with a known session id updates the name in place.
func (m *Manager) Join(sessionID, roomID, name string) {
	for {
		r := m.getOrCreate(roomID)
		r.mutex.Lock()
		if r.destroyed {
			// lost a race with the last member leaving; the code now maps
			// to a fresh room
			r.mutex.Unlock()
			continue
		}

		if p, exists := r.members[sessionID]; exists {
			p.Name = name
		} else {
			r.members[sessionID] = &Player{ID: sessionID, Name: name}
			r.order = append(r.order, sessionID)
		}
		logger.Log.Infof("%s joined room %s", name, roomID)

		m.broadcastLocked(r)
		r.mutex.Unlock()
		return
	}
}

// VoteToStart marks the caller ready to begin. When the last member agrees,
// a moderator is drawn at random and the room moves to STORY_INPUT.
func (m *Manager) VoteToStart(sessionID, roomID string) {
	m.withRoom(roomID, func(r *Room) {
		if r.stage != state.Waiting {
			logger.Log.Debugf("vote-to-start ignored in room %s: stage is %s", roomID, r.stage)
			return
		}
		p, exists := r.members[sessionID]
		if !exists {
			return
		}

		p.ReadyToStart = true
		r.readyPlayers[sessionID] = struct{}{}

		if r.allReadyToStartLocked() {
			r.moderatorID = r.selectRandomModeratorLocked()
			logger.Log.Infof("Moderator in room %s is %s", roomID, r.moderatorID)
			m.transitionLocked(r, state.StoryInput)
		}
		m.broadcastLocked(r)
	})
}

// SubmitStory sets the story under estimation. Only the moderator may author
// it; anyone else is dropped and logged.
func (m *Manager) SubmitStory(sessionID, roomID, name, description string) {
	m.withRoom(roomID, func(r *Room) {
		if r.stage != state.StoryInput || sessionID != r.moderatorID {
			logger.Log.Infof("Could not validate moderator in %s", roomID)
			return
		}

		r.currentStory = &Story{Name: name, Description: description}
		m.transitionLocked(r, state.Thinking)
		logger.Log.Infof("Story submitted in room %s", roomID)
		m.broadcastLocked(r)
	})
}

// SelectCard records the caller's estimate. Resubmission overwrites. Once
// every member holds a vote the reveal countdown is (re)armed; the window
// always runs to completion, there is no early reveal.
func (m *Manager) SelectCard(sessionID, roomID, vote string) {
	m.withRoom(roomID, func(r *Room) {
		if r.stage != state.Thinking {
			return
		}
		p, exists := r.members[sessionID]
		if !exists || vote == "" {
			return
		}

		p.Vote = vote

		if r.allVotedLocked() {
			m.startCountdownLocked(r)
		}
		m.broadcastLocked(r)
	})
}

// PlayerReady acknowledges the current stage. All-ready in REVEAL moves to
// DISCUSSION; all-ready in DISCUSSION rotates the moderator and starts the
// next round at STORY_INPUT.
func (m *Manager) PlayerReady(sessionID, roomID string) {
	m.withRoom(roomID, func(r *Room) {
		if r.stage != state.Reveal && r.stage != state.Discussion {
			return
		}
		if _, exists := r.members[sessionID]; !exists {
			return
		}

		r.readyPlayers[sessionID] = struct{}{}

		if r.allReadyLocked() {
			switch r.stage {
			case state.Reveal:
				m.finishRoundLocked(r)
				m.transitionLocked(r, state.Discussion)
			case state.Discussion:
				r.advanceModeratorLocked()
				m.transitionLocked(r, state.StoryInput)
			}
		}
		m.broadcastLocked(r)
	})
}

// Disconnect removes the session from the room. It is never rejected. The
// moderator role is restored synchronously, completion conditions are
// re-evaluated against the remaining members, and an emptied room is
// destroyed before any further processing.
func (m *Manager) Disconnect(sessionID, roomID string) {
	m.withRoom(roomID, func(r *Room) {
		if _, exists := r.members[sessionID]; !exists {
			return
		}

		wasModerator := sessionID == r.moderatorID
		rotated := false

		// Reassign while the leaver is still in the ring so the role lands
		// on its true circular successor.
		if wasModerator && r.stage != state.StoryInput && len(r.members) > 1 {
			r.advanceModeratorLocked()
			rotated = true
		}

		delete(r.members, sessionID)
		r.removeFromOrderLocked(sessionID)
		delete(r.readyPlayers, sessionID)
		logger.Log.Infof("Player %s removed from room %s", sessionID, roomID)

		if len(r.members) == 0 {
			m.destroyLocked(r)
			return
		}

		if wasModerator && r.stage == state.StoryInput {
			// the in-progress story is abandoned; no one else may author it
			logger.Log.Infof("Moderator disconnected, restarting game in room %s", roomID)
			m.transitionLocked(r, state.Waiting)
		}

		// Removing a member can make a previously incomplete set complete.
		switch {
		case r.stage == state.Waiting && r.allReadyToStartLocked():
			r.moderatorID = r.selectRandomModeratorLocked()
			m.transitionLocked(r, state.StoryInput)
		case r.stage == state.Reveal && r.allReadyLocked():
			m.finishRoundLocked(r)
			m.transitionLocked(r, state.Discussion)
		case r.stage == state.Discussion && r.allReadyLocked():
			// if the role already moved because the moderator left, that
			// was this round's rotation
			if !rotated {
				r.advanceModeratorLocked()
			}
			m.transitionLocked(r, state.StoryInput)
		case r.stage == state.Thinking && r.allVotedLocked():
			m.startCountdownLocked(r)
		}

		m.broadcastLocked(r)
	})
}

// finishRoundLocked hands the completed round to the history recorder.
// Snapshots are copied under the lock; the write itself runs detached.
func (m *Manager) finishRoundLocked(r *Room) {
	if m.history == nil || r.currentStory == nil {
		return
	}

	story := *r.currentStory
	votes := make(map[string]string, len(r.members))
	for _, p := range r.members {
		if p.Vote != "" {
			votes[p.Name] = p.Vote
		}
	}
	go m.history.RecordRound(r.ID, story, votes)
}
