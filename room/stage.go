package room

import (
	"encoding/json"

	"github.com/Rabder/Planning-Poker/logger"
	"github.com/Rabder/Planning-Poker/network"
	"github.com/Rabder/Planning-Poker/state"
)

// transitionLocked is the single place a room changes stage. It applies the
// stage's entry effects atomically under the room lock; no caller can
// observe the room between the stage change and its effects. Any armed
// countdown is cancelled first so a stale expiry can never fire into the new
// stage. Callers broadcast afterwards.
func (m *Manager) transitionLocked(r *Room, to state.Stage) {
	from := r.stage
	if !state.CanTransition(from, to) {
		logger.Log.Errorf("Room %s: illegal stage transition %s -> %s", r.ID, from, to)
		return
	}

	m.cancelCountdownLocked(r)
	r.stage = to

	switch to {
	case state.Waiting:
		r.moderatorID = ""
		r.readyPlayers = make(map[string]struct{})
		for _, p := range r.members {
			p.ReadyToStart = false
		}
	case state.StoryInput:
		r.readyPlayers = make(map[string]struct{})
		r.currentStory = nil
		r.revealed = false
		for _, p := range r.members {
			p.Vote = ""
		}
	case state.Thinking:
		for _, p := range r.members {
			p.Vote = ""
		}
	case state.Reveal:
		r.revealed = true
		r.readyPlayers = make(map[string]struct{})
	case state.Discussion:
		r.readyPlayers = make(map[string]struct{})
	}

	logger.Log.Infof("Room %s: %s -> %s", r.ID, from, to)
}

// broadcastLocked projects the room and fans the view out to every member.
// This is the only externally observable snapshot of room state.
func (m *Manager) broadcastLocked(r *Room) {
	view := r.snapshotLocked(m.window)
	data, err := json.Marshal(view)
	if err != nil {
		logger.Log.Errorf("Room %s: failed to marshal room update: %v", r.ID, err)
		return
	}

	if err := m.broadcaster.BroadcastToRoom(r.ID, r.memberIDsLocked(), network.MsgTypeRoomUpdate, data); err != nil {
		logger.Log.Warnf("Room %s: broadcast failed: %v", r.ID, err)
	}
}
