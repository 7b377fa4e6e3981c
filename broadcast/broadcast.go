// broadcast/broadcast.go
package broadcast

import (
	"github.com/Rabder/Planning-Poker/logger"
	"github.com/Rabder/Planning-Poker/monitor"
	"github.com/Rabder/Planning-Poker/session"
)

// RoomBroadcaster fans room updates out to the sessions behind a room's
// member ids. Implements room.Broadcaster.
type RoomBroadcaster struct {
	sessionManager *session.Manager
	monitor        *monitor.Monitor
}

// NewRoomBroadcaster creates a broadcaster. monitor may be nil.
func NewRoomBroadcaster(sessionManager *session.Manager, mon *monitor.Monitor) *RoomBroadcaster {
	return &RoomBroadcaster{sessionManager: sessionManager, monitor: mon}
}

// BroadcastToRoom sends the payload to every listed member. Members whose
// session vanished between the snapshot and the send are skipped: their
// disconnect action is already queued behind the room lock and will repair
// the member list.
func (b *RoomBroadcaster) BroadcastToRoom(roomID string, memberIDs []string, msgID uint16, data []byte) error {
	if b.monitor != nil {
		b.monitor.IncBroadcastsSent()
	}
	for _, id := range memberIDs {
		s, exists := b.sessionManager.Get(id)
		if !exists {
			continue
		}
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Warnf("Room %s: send to session %s failed: %v", roomID, id, err)
			continue
		}
	}
	return nil
}
