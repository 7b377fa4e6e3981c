package room

// Broadcaster delivers a message to a set of connected members. It is
// defined here to break the import cycle between room and broadcast.
// Member ids are captured under the room's lock and passed in, so the
// implementation never has to reach back into room state.
type Broadcaster interface {
	BroadcastToRoom(roomID string, memberIDs []string, msgID uint16, data []byte) error
}

// HistoryRecorder archives a completed estimation round. Implementations
// must be safe to call from multiple goroutines; the room never blocks on it.
type HistoryRecorder interface {
	RecordRound(roomID string, story Story, votes map[string]string)
}
