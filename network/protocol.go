package network

// Message ids for the planning poker protocol. Payloads are JSON.
const (
	MsgTypeHeartbeat = 1
	MsgTypeWelcome   = 2

	MsgTypeJoinRoom    = 101
	MsgTypeVoteToStart = 102
	MsgTypeSubmitStory = 103
	MsgTypeSelectCard  = 104
	MsgTypePlayerReady = 105

	MsgTypeRoomUpdate = 301
)
