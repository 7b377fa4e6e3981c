package room

import (
	"time"
)

// PlayerView is one member as seen by clients.
type PlayerView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Vote         string `json:"vote,omitempty"`
	ReadyToStart bool   `json:"readyToStart"`
	Ready        bool   `json:"ready"`
}

// View is the room-update payload, the system's only externally observable
// state snapshot. Clients derive the entire UI from it.
type View struct {
	Players            []PlayerView `json:"players"`
	GameStage          string       `json:"gameStage"`
	CurrentStory       *Story       `json:"currentStory,omitempty"`
	ModeratorID        string       `json:"moderatorId,omitempty"`
	ReadyPlayers       []string     `json:"readyPlayers"`
	Revealed           bool         `json:"revealed"`
	CountdownRemaining *int         `json:"countdownRemaining,omitempty"`
}

// snapshotLocked projects the room into its broadcast view. Members are
// listed in join order, so the ordering is stable across broadcasts and
// clients can diff updates.
func (r *Room) snapshotLocked(window time.Duration) *View {
	players := make([]PlayerView, 0, len(r.order))
	ready := make([]string, 0, len(r.readyPlayers))

	for _, id := range r.order {
		p := r.members[id]
		_, isReady := r.readyPlayers[id]
		players = append(players, PlayerView{
			ID:           p.ID,
			Name:         p.Name,
			Vote:         p.Vote,
			ReadyToStart: p.ReadyToStart,
			Ready:        isReady,
		})
		if isReady {
			ready = append(ready, id)
		}
	}

	return &View{
		Players:            players,
		GameStage:          r.stage.String(),
		CurrentStory:       r.currentStory,
		ModeratorID:        r.moderatorID,
		ReadyPlayers:       ready,
		Revealed:           r.revealed,
		CountdownRemaining: r.remainingLocked(window),
	}
}
