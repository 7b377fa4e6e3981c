package room

import (
	"math/rand"
)

// selectRandomModeratorLocked draws a moderator uniformly from the current
// members. Used for the WAITING -> STORY_INPUT handoff.
func (r *Room) selectRandomModeratorLocked() string {
	return r.order[rand.Intn(len(r.order))]
}

// advanceModeratorLocked moves the moderator role to its circular successor
// in the current join order. The ring is computed fresh each time, so members
// who came or went since the last rotation cannot desynchronize it. If the
// current moderator is no longer a member, fall back to a random pick.
func (r *Room) advanceModeratorLocked() {
	if len(r.order) == 0 {
		return
	}

	idx := -1
	for i, id := range r.order {
		if id == r.moderatorID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.moderatorID = r.selectRandomModeratorLocked()
		return
	}
	r.moderatorID = r.order[(idx+1)%len(r.order)]
}
