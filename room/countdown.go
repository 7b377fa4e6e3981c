package room

import (
	"time"

	"github.com/Rabder/Planning-Poker/logger"
	"github.com/Rabder/Planning-Poker/state"
)

// countdown is the fixed window between all-voted and the forced reveal.
// Remaining time is always derived from startedAt, never decremented, so the
// broadcast value cannot drift. gen identifies this particular arming;
// callbacks carrying an older gen are stale and ignored.
type countdown struct {
	startedAt time.Time
	gen       uint64
	expireID  int64
	tickID    int64
}

// startCountdownLocked arms the reveal window. A previously armed countdown
// is cancelled first; there is at most one per room.
func (m *Manager) startCountdownLocked(r *Room) {
	m.cancelCountdownLocked(r)

	r.countdownGen++
	gen := r.countdownGen
	roomID := r.ID

	cd := &countdown{startedAt: time.Now(), gen: gen}
	cd.expireID = m.timers.AddTimer(m.window, 0, func() {
		m.onCountdownExpired(roomID, gen)
	})
	cd.tickID = m.timers.AddTimer(m.tick, m.tick, func() {
		m.onCountdownTick(roomID, gen)
	})
	r.countdown = cd

	logger.Log.Infof("Room %s: reveal countdown started (%v)", roomID, m.window)
}

func (m *Manager) cancelCountdownLocked(r *Room) {
	if r.countdown == nil {
		return
	}
	m.timers.RemoveTimer(r.countdown.expireID)
	m.timers.RemoveTimer(r.countdown.tickID)
	r.countdown = nil
}

// onCountdownExpired re-enters the state machine exactly like an external
// action: it takes the room lock and forces THINKING -> REVEAL. It does not
// re-check all-voted; the expiry always fires the transition. A last-vote
// racing this callback cannot double-transition because both run under the
// room lock and the loser sees either a newer gen or a cleared countdown.
func (m *Manager) onCountdownExpired(roomID string, gen uint64) {
	m.withRoom(roomID, func(r *Room) {
		if r.countdown == nil || r.countdown.gen != gen {
			return
		}
		if r.stage != state.Thinking {
			// transitions cancel the countdown, so this is unreachable in
			// the current flow; clear defensively rather than fire anyway
			m.cancelCountdownLocked(r)
			return
		}

		m.transitionLocked(r, state.Reveal)
		m.broadcastLocked(r)
	})
}

// onCountdownTick re-broadcasts the room each period so observers can render
// the remaining time.
func (m *Manager) onCountdownTick(roomID string, gen uint64) {
	m.withRoom(roomID, func(r *Room) {
		if r.countdown == nil || r.countdown.gen != gen {
			return
		}
		m.broadcastLocked(r)
	})
}

// remainingLocked reports whole seconds left in the window, clamped to
// [0, window]. Nil when no countdown is active.
func (r *Room) remainingLocked(window time.Duration) *int {
	if r.countdown == nil {
		return nil
	}

	total := int(window / time.Second)
	elapsed := int(time.Since(r.countdown.startedAt) / time.Second)
	remaining := total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	if remaining > total {
		remaining = total
	}
	return &remaining
}
