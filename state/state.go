package state

import "errors"

// Stage 表示房间当前所处的游戏阶段
type Stage int

const (
	// Waiting: players vote to start the game.
	Waiting Stage = iota
	// StoryInput: the moderator authors the story to estimate.
	StoryInput
	// Thinking: players select their estimate cards.
	Thinking
	// Reveal: cards are face up.
	Reveal
	// Discussion: the team discusses the estimates.
	Discussion
)

// ErrTransitionNotAllowed is returned when a stage transition is not allowed.
var ErrTransitionNotAllowed = errors.New("stage transition not allowed")

func (s Stage) String() string {
	switch s {
	case Waiting:
		return "WAITING"
	case StoryInput:
		return "STORY_INPUT"
	case Thinking:
		return "THINKING"
	case Reveal:
		return "REVEAL"
	case Discussion:
		return "DISCUSSION"
	default:
		return "UNKNOWN"
	}
}

// legal enumerates every allowed edge of the stage graph.
// Waiting is also reachable from StoryInput: when the moderator disconnects
// mid-authoring the room falls back to Waiting, since no one else may author.
var legal = map[Stage][]Stage{
	Waiting:    {StoryInput},
	StoryInput: {Thinking, Waiting},
	Thinking:   {Reveal},
	Reveal:     {Discussion},
	Discussion: {StoryInput},
}

// CanTransition reports whether moving from one stage to another is allowed.
func CanTransition(from, to Stage) bool {
	for _, next := range legal[from] {
		if next == to {
			return true
		}
	}
	return false
}
