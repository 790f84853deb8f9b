package review

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/tribunal/internal/tools"
)

// State is the cross-round memory of one review session. Only the
// Coordinator appends to it, and only between rounds.
type State struct {
	ID             string     `json:"id" yaml:"id"`
	Repo           string     `json:"repo" yaml:"repo"`
	Source         string     `json:"source" yaml:"source"`
	Target         string     `json:"target" yaml:"target"`
	Provider       string     `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model          string     `json:"model,omitempty" yaml:"model,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" yaml:"createdAt"`
	Rounds         []*Round   `json:"rounds" yaml:"rounds"`
	Diff           tools.Diff `json:"-" yaml:"-"`
	ProjectContext string     `json:"-" yaml:"-"`
}

// NewState starts a session comparing source against target in repo.
func NewState(repo, source, target string) *State {
	return &State{
		ID:        uuid.NewString(),
		Repo:      repo,
		Source:    source,
		Target:    target,
		CreatedAt: time.Now().UTC(),
	}
}

// Last returns the most recent completed round, or nil.
func (s *State) Last() *Round {
	if len(s.Rounds) == 0 {
		return nil
	}
	return s.Rounds[len(s.Rounds)-1]
}

// NextRound is the number the next round will carry.
func (s *State) NextRound() int { return len(s.Rounds) + 1 }

func (s *State) append(r *Round) { s.Rounds = append(s.Rounds, r) }
