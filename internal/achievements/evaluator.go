// Package achievements decides which milestones a learner has reached.
package achievements

import (
	"github.com/example/linguaflow/internal/metrics"
	"github.com/example/linguaflow/pkg/models"
	log "github.com/sirupsen/logrus"
)

// Rule unlocks an achievement when Check holds for the progress
type Rule struct {
	ID    string
	Check func(p models.UserProgress) bool
}

// DefaultRules are the threshold rules of the achievement catalog.
// perfect-quiz has no rule: it depends on a single quiz result, not on the
// aggregate, and is unlocked by the caller that sees the result.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "first-lesson", Check: func(p models.UserProgress) bool {
			for _, cp := range p.CoursesProgress {
				if cp.CompletedLessons >= 1 {
					return true
				}
			}
			return false
		}},
		{ID: "streak-7", Check: func(p models.UserProgress) bool { return p.CurrentStreak >= 7 }},
		{ID: "xp-1000", Check: func(p models.UserProgress) bool { return p.TotalXP >= 1000 }},
		{ID: "xp-5000", Check: func(p models.UserProgress) bool { return p.TotalXP >= 5000 }},
		{ID: "pronunciation-80", Check: func(p models.UserProgress) bool {
			for _, score := range p.SpeakingProgress.BestScores {
				if score >= 80 {
					return true
				}
			}
			return false
		}},
		{ID: "speaking-10", Check: func(p models.UserProgress) bool { return p.SpeakingProgress.TotalPractices >= 10 }},
	}
}

// Unlocker is the part of the progress store the evaluator needs
type Unlocker interface {
	Snapshot() models.UserProgress
	UnlockAchievement(id string) (bool, error)
}

// Evaluator checks the rules against progress. It holds no state besides
// the rule list.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator creates an evaluator; nil rules means DefaultRules
func NewEvaluator(rules []Rule) *Evaluator {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Evaluator{rules: rules}
}

// Evaluate returns the ids of locked achievements whose rule now holds, in
// rule order. Achievements absent from p are ignored.
func (e *Evaluator) Evaluate(p models.UserProgress) []string {
	var ids []string
	for _, r := range e.rules {
		a, ok := p.Achievement(r.ID)
		if !ok || a.Unlocked {
			continue
		}
		if r.Check(p) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// Apply evaluates the store's current progress and unlocks every match. It
// returns the achievements that changed state; calling it again without new
// progress returns nothing.
func (e *Evaluator) Apply(store Unlocker) []models.Achievement {
	var unlocked []models.Achievement
	for _, id := range e.Evaluate(store.Snapshot()) {
		changed, err := store.UnlockAchievement(id)
		if err != nil {
			log.WithError(err).WithField("achievement", id).Warn("failed to unlock achievement")
			continue
		}
		if !changed {
			continue
		}
		if a, ok := store.Snapshot().Achievement(id); ok {
			unlocked = append(unlocked, a)
			metrics.AchievementsUnlocked.WithLabelValues(id).Inc()
			log.WithFields(log.Fields{"achievement": id, "name": a.Name}).Info("achievement unlocked")
		}
	}
	return unlocked
}
