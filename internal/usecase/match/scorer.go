// Package match scores candidate profiles for the suggestions shortlist.
// Scoring is a pure function over profile attributes: no I/O, no hidden
// state.
package match

import (
	"sort"
	"strings"

	"github.com/duetapp/duet-sync/internal/domain"
)

const (
	personalityGroupBonus = 30
	sharedHobbyBonus      = 10
	ageNearBonus          = 20
	ageFarBonus           = 10
	noRedFlagOverlapBonus = 15
	hasPhotoBonus         = 10
	bioBonus              = 5

	ageNearYears = 5
	ageFarYears  = 10
	minBioLength = 20
)

// Score rates a candidate against self.
//
// The per-shared-hobby bonus is deliberately uncapped; profiles with very
// large hobby lists skew high.
func Score(candidate, self *domain.UserProfile) int {
	score := 0

	if g := candidate.PersonalityGroup(); g != "" && g == self.PersonalityGroup() {
		score += personalityGroupBonus
	}

	score += sharedHobbyBonus * overlapCount(candidate.Hobbies, self.Hobbies)

	ageDiff := candidate.Age() - self.Age()
	if ageDiff < 0 {
		ageDiff = -ageDiff
	}
	switch {
	case ageDiff <= ageNearYears:
		score += ageNearBonus
	case ageDiff <= ageFarYears:
		score += ageFarBonus
	}

	// Absence of shared red flags is rewarded, not presence.
	if overlapCount(candidate.RedFlags, self.RedFlags) == 0 {
		score += noRedFlagOverlapBonus
	}

	if len(candidate.Photos) > 0 {
		score += hasPhotoBonus
	}
	if len(candidate.Bio) > minBioLength {
		score += bioBonus
	}

	return score
}

// TopMatches scores every non-self, non-privileged candidate, keeps
// positive scores, and returns the best n in descending order. Equal
// scores keep original pool order.
func TopMatches(self *domain.UserProfile, pool []domain.UserProfile, n int) []domain.UserProfile {
	type scored struct {
		profile domain.UserProfile
		score   int
	}

	candidates := make([]scored, 0, len(pool))
	for _, candidate := range pool {
		if candidate.ID == self.ID || candidate.IsPrivileged {
			continue
		}
		if s := Score(&candidate, self); s > 0 {
			candidates = append(candidates, scored{profile: candidate, score: s})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	matches := make([]domain.UserProfile, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, c.profile)
	}
	return matches
}

func overlapCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, tag := range b {
		set[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}
	count := 0
	for _, tag := range a {
		if _, ok := set[strings.ToLower(strings.TrimSpace(tag))]; ok {
			count++
		}
	}
	return count
}
