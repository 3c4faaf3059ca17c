// Package matching derives the live candidate pool: every other user who is
// playing the same track or the same artist as the local user right now.
package matching

import (
	"github.com/PaulBabatuyi/resonance/internal/data"
)

// MatchType classifies why two listeners were paired.
type MatchType string

const (
	SameTrack  MatchType = "same_track"
	SameArtist MatchType = "same_artist"
)

// PotentialMatch is one entry of the candidate pool. It is never stored.
type PotentialMatch struct {
	OtherUserID string
	Listening   data.ListeningState
	Type        MatchType
}

// Classify compares another listener against the local one. Track equality
// wins over artist equality and empty ids never match.
func Classify(local, other *data.ListeningState) (MatchType, bool) {
	if other.TrackID != "" && other.TrackID == local.TrackID {
		return SameTrack, true
	}
	if other.ArtistID != "" && other.ArtistID == local.ArtistID {
		return SameArtist, true
	}
	return "", false
}

// Candidates builds the full pool for localUserID from one snapshot of the
// playing listeners. The local user's own record in the snapshot is the
// reference; without it the local user is not playing and the pool is empty.
func Candidates(localUserID string, playing []data.ListeningState) []PotentialMatch {
	var local *data.ListeningState
	for i := range playing {
		if playing[i].UserID == localUserID {
			local = &playing[i]
			break
		}
	}
	if local == nil {
		return nil
	}

	seen := make(map[string]bool, len(playing))
	var out []PotentialMatch
	for i := range playing {
		other := &playing[i]
		if other.UserID == localUserID || other.UserID == "" || seen[other.UserID] {
			continue
		}
		kind, ok := Classify(local, other)
		if !ok {
			continue
		}
		seen[other.UserID] = true
		out = append(out, PotentialMatch{
			OtherUserID: other.UserID,
			Listening:   *other,
			Type:        kind,
		})
	}
	return out
}
