package main

import (
	v1 "github.com/PaulBabatuyi/resonance/api/v1"
	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/matching"
)

func toProfile(u *data.User, withEmail bool) *v1.Profile {
	p := &v1.Profile{
		UserID:         u.ID,
		Name:           u.Name,
		ImageURL:       u.ImageURL,
		Bio:            u.Bio,
		FavoriteGenres: u.FavoriteGenres,
		IsOnline:       u.IsOnline,
		LastActive:     u.LastActive,
	}
	if withEmail {
		p.Email = u.Email
	}
	return p
}

func toTrack(st *data.ListeningState) v1.Track {
	return v1.Track{
		TrackID:    st.TrackID,
		TrackName:  st.TrackName,
		ArtistID:   st.ArtistID,
		ArtistName: st.ArtistName,
		ImageURL:   st.ImageURL,
	}
}

func toCandidate(p *matching.PotentialMatch) v1.Candidate {
	return v1.Candidate{
		UserID:    p.OtherUserID,
		MatchType: string(p.Type),
		Track:     toTrack(&p.Listening),
		UpdatedAt: p.Listening.UpdatedAt,
	}
}

func toMatch(m *data.Match) *v1.Match {
	return &v1.Match{
		ID:            m.ID,
		User1ID:       m.User1ID,
		User2ID:       m.User2ID,
		TrackName:     m.TrackName,
		ArtistName:    m.ArtistName,
		ImageURL:      m.ImageURL,
		User1Accepted: m.User1Accepted,
		User2Accepted: m.User2Accepted,
		ChatID:        m.ChatID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toMatches(ms []data.Match) []v1.Match {
	out := make([]v1.Match, 0, len(ms))
	for i := range ms {
		out = append(out, *toMatch(&ms[i]))
	}
	return out
}

func toMessage(m *data.Message) *v1.Message {
	return &v1.Message{
		ID:       m.ID,
		ChatID:   m.ChatID,
		SenderID: m.SenderID,
		Text:     m.Text,
		SentAt:   m.SentAt,
	}
}

func toMessages(ms []data.Message) []v1.Message {
	out := make([]v1.Message, 0, len(ms))
	for i := range ms {
		out = append(out, *toMessage(&ms[i]))
	}
	return out
}

func toNotification(n *data.Notification) *v1.Notification {
	return &v1.Notification{
		ID:        n.ID,
		ActorID:   n.ActorID,
		Kind:      string(n.Kind),
		Title:     n.Title,
		Body:      n.Body,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
