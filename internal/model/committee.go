package model

import "strings"

// Committee is a document of the `committees` collection. Name is the
// natural key used when pricing seat labels.
//
// Revision is maintained by the document store and is not part of the
// stored payload; writers pass it back to detect stale snapshots.
type Committee struct {
	ID                         string   `json:"id"`
	Name                       string   `json:"name" validate:"required"`
	Topic                      string   `json:"topic"`
	Img                        string   `json:"img"`
	Seats                      int      `json:"seats" validate:"gte=0"`
	SeatsList                  SeatList `json:"seatsList" validate:"dive"`
	Description                string   `json:"description,omitempty"`
	Video                      string   `json:"video,omitempty"`
	StudyGuide                 string   `json:"studyGuide,omitempty"`
	LegalFramework             []string `json:"legalFramework,omitempty"`
	President                  string   `json:"president,omitempty"`
	MaxSeatsPerSmallDelegation int      `json:"maxSeatsPerSmallDelegation,omitempty"`
	MaxSeatsPerLargeDelegation int      `json:"maxSeatsPerLargeDelegation,omitempty"`
	IsDoubleSeat               bool     `json:"isDoubleSeat"`
	Revision                   uint64   `json:"revision"`
}

// Stats returns the seat statistics of this committee. A committee with no
// seat list reports zeros.
func (c Committee) Stats() SeatStats { return c.SeatsList.Stats() }

// SeatLabel is the free-text label stored on registrations: "<committee> - <seat>".
func (c Committee) SeatLabel(seat string) string { return c.Name + " - " + seat }

// Matches reports whether term occurs in the name, topic or president,
// ignoring case. An empty term matches everything.
func (c Committee) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range []string{c.Name, c.Topic, c.President} {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// CommitteeStats aggregates seat statistics across committees.
type CommitteeStats struct {
	Committees int `json:"committees"`
	// Declared is the sum of the advertised seat counts, which can drift
	// from the real seat lists.
	Declared int `json:"declared"`
	SeatStats
}

// AggregateStats folds the seat lists of every committee.
func AggregateStats(cs []Committee) CommitteeStats {
	out := CommitteeStats{Committees: len(cs)}
	for _, c := range cs {
		s := c.Stats()
		out.Declared += c.Seats
		out.Total += s.Total
		out.Available += s.Available
		out.Occupied += s.Occupied
	}
	return out
}
