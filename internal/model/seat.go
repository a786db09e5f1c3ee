package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrSeatIndex is returned when a seat position does not exist in the list.
var ErrSeatIndex = errors.New("seat index out of range")

// Seat is one entry of a committee's seat list. A seat has no identity
// beyond its position in the list and its label.
type Seat struct {
	Name      string `json:"name" validate:"required"`
	Available bool   `json:"available"`
}

// SeatList is the ordered seat inventory of a committee. Mutators never
// touch the receiver; they return a fresh copy.
type SeatList []Seat

// SeatStats is the derived read-side view of a seat list.
type SeatStats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Occupied  int `json:"occupied"`
}

// Stats folds the list into totals. Available+Occupied always equals Total.
func (l SeatList) Stats() SeatStats {
	s := SeatStats{Total: len(l)}
	for _, seat := range l {
		if seat.Available {
			s.Available++
		}
	}
	s.Occupied = s.Total - s.Available
	return s
}

// AvailableIndexes returns the positions of every available seat.
func (l SeatList) AvailableIndexes() []int {
	out := make([]int, 0, len(l))
	for i, seat := range l {
		if seat.Available {
			out = append(out, i)
		}
	}
	return out
}

// Labels resolves positions to seat names, preserving the order of idx.
func (l SeatList) Labels(idx []int) ([]string, error) {
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		if err := l.check(i); err != nil {
			return nil, err
		}
		out = append(out, l[i].Name)
	}
	return out, nil
}

// RequireAvailable reports the first position in idx that is occupied.
func (l SeatList) RequireAvailable(idx []int) error {
	for _, i := range idx {
		if err := l.check(i); err != nil {
			return err
		}
		if !l[i].Available {
			return errors.Errorf("seat %q (index %d) is already occupied", l[i].Name, i)
		}
	}
	return nil
}

// Assign marks exactly the positions in idx as occupied. Other seats keep
// their prior state.
func (l SeatList) Assign(idx []int) (SeatList, error) {
	out := l.clone()
	for _, i := range idx {
		if err := l.check(i); err != nil {
			return nil, err
		}
		out[i].Available = false
	}
	return out, nil
}

// Toggle flips the availability of a single seat.
func (l SeatList) Toggle(i int) (SeatList, error) {
	if err := l.check(i); err != nil {
		return nil, err
	}
	out := l.clone()
	out[i].Available = !out[i].Available
	return out, nil
}

// WithAll sets every seat to the given availability.
func (l SeatList) WithAll(available bool) SeatList {
	out := l.clone()
	for i := range out {
		out[i].Available = available
	}
	return out
}

func (l SeatList) check(i int) error {
	if i < 0 || i >= len(l) {
		return errors.Wrap(ErrSeatIndex, fmt.Sprintf("index %d, list has %d seats", i, len(l)))
	}
	return nil
}

func (l SeatList) clone() SeatList {
	out := make(SeatList, len(l))
	copy(out, l)
	return out
}

// UniqueIndexes drops duplicate positions, keeping first occurrence order.
func UniqueIndexes(idx []int) []int {
	seen := make(map[int]struct{}, len(idx))
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	return out
}
