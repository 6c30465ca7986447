package site

import "fmt"

// Room is one named survey location inside a floor
type Room struct {
	Name string `json:"name"`
}

// Floor is an ordered list of rooms
type Floor struct {
	Name  string `json:"name"`
	Rooms []Room `json:"rooms"`
}

// House is the surveyed site: an ordered list of floors, each with an
// ordered list of rooms. Floor and room names are unique within their
// parent.
type House struct {
	Name   string  `json:"name"`
	Floors []Floor `json:"floors"`
}

// Validate checks name uniqueness within each parent
func (h *House) Validate() error {
	floorNames := make(map[string]struct{}, len(h.Floors))
	for _, f := range h.Floors {
		if f.Name == "" {
			return fmt.Errorf("floor with empty name")
		}
		if _, dup := floorNames[f.Name]; dup {
			return fmt.Errorf("duplicate floor name %q", f.Name)
		}
		floorNames[f.Name] = struct{}{}

		roomNames := make(map[string]struct{}, len(f.Rooms))
		for _, r := range f.Rooms {
			if r.Name == "" {
				return fmt.Errorf("room with empty name on floor %q", f.Name)
			}
			if _, dup := roomNames[r.Name]; dup {
				return fmt.Errorf("duplicate room name %q on floor %q", r.Name, f.Name)
			}
			roomNames[r.Name] = struct{}{}
		}
	}
	return nil
}

// HasRoom reports whether the floor/room pair exists in the house
func (h *House) HasRoom(floor, room string) bool {
	for _, f := range h.Floors {
		if f.Name != floor {
			continue
		}
		for _, r := range f.Rooms {
			if r.Name == room {
				return true
			}
		}
	}
	return false
}

// RoomCount returns the total number of rooms across all floors
func (h *House) RoomCount() int {
	n := 0
	for _, f := range h.Floors {
		n += len(f.Rooms)
	}
	return n
}
