package room

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type RoomsConfig struct {
	DefaultRoomID string     `yaml:"default_room_id"`
	Rooms         []RoomSpec `yaml:"rooms"`
}

type RoomSpec struct {
	ID          string `yaml:"id"`
	Label       string `yaml:"label"`
	MaxSessions int    `yaml:"max_sessions"`
}

func LoadRoomsConfig(path string) (RoomsConfig, error) {
	cfg := defaultRooms()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg = RoomsConfig{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("rooms.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("rooms.yaml: %w", err)
	}
	return cfg, nil
}

func defaultRooms() RoomsConfig {
	return RoomsConfig{
		DefaultRoomID: "R1",
		Rooms: []RoomSpec{
			{ID: "R1", Label: "Frontier", MaxSessions: 512},
		},
	}
}

func (c *RoomsConfig) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Rooms {
		c.Rooms[i].ID = strings.TrimSpace(c.Rooms[i].ID)
		if c.Rooms[i].Label == "" {
			c.Rooms[i].Label = c.Rooms[i].ID
		}
		if c.Rooms[i].MaxSessions <= 0 {
			c.Rooms[i].MaxSessions = 512
		}
	}
	if strings.TrimSpace(c.DefaultRoomID) == "" && len(c.Rooms) > 0 {
		c.DefaultRoomID = c.Rooms[0].ID
	}
}

func (c RoomsConfig) Validate() error {
	if len(c.Rooms) == 0 {
		return fmt.Errorf("rooms must not be empty")
	}
	seen := map[string]bool{}
	for _, r := range c.Rooms {
		if r.ID == "" {
			return fmt.Errorf("room id must not be empty")
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate room id: %s", r.ID)
		}
		seen[r.ID] = true
		if r.MaxSessions <= 0 {
			return fmt.Errorf("room %s max_sessions must be > 0", r.ID)
		}
	}
	if !seen[c.DefaultRoomID] {
		return fmt.Errorf("default_room_id %q not found in rooms", c.DefaultRoomID)
	}
	return nil
}

func (c RoomsConfig) Spec(id string) (RoomSpec, bool) {
	for _, r := range c.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return RoomSpec{}, false
}
