package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/campus-booking/internal/application"
)

// seedFile is the YAML room catalog accepted by --seed-rooms:
//
//	rooms:
//	  - name: Lecture Theatre 1
//	    location: Main Building
//	    capacity: 120
//	    amenities: [projector, microphone]
type seedFile struct {
	Rooms []seedRoom `yaml:"rooms"`
}

type seedRoom struct {
	Name      string   `yaml:"name"`
	Location  string   `yaml:"location"`
	Capacity  int      `yaml:"capacity"`
	Amenities []string `yaml:"amenities"`
}

func loadSeedFile(path string) ([]application.RoomInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return parseSeed(data)
}

func parseSeed(data []byte) ([]application.RoomInput, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(file.Rooms) == 0 {
		return nil, fmt.Errorf("parse seed file: no rooms defined")
	}

	inputs := make([]application.RoomInput, 0, len(file.Rooms))
	for _, room := range file.Rooms {
		inputs = append(inputs, application.RoomInput{
			Name:      room.Name,
			Location:  room.Location,
			Capacity:  room.Capacity,
			Amenities: room.Amenities,
		})
	}
	return inputs, nil
}
