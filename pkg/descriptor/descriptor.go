// Package descriptor holds the small companion document (meta.yml) that
// describes how a run's records are displayed.
package descriptor

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Descriptor is the parsed form of meta.yml. Unknown fields are ignored and
// missing optional fields stay empty.
type Descriptor struct {
	ExtraColumns      []ExtraColumn `yaml:"extra_columns,omitempty" json:"extra_columns,omitempty"`
	Downloads         []Download    `yaml:"downloads,omitempty" json:"downloads,omitempty"`
	Ordering          []Ordering    `yaml:"ordering,omitempty" json:"ordering,omitempty"`
	Notes             string        `yaml:"notes,omitempty" json:"notes,omitempty"`
	ReproducerPrelude string        `yaml:"reproducer_prelude,omitempty" json:"reproducer_prelude,omitempty"`

	// Written by the run itself, see Stamp.
	CPUCount  int   `yaml:"cpu_count" json:"cpu_count"`
	StartTime int64 `yaml:"start_time" json:"start_time"`
}

// ExtraColumn declares a main table field to show after the fixed columns.
type ExtraColumn struct {
	Name     string `yaml:"name" json:"name"`
	Label    string `yaml:"label" json:"label"`
	Renderer string `yaml:"renderer,omitempty" json:"renderer,omitempty"`
	Align    string `yaml:"align,omitempty" json:"align,omitempty"`
}

// Download declares an extra per-record artifact, relative to the record's
// directory.
type Download struct {
	Name  string `yaml:"name" json:"name"`
	Label string `yaml:"label" json:"label"`
}

// Ordering is one default sort key of the grid.
type Ordering struct {
	Name string `yaml:"name" json:"name"`
	Dir  string `yaml:"dir" json:"dir"`
}

// Descending reports whether the sort direction is "desc".
func (o Ordering) Descending() bool {
	return o.Dir == "desc"
}

// Parse decodes a descriptor document.
func Parse(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing descriptor: %w", err)
	}

	return &d, nil
}

// EffectiveCPUCount returns the declared CPU count, never less than one.
func (d *Descriptor) EffectiveCPUCount() int {
	if d.CPUCount < 1 {
		return 1
	}

	return d.CPUCount
}

// Start returns the run start time in UTC.
func (d *Descriptor) Start() time.Time {
	return time.Unix(d.StartTime, 0).UTC()
}
