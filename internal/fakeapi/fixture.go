package fakeapi

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"pelotourney-cli/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/demo.yaml
var demoFixture []byte

// Fixture is the initial server state, usually read from YAML.
type Fixture struct {
	Tournament  FixtureTournament   `yaml:"tournament"`
	Members     []FixtureMember     `yaml:"members"`
	Teams       []FixtureTeam       `yaml:"teams"`
	Instructors []FixtureInstructor `yaml:"instructors"`
	Catalog     []FixtureRide       `yaml:"catalog"`
	Attached    []string            `yaml:"attached_rides"`
}

type FixtureTournament struct {
	ID         int64  `yaml:"id"`
	Name       string `yaml:"name"`
	Format     string `yaml:"format"`
	StartDate  string `yaml:"start_date"`
	EndDate    string `yaml:"end_date"`
	Visibility string `yaml:"visibility"`
}

type FixtureMember struct {
	ID       int64  `yaml:"id"`
	Username string `yaml:"username"`
	Role     string `yaml:"role"`
}

type FixtureTeam struct {
	ID      int64    `yaml:"id"`
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

type FixtureInstructor struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	ImageURL string `yaml:"image_url"`
}

type FixtureRide struct {
	ID                 string `yaml:"id"`
	Title              string `yaml:"title"`
	Description        string `yaml:"description"`
	ImageURL           string `yaml:"image_url"`
	ScheduledStartTime int64  `yaml:"scheduled_start_time"`
	Duration           int    `yaml:"duration"`
	InstructorID       string `yaml:"instructor_id"`
}

func DefaultFixture() (Fixture, error) {
	return ParseFixture(demoFixture)
}

func LoadFixture(path string) (Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	f, err := ParseFixture(b)
	if err != nil {
		return Fixture{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func ParseFixture(b []byte) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return Fixture{}, err
	}
	return f, nil
}

func (f Fixture) Validate() error {
	if f.Tournament.ID <= 0 {
		return errors.New("fixture: tournament.id must be positive")
	}
	for name, d := range map[string]string{"start_date": f.Tournament.StartDate, "end_date": f.Tournament.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return fmt.Errorf("fixture: tournament.%s: %w", name, err)
		}
	}
	switch f.Tournament.Visibility {
	case "", model.VisibilityPrivate, model.VisibilityPublic:
	default:
		return fmt.Errorf("fixture: tournament.visibility %q (expected private|public)", f.Tournament.Visibility)
	}
	members := map[string]bool{}
	for _, m := range f.Members {
		name := strings.TrimSpace(m.Username)
		if name == "" || m.ID <= 0 {
			return fmt.Errorf("fixture: member %d needs an id and username", m.ID)
		}
		if members[name] {
			return fmt.Errorf("fixture: duplicate member %q", name)
		}
		members[name] = true
	}
	placed := map[string]int64{}
	for _, t := range f.Teams {
		for _, u := range t.Members {
			if !members[u] {
				return fmt.Errorf("fixture: team %q lists unknown member %q", t.Name, u)
			}
			if prev, ok := placed[u]; ok {
				return fmt.Errorf("fixture: member %q is on teams %d and %d", u, prev, t.ID)
			}
			placed[u] = t.ID
		}
	}
	instructors := map[string]bool{}
	for _, in := range f.Instructors {
		instructors[in.ID] = true
	}
	rides := map[string]bool{}
	for _, r := range f.Catalog {
		if !instructors[r.InstructorID] {
			return fmt.Errorf("fixture: ride %s references unknown instructor %q", r.ID, r.InstructorID)
		}
		rides[r.ID] = true
	}
	for _, id := range f.Attached {
		if !rides[id] {
			return fmt.Errorf("fixture: attached ride %q is not in the catalog", id)
		}
	}
	return nil
}
