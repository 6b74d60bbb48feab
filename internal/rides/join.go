package rides

import (
	"fmt"
	"strings"

	"pelotourney-cli/internal/model"

	"github.com/sirupsen/logrus"
)

// Row is a ride joined to its instructor.
type Row struct {
	Ride       model.Ride
	Instructor model.Instructor
}

type JoinPolicy int

const (
	// JoinFailFast fails the whole refresh when a ride references an
	// instructor missing from the side table.
	JoinFailFast JoinPolicy = iota
	// JoinSkip drops the malformed ride and logs it.
	JoinSkip
)

func (p JoinPolicy) String() string {
	if p == JoinSkip {
		return "skip"
	}
	return "fail"
}

func ParseJoinPolicy(s string) (JoinPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return JoinFailFast, nil
	case "skip":
		return JoinSkip, nil
	default:
		return JoinFailFast, fmt.Errorf("rides: unknown join policy %q (expected fail|skip)", s)
	}
}

// MalformedError reports a ride whose instructor is not in the response.
type MalformedError struct {
	RideID       string
	InstructorID string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("ride %s references unknown instructor %q", e.RideID, e.InstructorID)
}

// Join resolves every ride's instructor from the side table returned in the
// same response.
func Join(list model.RideList, policy JoinPolicy, log logrus.FieldLogger) ([]Row, error) {
	byID := make(map[string]model.Instructor, len(list.Instructors))
	for _, in := range list.Instructors {
		byID[in.ID] = in
	}
	rows := make([]Row, 0, len(list.Data))
	for _, r := range list.Data {
		in, ok := byID[r.InstructorID]
		if !ok {
			merr := &MalformedError{RideID: r.ID, InstructorID: r.InstructorID}
			if policy == JoinFailFast {
				return nil, merr
			}
			if log != nil {
				log.WithFields(logrus.Fields{"ride_id": r.ID, "instructor_id": r.InstructorID}).Warn("skipping malformed ride")
			}
			continue
		}
		rows = append(rows, Row{Ride: r, Instructor: in})
	}
	return rows, nil
}
