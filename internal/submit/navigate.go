package submit

import (
	"context"

	"pelotourney-cli/internal/model"
)

type Outcome int

const (
	Reloaded Outcome = iota + 1
	Navigated
)

func (o Outcome) String() string {
	switch o {
	case Reloaded:
		return "reloaded"
	case Navigated:
		return "navigated"
	default:
		return "none"
	}
}

// Navigator is whatever currently shows the edit screen.
type Navigator interface {
	Current() model.Location
	// Reload discards all local state and re-hydrates it.
	Reload(ctx context.Context) error
	Navigate(ctx context.Context, dest model.Location) error
}

// RedirectOrRefresh reloads when nav already shows dest (path and fragment),
// and navigates otherwise.
func RedirectOrRefresh(ctx context.Context, nav Navigator, dest model.Location) (Outcome, error) {
	if nav.Current().Equal(dest) {
		return Reloaded, nav.Reload(ctx)
	}
	return Navigated, nav.Navigate(ctx, dest)
}
