package dashboard

import "github.com/hawky-4s-/energy-report-dashboard/pkg/types"

// Selector labels.
const (
	NoMetersLabel     = "No meter-data available"
	SelectMeterLabel  = "Select a meter"
	SelectorElementID = "meter-select"
)

// Selector is the presentation model of the meter drop-down.
type Selector struct {
	Disabled            bool
	Placeholder         string
	PlaceholderSelected bool
	Options             []SelectorOption
}

// SelectorOption is one entry of the drop-down.
type SelectorOption struct {
	Value    types.MeterID
	Label    string
	Selected bool
}

// NewSelector builds the drop-down for the given candidates. It holds no
// state and does not check that selected is one of meters.
func NewSelector(meters []types.MeterID, selected types.MeterID) Selector {
	s := Selector{
		Disabled:            len(meters) == 0,
		Placeholder:         SelectMeterLabel,
		PlaceholderSelected: true,
		Options:             make([]SelectorOption, 0, len(meters)),
	}
	if s.Disabled {
		s.Placeholder = NoMetersLabel
	}

	for _, id := range meters {
		opt := SelectorOption{
			Value:    id,
			Label:    string(id),
			Selected: selected != "" && id == selected,
		}
		if opt.Selected {
			s.PlaceholderSelected = false
		}
		s.Options = append(s.Options, opt)
	}

	return s
}
