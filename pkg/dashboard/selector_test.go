package dashboard

import (
	"errors"
	"testing"

	"github.com/hawky-4s-/energy-report-dashboard/pkg/types"
)

func TestNewSelector(t *testing.T) {
	tests := []struct {
		name                string
		meters              []types.MeterID
		selected            types.MeterID
		wantDisabled        bool
		wantPlaceholder     string
		wantPlaceholderSel  bool
		wantSelectedOptions []types.MeterID
	}{
		{
			name:               "no meters",
			meters:             nil,
			wantDisabled:       true,
			wantPlaceholder:    NoMetersLabel,
			wantPlaceholderSel: true,
		},
		{
			name:               "meters without selection",
			meters:             []types.MeterID{"m1", "m2"},
			wantPlaceholder:    SelectMeterLabel,
			wantPlaceholderSel: true,
		},
		{
			name:                "selected meter present",
			meters:              []types.MeterID{"m1", "m2"},
			selected:            "m2",
			wantPlaceholder:     SelectMeterLabel,
			wantSelectedOptions: []types.MeterID{"m2"},
		},
		{
			name:               "selected meter missing from list",
			meters:             []types.MeterID{"m1"},
			selected:           "gone",
			wantPlaceholder:    SelectMeterLabel,
			wantPlaceholderSel: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelector(tt.meters, tt.selected)

			if s.Disabled != tt.wantDisabled {
				t.Errorf("Disabled = %v, want %v", s.Disabled, tt.wantDisabled)
			}
			if s.Placeholder != tt.wantPlaceholder {
				t.Errorf("Placeholder = %q, want %q", s.Placeholder, tt.wantPlaceholder)
			}
			if s.PlaceholderSelected != tt.wantPlaceholderSel {
				t.Errorf("PlaceholderSelected = %v, want %v", s.PlaceholderSelected, tt.wantPlaceholderSel)
			}

			var selected []types.MeterID
			for _, opt := range s.Options {
				if opt.Selected {
					selected = append(selected, opt.Value)
				}
			}
			if len(selected) != len(tt.wantSelectedOptions) {
				t.Fatalf("selected options = %v, want %v", selected, tt.wantSelectedOptions)
			}
			for i := range selected {
				if selected[i] != tt.wantSelectedOptions[i] {
					t.Errorf("selected[%d] = %v, want %v", i, selected[i], tt.wantSelectedOptions[i])
				}
			}
		})
	}
}

func TestNewSelector_OptionsMatchMeterList(t *testing.T) {
	meters := []types.MeterID{"z", "a", "9346bfb3-20aa-3412-ffab-44f88b917919", "m"}
	s := NewSelector(meters, "")

	if len(s.Options) != len(meters) {
		t.Fatalf("options count = %v, want %v", len(s.Options), len(meters))
	}
	for i, opt := range s.Options {
		if opt.Value != meters[i] {
			t.Errorf("option[%d].Value = %v, want %v", i, opt.Value, meters[i])
		}
		if opt.Label != string(meters[i]) {
			t.Errorf("option[%d].Label = %v, want %v", i, opt.Label, meters[i])
		}
	}
}

func TestParseErrorPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    ErrorPolicy
		wantErr bool
	}{
		{input: "", want: ErrorSticky},
		{input: "sticky", want: ErrorSticky},
		{input: " Reset ", want: ErrorResetOnSuccess},
		{input: "forever", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseErrorPolicy(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownPolicy) {
					t.Errorf("ParseErrorPolicy(%q) error = %v, want ErrUnknownPolicy", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseErrorPolicy(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseErrorPolicy(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestReportState_Mode(t *testing.T) {
	report := sampleReport("m1")
	tests := []struct {
		name  string
		state ReportState
		want  ReportMode
	}{
		{name: "no meter", state: ReportState{Loading: true, Error: "x", Report: report}, want: ReportPrompt},
		{name: "loading", state: ReportState{MeterID: "m1", Loading: true, Error: "x"}, want: ReportLoading},
		{name: "error", state: ReportState{MeterID: "m1", Error: "x", Report: report}, want: ReportFailed},
		{name: "ready", state: ReportState{MeterID: "m1", Report: report}, want: ReportReady},
		{name: "empty", state: ReportState{MeterID: "m1"}, want: ReportEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Mode(); got != tt.want {
				t.Errorf("Mode() = %v, want %v", got, tt.want)
			}
		})
	}
}
