package results

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"AUTO-COMPLETE", ModeAuto, false},
		{"manual", ModeManual, false},
		{"continuous", ModeManual, false},
		{" Manual ", ModeManual, false},
		{"sometimes", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q) accepted, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsStopPhrase(t *testing.T) {
	t.Run("default phrases", func(t *testing.T) {
		for _, input := range []string{"done", "DONE", " exit ", "Quit", "stop"} {
			if !IsStopPhrase(input, nil) {
				t.Errorf("IsStopPhrase(%q) = false, want true", input)
			}
		}
		for _, input := range []string{"", "done please", "stopwatch", "keep going"} {
			if IsStopPhrase(input, nil) {
				t.Errorf("IsStopPhrase(%q) = true, want false", input)
			}
		}
	})

	t.Run("custom phrases replace the defaults", func(t *testing.T) {
		phrases := []string{"finito"}
		if IsStopPhrase("done", phrases) {
			t.Error("default phrase matched against a custom list")
		}
		if !IsStopPhrase("Finito", phrases) {
			t.Error("custom phrase did not match")
		}
	})
}

func TestCompletionMarker(t *testing.T) {
	if !HasMarker("All set. [TASK_COMPLETE]") {
		t.Error("marker not detected")
	}
	if HasMarker("all done") {
		t.Error("marker detected in plain text")
	}

	if got := StripMarker("All set. [TASK_COMPLETE]"); got != "All set." {
		t.Errorf("StripMarker = %q, want %q", got, "All set.")
	}
	if got := StripMarker("[TASK_COMPLETE]"); got != "" {
		t.Errorf("StripMarker on bare marker = %q, want empty", got)
	}
	if got := StripMarker("[TASK_COMPLETE] first\nsecond [TASK_COMPLETE]"); got != "first\nsecond" {
		t.Errorf("StripMarker on repeated markers = %q", got)
	}
	if got := StripMarker("untouched"); got != "untouched" {
		t.Errorf("StripMarker changed marker-free text: %q", got)
	}
}
