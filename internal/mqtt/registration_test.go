package mqtt

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		action  string
		value   int
		wantErr bool
	}{
		{"json activate", `{"action":"activate"}`, ActionActivate, 0, false},
		{"bare string", `"reset"`, ActionReset, 0, false},
		{"raw word", `cycle`, ActionCycle, 0, false},
		{"tint", `{"action":"tint","value":15}`, ActionTint, 15, false},
		{"tint too high", `{"action":"tint","value":16}`, "", 0, true},
		{"pulse time", `{"action":"pulse_time","value":127}`, ActionPulseTime, 127, false},
		{"pulse time too high", `{"action":"pulse_time","value":128}`, "", 0, true},
		{"missing action", `{"value":1}`, "", 0, true},
		{"unknown action", `{"action":"launch"}`, "", 0, true},
		{"truncated", `{"action"`, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", cmd)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if cmd.Action != tt.action || cmd.Value != tt.value {
				t.Errorf("got %+v", cmd)
			}
		})
	}
}

func TestParseInput(t *testing.T) {
	if v, err := ParseInput([]byte(`{"level":0}`)); err != nil || v != 0 {
		t.Errorf("level 0: %d %v", v, err)
	}
	if v, err := ParseInput([]byte(`{"level":15}`)); err != nil || v != 15 {
		t.Errorf("level 15: %d %v", v, err)
	}
	for _, bad := range []string{`{}`, `{"level":-1}`, `{"level":16}`, `7`} {
		if _, err := ParseInput([]byte(bad)); err == nil {
			t.Errorf("%s should be rejected", bad)
		}
	}
}
