package stream

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    CommandType
		wantErr bool
	}{
		{"pause", `{"type":"pause","paused":true}`, CmdPause, false},
		{"pause missing flag", `{"type":"pause"}`, "", true},
		{"toggle pause", `{"type":"toggle_pause"}`, CmdTogglePause, false},
		{"toggle state", `{"type":"toggle_state","satellite":"sat1"}`, CmdToggleState, false},
		{"toggle state missing id", `{"type":"toggle_state"}`, "", true},
		{"reset", `{"type":"reset"}`, CmdReset, false},
		{"speed", `{"type":"speed","value":0}`, CmdSpeed, false},
		{"radius missing value", `{"type":"orbit_radius"}`, "", true},
		{"unknown", `{"type":"warp"}`, "", true},
		{"empty type", `{}`, "", true},
		{"not json", `toggle`, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tc.in))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseCommand(%s) succeeded, want error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand(%s): %v", tc.in, err)
			}
			if cmd.Type != tc.want {
				t.Fatalf("type = %q, want %q", cmd.Type, tc.want)
			}
		})
	}
}
