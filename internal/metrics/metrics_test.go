package metrics

import "testing"

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/ws", "/ws"},
		{"/api/v1/missions", "/api/v1/missions"},
		{"/api/v1/flight/status", "/api/v1/flight/status"},

		// Parameterized routes collapse to one label.
		{"/api/v1/missions/M-100", "/api/v1/missions/{id}"},
		{"/api/v1/missions/M-200", "/api/v1/missions/{id}"},
		{"/api/v1/missions/M-100/timeline", "/api/v1/missions/{id}/timeline"},
		{"/api/v1/routes/rt-7", "/api/v1/routes/{id}"},
		{"/api/v1/flight/depart", "/api/v1/flight/depart"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/.env", "other"},
		{"/favicon.ico", "other"},
		{"/api/v2/something", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizeRoute(tt.path); got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestMissionIDCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for _, id := range []string{"M-1", "M-2", "M-3", "OP-EAST", "OP-WEST"} {
		seen[normalizeRoute("/api/v1/missions/"+id+"/timeline")] = true
	}
	if len(seen) != 1 {
		t.Errorf("mission timeline labels = %d, want 1", len(seen))
	}
}
