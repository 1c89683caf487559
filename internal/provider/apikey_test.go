package provider

import "testing"

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("SCOUT_TEST_KEY", "from-env")
	t.Setenv(APIKeyEnv, "from-scout")

	tests := []struct {
		name   string
		key    string
		envVar string
		want   string
	}{
		{"explicit wins", "explicit", "SCOUT_TEST_KEY", "explicit"},
		{"provider env", "", "SCOUT_TEST_KEY", "from-env"},
		{"scout env fallback", "", "SCOUT_UNSET_KEY_VAR", "from-scout"},
		{"no env var name", "", "", "from-scout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveAPIKey(tt.key, tt.envVar); got != tt.want {
				t.Errorf("ResolveAPIKey(%q, %q) = %q, want %q", tt.key, tt.envVar, got, tt.want)
			}
		})
	}
}
