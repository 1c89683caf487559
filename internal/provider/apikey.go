package provider

import "os"

// APIKeyEnv is consulted when a provider has neither an explicit key nor
// its own key variable set. Interactive commands export the key they
// prompt for under this name.
const APIKeyEnv = "SCOUT_API_KEY"

// ResolveAPIKey returns key, else the value of envVar, else the value of
// APIKeyEnv. It returns "" when none is set.
func ResolveAPIKey(key, envVar string) string {
	if key != "" {
		return key
	}
	if envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			return v
		}
	}
	return os.Getenv(APIKeyEnv)
}
