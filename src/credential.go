package storybook

import (
	"fmt"
	"strings"
)

var placeholderPrefixes = []string{"REPLACE_WITH", "YOUR_", "YOUR-", "INSERT_", "CHANGEME"}

// isPlaceholder matches the template values people leave in .env files and
// catalogs, like <YOUR_KEY> or REPLACE_WITH_MODEL_ID.
func isPlaceholder(s string) bool {
	if strings.ContainsAny(s, "<>") {
		return true
	}
	upper := strings.ToUpper(s)
	for _, p := range placeholderPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// CheckAPIKey trims key and rejects missing or placeholder credentials.
func CheckAPIKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: LEONARDO_API_KEY is not set (add it to your environment or .env file)", ErrAuth)
	}
	if isPlaceholder(key) {
		return "", fmt.Errorf("%w: LEONARDO_API_KEY still holds a placeholder value; paste the real key from the Leonardo dashboard", ErrAuth)
	}
	return key, nil
}
