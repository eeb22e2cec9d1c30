package services

import (
	"fmt"
	"os"
	"strings"
)

// ResolveToken reads an API token from the environment. A configured
// envVar is the only one consulted; otherwise the fallbacks are tried in
// order.
func ResolveToken(envVar string, fallbacks ...string) (string, error) {
	if envVar != "" {
		token := os.Getenv(envVar)
		if token == "" {
			return "", fmt.Errorf("%s environment variable is not set", envVar)
		}
		return token, nil
	}

	for _, name := range fallbacks {
		if token := os.Getenv(name); token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("%s environment variable is not set", strings.Join(fallbacks, " or "))
}
