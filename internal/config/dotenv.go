package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv copies variables from .env files into the process environment
// before Load runs. Variables already set are left alone. Missing files are
// ignored, and the prod profile never reads them.
func LoadDotEnv(paths ...string) error {
	if Profile(strings.ToLower(strings.TrimSpace(os.Getenv("PROMPTCHART_PROFILE")))) == ProfileProd {
		return nil
	}
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}
