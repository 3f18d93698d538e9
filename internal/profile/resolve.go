package profile

import (
	"fmt"
	"regexp"

	"github.com/matheus3301/mchat/internal/config"
)

const DefaultName = "main"

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name conforms to profile naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// Resolve picks the active profile: the --profile flag, then the config's
// default_profile, then "main". The result is validated.
func Resolve(flagOverride string, cfg *config.Config) (string, error) {
	name := DefaultName
	switch {
	case flagOverride != "":
		name = flagOverride
	case cfg != nil && cfg.DefaultProfile != "":
		name = cfg.DefaultProfile
	}
	return name, ValidateName(name)
}
