package profile

import (
	"fmt"
	"regexp"
)

// namePattern keeps profile names usable as a single directory name under
// profiles/ and inside the daemon socket path.
const namePattern = `^[a-z0-9_-]{1,64}$`

var nameRegexp = regexp.MustCompile(namePattern)

// ValidateName checks a profile name before it is turned into a cache,
// socket and lock location. Each profile is one account with its own daemon.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: must match %s", name, namePattern)
	}
	return nil
}
