package deskctl

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	OutputYAML = "yaml"
	OutputJSON = "json"

	DefaultBookingsURL  = "http://localhost:8080"
	DefaultConflictsURL = "http://localhost:8081"
	DefaultTimeout      = 10 * time.Second
)

// Profile holds connection settings, read from a YAML file and then
// overridden by flags.
type Profile struct {
	BookingsURL  string        `yaml:"bookings_url"`
	ConflictsURL string        `yaml:"conflicts_url"`
	ActorID      string        `yaml:"actor_id"`
	ActorRole    string        `yaml:"actor_role"`
	Output       string        `yaml:"output"`
	Timeout      time.Duration `yaml:"timeout"`
}

func DefaultProfile() Profile {
	return Profile{
		BookingsURL:  DefaultBookingsURL,
		ConflictsURL: DefaultConflictsURL,
		Output:       OutputYAML,
		Timeout:      DefaultTimeout,
	}
}

// LoadProfile starts from the defaults and applies path when it is set. A
// missing file is only an error when the path was given explicitly.
func LoadProfile(path string, explicit bool) (Profile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return profile, nil
		}
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return profile, profile.Validate()
}

func (p Profile) Validate() error {
	var problems []string
	for name, u := range map[string]string{"bookings_url": p.BookingsURL, "conflicts_url": p.ConflictsURL} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			problems = append(problems, fmt.Sprintf("%s must be an http(s) URL, got %q", name, u))
		}
	}
	if p.Output != OutputYAML && p.Output != OutputJSON {
		problems = append(problems, fmt.Sprintf("output must be %s or %s, got %q", OutputYAML, OutputJSON, p.Output))
	}
	if p.Timeout <= 0 {
		problems = append(problems, fmt.Sprintf("timeout must be positive, got %s", p.Timeout))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid profile: %s", strings.Join(problems, "; "))
	}
	return nil
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + string(os.PathSeparator) + ".deskctl.yaml"
}
