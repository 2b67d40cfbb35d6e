package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/tessro/cadence/internal/config"
)

// subsystemsValue is a comma-separated list of idle subsystems, checked as
// it is parsed.
type subsystemsValue struct {
	list []string
}

var _ pflag.Value = (*subsystemsValue)(nil)

func newSubsystemsValue() *subsystemsValue {
	return &subsystemsValue{}
}

func (v *subsystemsValue) String() string {
	return strings.Join(v.list, ",")
}

func (v *subsystemsValue) Set(s string) error {
	var list []string
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !config.IsSubsystem(name) {
			return fmt.Errorf("unknown idle subsystem %q", name)
		}
		list = append(list, name)
	}
	v.list = append(v.list, list...)
	return nil
}

func (v *subsystemsValue) Type() string {
	return "subsystems"
}

// Values returns the parsed subsystems, or nil when the flag was not given.
func (v *subsystemsValue) Values() []string {
	return v.list
}

// parseOnOff accepts on/off, true/false, yes/no and 1/0.
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
