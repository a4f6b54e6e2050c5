package sshproxy

import (
	"fmt"
	"regexp"
)

// driver captures the vendor-specific knowledge needed to drive an
// interactive CLI session: the regex that recognizes the device's command
// prompt (so a command's output can be known to be complete), and the
// commands used to enter/exit configuration mode. New device types are
// added here without touching session.go (spec §4.3: "a vendor-neutral
// device driver").
type driver struct {
	name            string
	promptPattern   *regexp.Regexp
	enableCmd       string
	configEnterCmd  string
	configExitCmd   string
	disablePaging   string
}

var genericPrompt = regexp.MustCompile(`(?m)[\$#>]\s*$`)

var drivers = map[string]*driver{
	"cisco_ios": {
		name:           "cisco_ios",
		promptPattern:  regexp.MustCompile(`(?m)\S+[>#]\s*$`),
		enableCmd:      "enable",
		configEnterCmd: "configure terminal",
		configExitCmd:  "end",
		disablePaging:  "terminal length 0",
	},
	"cisco_nxos": {
		name:           "cisco_nxos",
		promptPattern:  regexp.MustCompile(`(?m)\S+[>#]\s*$`),
		configEnterCmd: "configure terminal",
		configExitCmd:  "end",
		disablePaging:  "terminal length 0",
	},
	"juniper_junos": {
		name:           "juniper_junos",
		promptPattern:  regexp.MustCompile(`(?m)[%>#]\s*$`),
		configEnterCmd: "configure",
		configExitCmd:  "commit and-quit",
		disablePaging:  "set cli screen-length 0",
	},
	"linux": {
		name:          "linux",
		promptPattern: regexp.MustCompile(`(?m)[\$#]\s*$`),
	},
	"generic": {
		name:          "generic",
		promptPattern: genericPrompt,
	},
}

// driverFor returns the driver for deviceType, falling back to "generic"
// for unrecognized types rather than failing configure outright — the
// device still answers to a plain prompt-detecting read loop, just
// without config-mode commands.
func driverFor(deviceType string) *driver {
	if d, ok := drivers[deviceType]; ok {
		return d
	}
	return drivers["generic"]
}

func (d *driver) String() string { return fmt.Sprintf("driver(%s)", d.name) }
