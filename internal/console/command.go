package console

import "strings"

// Command is one line of console input split into its verb and arguments.
// Raw keeps the line as typed for pass-through to the device.
type Command struct {
	Verb string
	Args []string
	Raw  string
}

// ParseCommand splits line on whitespace. A blank line has an empty Verb.
func ParseCommand(line string) Command {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	cmd := Command{Raw: line}
	if len(fields) > 0 {
		cmd.Verb = fields[0]
		cmd.Args = fields[1:]
	}
	return cmd
}
