package bot

import "strings"

// CommandParser splits a message into a command and its arguments.
// Commands carry one of the accepted prefixes.
type CommandParser struct {
	validPrefixes []string
}

func NewCommandParser(prefix string) *CommandParser {
	prefixes := []string{"!", "."}
	if prefix != "" && prefix != "!" && prefix != "." {
		prefixes = append([]string{prefix}, prefixes...)
	}
	return &CommandParser{validPrefixes: prefixes}
}

// ParseCommand returns the lowercased command name, its arguments and
// whether the text was a command at all.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix || text == "" {
		return "", nil, false
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}

	cmd := strings.ToLower(fields[0])
	return cmd, fields[1:], true
}
