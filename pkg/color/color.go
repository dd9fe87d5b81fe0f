// Package color holds the built-in table of ANSI color names used by
// the --color option, and looks up the start/end escape pair for a name.
package color

import "strings"

// Entry is a single named color's escape pair.
type Entry struct {
	Name  string
	Start string
	End   string
}

const resetEscape = "\x1b[m"

var normalColors = []Entry{
	{"black", "\x1b[0;30m", resetEscape},
	{"red", "\x1b[0;31m", resetEscape},
	{"green", "\x1b[0;32m", resetEscape},
	{"yellow", "\x1b[0;33m", resetEscape},
	{"blue", "\x1b[0;34m", resetEscape},
	{"magenta", "\x1b[0;35m", resetEscape},
	{"cyan", "\x1b[0;36m", resetEscape},
	{"white", "\x1b[0;37m", resetEscape},
}

var brightColors = []Entry{
	{"black", "\x1b[1;30m", resetEscape},
	{"red", "\x1b[1;31m", resetEscape},
	{"green", "\x1b[1;32m", resetEscape},
	{"yellow", "\x1b[1;33m", resetEscape},
	{"blue", "\x1b[1;34m", resetEscape},
	{"magenta", "\x1b[1;35m", resetEscape},
	{"cyan", "\x1b[1;36m", resetEscape},
	{"white", "\x1b[1;37m", resetEscape},
}

const brightPrefix = "bright-"

// Lookup finds a color by name, honoring the "bright-" prefix that
// selects the bright table instead of the normal one.
func Lookup(name string) (Entry, bool) {
	table := normalColors
	if strings.HasPrefix(name, brightPrefix) {
		name = name[len(brightPrefix):]
		table = brightColors
	}
	for _, ent := range table {
		if ent.Name == name {
			return ent, true
		}
	}
	return Entry{}, false
}

// Names returns the normal and bright color name lists, in table order,
// for use in "unknown color" error messages.
func Names() (normal []string, bright []string) {
	normal = make([]string, len(normalColors))
	for i, ent := range normalColors {
		normal[i] = ent.Name
	}
	bright = make([]string, len(brightColors))
	for i, ent := range brightColors {
		bright[i] = ent.Name
	}
	return normal, bright
}
