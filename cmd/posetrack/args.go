package main

import (
	"strconv"
	"strings"
)

// longFlags are the flags that may also be spelled with a single dash,
// as in "-list" or "-output take.fbx".
var longFlags = map[string]bool{
	"list":       true,
	"output":     true,
	"devices":    true,
	"config":     true,
	"driver":     true,
	"duration":   true,
	"tick":       true,
	"status":     true,
	"data":       true,
	"no-archive": true,
	"help":       true,
	"device":     true,
	"field":      true,
}

// normalizeArgs rewrites the recorder's traditional option spelling into
// something pflag understands. "-?" becomes "--help", single-dash long
// names gain a second dash and "-d 1 2 3" expands to one --devices flag
// per id. Everything after "--" is passed through untouched.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return append(out, args[i:]...)
		case arg == "-?":
			out = append(out, "--help")
		case arg == "-d" || arg == "--devices" || arg == "-devices":
			if i+1 >= len(args) {
				out = append(out, "--devices")
				continue
			}
			// The first value is always taken so a malformed id is
			// reported by the flag parser.
			i++
			out = append(out, "--devices="+args[i])
			for i+1 < len(args) && isID(args[i+1]) {
				i++
				out = append(out, "--devices="+args[i])
			}
		case isSingleDashLong(arg):
			out = append(out, "-"+arg)
		default:
			out = append(out, arg)
		}
	}
	return out
}

func isSingleDashLong(arg string) bool {
	if len(arg) < 3 || arg[0] != '-' || arg[1] == '-' {
		return false
	}
	name, _, _ := strings.Cut(arg[1:], "=")
	return longFlags[name]
}

func isID(s string) bool {
	_, err := strconv.ParseUint(s, 10, 32)
	return err == nil
}
