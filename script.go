package svsync

import (
	"bytes"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// payloadMarker prefixes the payload line of a generated entry script.
// The line is a shell comment: the interpreter never reaches it (the exec
// line replaces the shell), and even a failed exec cannot run it.
const payloadMarker = "# svsync:argv "

// launchSpec is the serialized form of what an entry script launches.
// The argument vector travels as data, never as interpolated shell source,
// so arguments with spaces, quotes, or metacharacters survive unchanged
// and cannot inject into the script.
type launchSpec struct {
	// Delay is the number of seconds to wait before exec
	Delay int `json:"delay"`
	// Argv is the literal argument vector to exec
	Argv []string `json:"argv"`
}

// BuildEntryScript generates the content of an entry script that waits
// delay seconds and then replaces itself with argv. The script execs the
// launcher binary, which reads the payload line back out of the script
// and execs the argument vector directly, without a shell.
func BuildEntryScript(launcherPath string, delay int, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("svsync: empty argument vector")
	}

	payload, err := json.Marshal(launchSpec{Delay: delay, Argv: argv})
	if err != nil {
		return nil, fmt.Errorf("encoding launch payload: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("#!/bin/sh\n")
	buf.WriteString("exec " + shellQuote(launcherPath) + " \"$0\"\n")
	buf.WriteString(payloadMarker)
	buf.Write(payload)
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

// ParseEntryScript recovers the argument vector and start delay embedded
// in a generated entry script. The recovered argv is exactly what
// BuildEntryScript was given, element for element.
func ParseEntryScript(content []byte) (argv []string, delay int, err error) {
	for _, line := range bytes.Split(content, []byte("\n")) {
		if !bytes.HasPrefix(line, []byte(payloadMarker)) {
			continue
		}

		var ls launchSpec
		if err := json.Unmarshal(line[len(payloadMarker):], &ls); err != nil {
			return nil, 0, fmt.Errorf("decoding launch payload: %w", err)
		}
		if len(ls.Argv) == 0 {
			return nil, 0, fmt.Errorf("svsync: launch payload has empty argument vector")
		}
		return ls.Argv, ls.Delay, nil
	}

	return nil, 0, ErrNoPayload
}

// shellQuote escapes a string for safe use in shell scripts. Only the
// launcher path is ever quoted; the supervised command travels as payload
// data and never passes through the shell.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}

	if !needsShellQuoting(s) {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// needsShellQuoting checks if a string contains characters that require shell quoting
func needsShellQuoting(s string) bool {
	// Characters that require quoting in shell
	const specialChars = " \t\n'\"\\$`!*?[](){}<>|&;~"

	for _, r := range s {
		if strings.ContainsRune(specialChars, r) {
			return true
		}
	}
	return false
}
