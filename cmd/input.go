package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/s0up4200/zymmr/zymmr"
)

// readPassword is replaced in tests to avoid touching the terminal
var readPassword = term.ReadPassword

// promptPassword asks for the Zymmr password on an interactive terminal
func promptPassword(username string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("zymmr.password is not set (use ZYMMR_PASSWORD or the config file)")
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// confirm prints prompt and reports whether the answer was yes
func confirm(r io.Reader, w io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("failed to read input: %w", err)
		}
		// No input (Ctrl+D or similar)
		return false, nil
	}

	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}

// parseFilters turns --filter flags into server-side filters. Each flag is
// either field=value or field:operator:value. Values of in and not in are
// comma separated lists.
func parseFilters(flags []string) (zymmr.Filters, error) {
	if len(flags) == 0 {
		return nil, nil
	}

	filters := make(zymmr.Filters, len(flags))
	for _, f := range flags {
		if parts := strings.SplitN(f, ":", 3); len(parts) == 3 && zymmr.IsOperator(strings.ToLower(parts[1])) {
			field := strings.TrimSpace(parts[0])
			if field == "" {
				return nil, fmt.Errorf("invalid filter %q: missing field", f)
			}
			op := strings.ToLower(parts[1])
			filters[field] = zymmr.Cond(op, conditionValue(op, parts[2]))
			continue
		}

		field, value, ok := strings.Cut(f, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid filter %q: expected field=value or field:operator:value", f)
		}
		filters[field] = value
	}

	return filters, nil
}

func conditionValue(op, raw string) any {
	switch op {
	case zymmr.OpIn, zymmr.OpNotIn, zymmr.OpBetween:
		parts := strings.Split(raw, ",")
		values := make([]any, len(parts))
		for i, p := range parts {
			values[i] = strings.TrimSpace(p)
		}
		return values
	default:
		return raw
	}
}

// parseData reads a JSON object from --data. A value starting with @ names
// a file to read, and @- reads stdin.
func parseData(raw string, stdin io.Reader) (zymmr.Document, error) {
	if raw == "" {
		return nil, errors.New("--data is required")
	}

	data := []byte(raw)
	if path, ok := strings.CutPrefix(raw, "@"); ok {
		var err error
		if path == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read data: %w", err)
		}
	}

	var doc zymmr.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("data must be a JSON object: %w", err)
	}
	if doc == nil {
		return nil, errors.New("data must be a JSON object")
	}
	return doc, nil
}
