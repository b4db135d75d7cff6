package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rcliao/guardia-ai/internal/app"
	"github.com/rcliao/guardia-ai/internal/model"
	"github.com/rcliao/guardia-ai/internal/nav"
)

// parseAssignments splits "field=value" arguments. Values may contain '='.
func parseAssignments(args []string) (map[string]string, []string, error) {
	fields := make(map[string]string, len(args))
	order := make([]string, 0, len(args))
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, nil, fmt.Errorf("expected field=value, got %q", a)
		}
		name = strings.TrimSpace(name)
		if _, seen := fields[name]; !seen {
			order = append(order, name)
		}
		fields[name] = value
	}
	return fields, order, nil
}

func splitList(s string) []string {
	var out []string
	for _, it := range strings.Split(s, ",") {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// load opens a stored record the way the dashboard does: through the list
// matching its status.
func load(a *app.App, id string) error {
	rec, ok := a.Store().Get(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, app.ErrNotFound)
	}
	a.Home()
	var err error
	if rec.Status == model.StatusSeen {
		_, err = a.OpenSeen()
	} else {
		_, err = a.OpenPending()
	}
	if err != nil {
		return err
	}
	_, err = a.Select(id)
	return err
}

// loadForEditing opens a stored record on the intake form.
func loadForEditing(a *app.App, id string) error {
	if err := load(a, id); err != nil {
		return err
	}
	if a.View() == nav.HistoryEditor {
		_, err := a.Back()
		return err
	}
	return nil
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [s/N] ", prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "s", "si", "sí", "y", "yes":
		return true
	}
	return false
}
