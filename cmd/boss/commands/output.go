package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"github.com/teranos/boss/boss"
	"github.com/teranos/boss/errors"
)

// Output formats accepted by -o
const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

// parseJSONArg validates a JSON argument. "-" reads the value from stdin.
func parseJSONArg(arg string, stdin io.Reader) (json.RawMessage, error) {
	data := []byte(arg)
	if arg == "-" {
		read, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read JSON from stdin")
		}
		data = read
	}
	data = []byte(strings.TrimSpace(string(data)))
	if !json.Valid(data) {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("invalid JSON: %s", truncate(string(data), 60)),
			`quote the value for your shell, e.g. '{"to":"ada"}'`,
		)
	}
	return json.RawMessage(data), nil
}

// writeJobs renders jobs as JSON (one document) or YAML
func writeJobs(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal job")
	}

	switch format {
	case formatJSON:
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		// Through a generic value so the job keeps its JSON field names
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return errors.Wrap(err, "failed to convert job for YAML")
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return errors.Wrap(err, "failed to marshal job to YAML")
		}
		_, err = w.Write(out)
		return err
	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: json, yaml)", format)
	}
}

// jobRows builds table rows for ls
func jobRows(jobs []*boss.Job) [][]string {
	rows := [][]string{{"ID", "QUEUE", "STATE", "CREATED", "COMPLETED", "NOTIFIED"}}
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			j.Queue,
			colorState(j.State),
			j.CreatedAt.Local().Format(time.DateTime),
			formatTime(j.CompletedAt),
			formatTime(j.NotifiedAt),
		})
	}
	return rows
}

func renderTable(rows [][]string) error {
	return pterm.DefaultTable.WithHasHeader().WithData(rows).WithWriter(os.Stdout).Render()
}

func colorState(s boss.State) string {
	switch s {
	case boss.StateCompleted:
		return pterm.Green(string(s))
	case boss.StateFailed:
		return pterm.Red(string(s))
	case boss.StateActive:
		return pterm.Yellow(string(s))
	default:
		return pterm.Gray(string(s))
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
