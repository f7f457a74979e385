package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/memory"
)

// The concrete tool surface (trackers, chat platforms, calendars) lives
// outside this core. These built-ins exist so every agent has a working
// registry and the schema-validation path is exercised end to end.

// RememberTool stores a user preference in the journal.
type RememberTool struct {
	Journal memory.Journal
}

func (t *RememberTool) Name() string { return "remember" }
func (t *RememberTool) Description() string {
	return "Stores a user preference for later recall. Args: key (string), value (string)."
}

func (t *RememberTool) Schema() *Schema {
	return ObjectSchema(map[string]*Schema{
		"key":   StringSchema("Preference name, e.g. 'timezone'."),
		"value": StringSchema("Preference value."),
	}, "key", "value")
}

func (t *RememberTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	key, keyOk := args["key"].(string)
	value, valueOk := args["value"].(string)
	if !keyOk || !valueOk {
		return "", errors.New("missing or invalid 'key' or 'value' arguments")
	}
	if err := t.Journal.SetPreference(ctx, key, value); err != nil {
		return "", errors.Wrapf(err, "failed to store preference %q", key)
	}
	return fmt.Sprintf("Remembered %s = %s", key, value), nil
}

// RecallTool reads a user preference from the journal.
type RecallTool struct {
	Journal memory.Journal
}

func (t *RecallTool) Name() string { return "recall" }
func (t *RecallTool) Description() string {
	return "Recalls a previously stored user preference. Args: key (string)."
}

func (t *RecallTool) Schema() *Schema {
	return ObjectSchema(map[string]*Schema{
		"key": StringSchema("Preference name to look up."),
	}, "key")
}

func (t *RecallTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	key, ok := args["key"].(string)
	if !ok {
		return "", errors.New("missing or invalid 'key' argument")
	}
	value, err := t.Journal.Preference(ctx, key)
	if err == memory.ErrNotFound {
		return "", errors.New("no preference stored under %q", key)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to load preference %q", key)
	}
	return value, nil
}

// CurrentTimeTool reports the current time, optionally in a named location.
type CurrentTimeTool struct{}

func (t *CurrentTimeTool) Name() string { return "current_time" }
func (t *CurrentTimeTool) Description() string {
	return "Returns the current date and time. Args: location (string, optional IANA name like 'Europe/Berlin')."
}

func (t *CurrentTimeTool) Schema() *Schema {
	return ObjectSchema(map[string]*Schema{
		"location": StringSchema("IANA time zone name. Defaults to the local zone."),
	})
}

func (t *CurrentTimeTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	now := time.Now()
	if name, ok := args["location"].(string); ok && name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return "", errors.Wrapf(err, "unknown location %q", name)
		}
		now = now.In(loc)
	}
	return now.Format(time.RFC1123), nil
}
