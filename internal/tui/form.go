package tui

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-faster/errors"
	"github.com/jesseduffield/gocui"
	"github.com/shopspring/decimal"
)

const formTimeLayout = "2006-01-02 15:04"

// formField is one editable line. Fields with options cycle through them
// instead of accepting text.
type formField struct {
	Label   string
	Value   string
	Options []string
}

type formState struct {
	// id is empty for a new record.
	id       string
	original any
	fields   []formField
	index    int
	busy     bool
}

func (f *formState) value(label string) string {
	for _, field := range f.fields {
		if field.Label == label {
			return strings.TrimSpace(field.Value)
		}
	}
	return ""
}

type formEditor struct {
	ui *UI
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.form == nil || view == nil || ui.form.busy {
		return false
	}
	field := &ui.form.fields[ui.form.index]

	if len(field.Options) > 0 {
		switch key {
		case gocui.KeyArrowRight, gocui.KeySpace:
			field.Value = cycleOption(field.Options, field.Value, 1)
		case gocui.KeyArrowLeft:
			field.Value = cycleOption(field.Options, field.Value, -1)
		}
		ui.renderForm(view)
		return true
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}

	ui.renderForm(view)
	return true
}

func cycleOption(options []string, current string, delta int) string {
	if len(options) == 0 {
		return current
	}
	index := slices.Index(options, current)
	if index < 0 {
		if delta > 0 {
			return options[0]
		}
		return options[len(options)-1]
	}
	index = (index + delta + len(options)) % len(options)
	return options[index]
}

// mergePatch returns the top-level fields that differ between original and
// updated as a JSON merge patch. Removed fields map to nil.
func mergePatch(original, updated any) (map[string]any, error) {
	before, err := json.Marshal(original)
	if err != nil {
		return nil, errors.Wrap(err, "encode original")
	}
	after, err := json.Marshal(updated)
	if err != nil {
		return nil, errors.Wrap(err, "encode update")
	}
	raw, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		return nil, errors.Wrap(err, "diff records")
	}
	patch := map[string]any{}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, errors.Wrap(err, "decode patch")
	}
	return patch, nil
}

func parseQuantity(value string) (int64, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, errors.New("invalid quantity")
	}
	return parsed, nil
}

func parsePrice(value string) (decimal.Decimal, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if trimmed == "" {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, errors.New("invalid price")
	}
	return parsed, nil
}

func parseSchedule(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	parsed, err := time.ParseInLocation(formTimeLayout, trimmed, time.Local)
	if err != nil {
		return time.Time{}, errors.New("invalid schedule, use YYYY-MM-DD HH:MM")
	}
	return parsed, nil
}
