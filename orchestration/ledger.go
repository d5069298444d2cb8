package orchestration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/hupe1980/magentic/core"
)

// LedgerAnswer is the answer of a ProgressLedgerItem: a string for the
// next_speaker and instruction_or_question fields, a boolean for the yes/no
// fields. The zero value is the empty string.
type LedgerAnswer struct {
	text   string
	value  bool
	isBool bool
}

// StringAnswer returns a string answer.
func StringAnswer(s string) LedgerAnswer { return LedgerAnswer{text: s} }

// BoolAnswer returns a boolean answer.
func BoolAnswer(b bool) LedgerAnswer { return LedgerAnswer{value: b, isBool: true} }

// IsBool reports whether the answer is a boolean.
func (a LedgerAnswer) IsBool() bool { return a.isBool }

// Text returns the string answer and false when the answer is a boolean.
func (a LedgerAnswer) Text() (string, bool) {
	if a.isBool {
		return "", false
	}
	return a.text, true
}

// Bool interprets the answer as a yes/no judgment. String answers are read
// with strconv.ParseBool; anything unparsable counts as false.
func (a LedgerAnswer) Bool() bool {
	if a.isBool {
		return a.value
	}
	b, err := strconv.ParseBool(strings.TrimSpace(a.text))
	return err == nil && b
}

// String renders the answer as text, booleans as "true"/"false".
func (a LedgerAnswer) String() string {
	if a.isBool {
		return strconv.FormatBool(a.value)
	}
	return a.text
}

// MarshalJSON implements json.Marshaler.
func (a LedgerAnswer) MarshalJSON() ([]byte, error) {
	if a.isBool {
		return json.Marshal(a.value)
	}
	return json.Marshal(a.text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *LedgerAnswer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = StringAnswer(s)
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("ledger answer must be a string or boolean, got %s", data)
	}
	*a = BoolAnswer(b)
	return nil
}

// JSONSchema describes the answer as string or boolean.
func (LedgerAnswer) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "boolean"},
		},
	}
}

// ProgressLedgerItem is one judgment of the progress ledger.
type ProgressLedgerItem struct {
	Reason string       `json:"reason"`
	Answer LedgerAnswer `json:"answer"`
}

// ProgressLedger is the manager's judgment of the conversation so far,
// produced once per inner loop round.
type ProgressLedger struct {
	IsRequestSatisfied    ProgressLedgerItem `json:"is_request_satisfied"`
	IsInLoop              ProgressLedgerItem `json:"is_in_loop"`
	IsProgressBeingMade   ProgressLedgerItem `json:"is_progress_being_made"`
	NextSpeaker           ProgressLedgerItem `json:"next_speaker"`
	InstructionOrQuestion ProgressLedgerItem `json:"instruction_or_question"`
}

// IsStalling reports whether the judgment counts towards the stall counter:
// no progress is being made, or the group is in a loop.
func (l *ProgressLedger) IsStalling() bool {
	return !l.IsProgressBeingMade.Answer.Bool() || l.IsInLoop.Answer.Bool()
}

// TaskLedger holds the facts and plan produced by planning.
type TaskLedger struct {
	Facts core.Message
	Plan  core.Message
}
