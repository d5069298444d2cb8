package orchestration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAnswer_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantBool bool
		isBool   bool
		text     string
	}{
		{name: "string", input: `"coder"`, text: "coder"},
		{name: "true", input: `true`, wantBool: true, isBool: true},
		{name: "false", input: `false`, isBool: true},
		{name: "string true", input: `"true"`, wantBool: true, text: "true"},
		{name: "string yes", input: `"yes"`, text: "yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a LedgerAnswer
			require.NoError(t, json.Unmarshal([]byte(tt.input), &a))
			assert.Equal(t, tt.isBool, a.IsBool())
			assert.Equal(t, tt.wantBool, a.Bool())
			if !tt.isBool {
				text, ok := a.Text()
				assert.True(t, ok)
				assert.Equal(t, tt.text, text)
			}
		})
	}
}

func TestLedgerAnswer_RejectsOtherTypes(t *testing.T) {
	var a LedgerAnswer
	assert.Error(t, json.Unmarshal([]byte(`42`), &a))
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &a))
}

func TestLedgerAnswer_MarshalKeepsKind(t *testing.T) {
	data, err := json.Marshal(ProgressLedgerItem{Reason: "r", Answer: BoolAnswer(true)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reason":"r","answer":true}`, string(data))

	data, err = json.Marshal(ProgressLedgerItem{Reason: "r", Answer: StringAnswer("coder")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reason":"r","answer":"coder"}`, string(data))
}

func TestLedgerAnswer_String(t *testing.T) {
	assert.Equal(t, "true", BoolAnswer(true).String())
	assert.Equal(t, "coder", StringAnswer("coder").String())
	assert.Equal(t, "", LedgerAnswer{}.String())

	_, ok := BoolAnswer(false).Text()
	assert.False(t, ok)
}

func TestProgressLedger_IsStalling(t *testing.T) {
	tests := []struct {
		name     string
		inLoop   bool
		progress bool
		want     bool
	}{
		{name: "progressing", progress: true, want: false},
		{name: "looping", inLoop: true, progress: true, want: true},
		{name: "no progress", want: true},
		{name: "both", inLoop: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ProgressLedger{
				IsInLoop:            ProgressLedgerItem{Answer: BoolAnswer(tt.inLoop)},
				IsProgressBeingMade: ProgressLedgerItem{Answer: BoolAnswer(tt.progress)},
			}
			assert.Equal(t, tt.want, l.IsStalling())
		})
	}
}

func TestProgressLedger_Decode(t *testing.T) {
	raw := `{
		"is_request_satisfied": {"reason": "not yet", "answer": false},
		"is_in_loop": {"reason": "no", "answer": false},
		"is_progress_being_made": {"reason": "yes", "answer": true},
		"next_speaker": {"reason": "best fit", "answer": "coder"},
		"instruction_or_question": {"reason": "next", "answer": "Write the code."}
	}`

	var l ProgressLedger
	require.NoError(t, json.Unmarshal([]byte(raw), &l))
	assert.False(t, l.IsRequestSatisfied.Answer.Bool())
	assert.False(t, l.IsStalling())
	next, ok := l.NextSpeaker.Answer.Text()
	require.True(t, ok)
	assert.Equal(t, "coder", next)
	assert.Equal(t, "Write the code.", l.InstructionOrQuestion.Answer.String())
}
