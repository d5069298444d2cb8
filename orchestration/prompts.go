package orchestration

// Prompts are text/template sources rendered by StandardManager.
//
// Available fields: .Task (task text), .Team (roster lines), .Names
// (comma separated participant names), .Facts, .Plan and .OldFacts.
type Prompts struct {
	TaskLedgerFacts       string
	TaskLedgerPlan        string
	TaskLedgerFull        string
	TaskLedgerFactsUpdate string
	TaskLedgerPlanUpdate  string
	ProgressLedger        string
	FinalAnswer           string
}

// DefaultPrompts returns the built-in prompt set.
func DefaultPrompts() Prompts {
	return Prompts{
		TaskLedgerFacts:       taskLedgerFactsPrompt,
		TaskLedgerPlan:        taskLedgerPlanPrompt,
		TaskLedgerFull:        taskLedgerFullPrompt,
		TaskLedgerFactsUpdate: taskLedgerFactsUpdatePrompt,
		TaskLedgerPlanUpdate:  taskLedgerPlanUpdatePrompt,
		ProgressLedger:        progressLedgerPrompt,
		FinalAnswer:           finalAnswerPrompt,
	}
}

// withDefaults fills empty fields from DefaultPrompts.
func (p Prompts) withDefaults() Prompts {
	d := DefaultPrompts()
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return Prompts{
		TaskLedgerFacts:       pick(p.TaskLedgerFacts, d.TaskLedgerFacts),
		TaskLedgerPlan:        pick(p.TaskLedgerPlan, d.TaskLedgerPlan),
		TaskLedgerFull:        pick(p.TaskLedgerFull, d.TaskLedgerFull),
		TaskLedgerFactsUpdate: pick(p.TaskLedgerFactsUpdate, d.TaskLedgerFactsUpdate),
		TaskLedgerPlanUpdate:  pick(p.TaskLedgerPlanUpdate, d.TaskLedgerPlanUpdate),
		ProgressLedger:        pick(p.ProgressLedger, d.ProgressLedger),
		FinalAnswer:           pick(p.FinalAnswer, d.FinalAnswer),
	}
}

const taskLedgerFactsPrompt = `Below I will present you a request. Before we begin addressing the request, please answer the following pre-survey to the best of your ability. Keep in mind that you have broad general knowledge and strong puzzle solving skills to draw from.

Here is the request:

{{.Task}}

Here is the pre-survey:

    1. Please list any specific facts or figures that are GIVEN in the request itself. It is possible that there are none.
    2. Please list any facts that may need to be looked up, and WHERE SPECIFICALLY they might be found. In some cases, authoritative sources are mentioned in the request itself.
    3. Please list any facts that may need to be derived (e.g., via logical deduction, simulation, or computation).
    4. Please list any facts that are recalled from memory, hunches, well-reasoned guesses, etc.

When answering this survey, keep in mind that "facts" will typically be specific names, dates, statistics, etc. Your answer should use these headings:

    1. GIVEN OR VERIFIED FACTS
    2. FACTS TO LOOK UP
    3. FACTS TO DERIVE
    4. EDUCATED GUESSES

DO NOT include any other headings or sections in your response. DO NOT list next steps or plans until asked to do so.`

const taskLedgerPlanPrompt = `To address this request we have assembled the following team:

{{.Team}}

Based on the team composition, and known and unknown facts, please devise a short bullet-point plan for addressing the original request. Remember, there is no requirement to involve all team members. A team member's particular expertise may not be needed for this task.`

const taskLedgerFullPrompt = `We are working to address the following user request:

{{.Task}}


To answer this request we have assembled the following team:

{{.Team}}


Here is an initial fact sheet to consider:

{{.Facts}}


Here is the plan to follow as best as possible:

{{.Plan}}`

const taskLedgerFactsUpdatePrompt = `As a reminder, we are working to solve the following task:

{{.Task}}

It is clear we are not making as much progress as we would like, but we may have learned something new. Please rewrite the following fact sheet, updating it to include anything new we have learned that may be helpful. Example edits include adding new guesses or moving educated guesses to verified facts if appropriate. Updates may be made to any section of the fact sheet, and more than one section can be edited. This is an especially good time to update educated guesses, so please at least add or update one educated guess or hunch, and explain your reasoning.

Here is the old fact sheet:

{{.OldFacts}}`

const taskLedgerPlanUpdatePrompt = `Please briefly explain what went wrong on this last run (the root cause of the failure), and then come up with a new plan that takes steps and includes hints to overcome prior challenges and especially avoids repeating the same mistakes. As before, the new plan should be concise, expressed in bullet-point form, and consider the following team composition (do not involve any other outside people since we cannot contact anyone else):

{{.Team}}`

const progressLedgerPrompt = `Recall we are working on the following request:

{{.Task}}

And we have assembled the following team:

{{.Team}}

To make progress on the request, please answer the following questions, including necessary reasoning:

    - Is the request fully satisfied? (True if complete, or False if the original request has yet to be SUCCESSFULLY and FULLY addressed)
    - Are we in a loop where we are repeating the same requests and/or getting the same responses as before? Loops can span multiple turns.
    - Are we making forward progress? (True if just starting, or recent messages are adding value. False if recent messages show evidence of being stuck in a loop or if there is evidence of significant barriers to success)
    - Who should speak next? (select from: {{.Names}})
    - What instruction or question would you give this team member? (Phrase as if speaking directly to them, and include any specific information they may need)

Please output an answer in pure JSON format according to the following schema. The JSON object must be parsable as-is. DO NOT OUTPUT ANYTHING OTHER THAN JSON, AND DO NOT DEVIATE FROM THIS SCHEMA:

    {
        "is_request_satisfied": {
            "reason": string,
            "answer": boolean
        },
        "is_in_loop": {
            "reason": string,
            "answer": boolean
        },
        "is_progress_being_made": {
            "reason": string,
            "answer": boolean
        },
        "next_speaker": {
            "reason": string,
            "answer": string (select from: {{.Names}})
        },
        "instruction_or_question": {
            "reason": string,
            "answer": string
        }
    }`

const finalAnswerPrompt = `We are working on the following task:
{{.Task}}

We have completed the task.

The above messages contain the conversation that took place to complete the task.

Based on the information gathered, provide the final answer to the original request.
The answer should be phrased as if you were speaking to the user.`
