package agent

// BaseAgent bundles the identity every member agent exposes to an
// orchestration. Embed it in concrete agents and supply Invoke to satisfy
// core.Agent.
type BaseAgent struct {
	name        string // Correlation key; unique within a team
	description string // Roster entry shown to the planning model
}

// NewBaseAgent constructs a BaseAgent.
func NewBaseAgent(name, description string) BaseAgent {
	return BaseAgent{name: name, description: description}
}

// Name returns the agent name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns what the agent is good at.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }
