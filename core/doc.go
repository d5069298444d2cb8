// Package core provides the foundational domain types shared by every other
// package in magentic:
//
//   - Message (role + author name + ordered parts + metadata)
//   - History (an ordered chat transcript with explicit cloning)
//   - Agent (the member capability an orchestration drives)
//   - Thread (optional stateful conversation owned by an agent)
//
// The package intentionally keeps transport, model and orchestration
// concerns out of scope so that custom agents and completion services can be
// plugged in without pulling in the orchestration engine.
package core
