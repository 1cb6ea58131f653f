// Package errors provides the structured error taxonomy for agent execution.
//
// Every failure an agent can report falls into one of four classes, each with
// a fixed effect on the task and on the agent:
//
//   - Contract: the caller broke a precondition (task not pending, agent busy,
//     agent not initialized, agent disposed). Returned synchronously; neither
//     the task nor the agent changes.
//   - Task: the task's own behavior failed. The task is marked failed with the
//     error attached; the agent returns to idle.
//   - Integrity: the agent itself is compromised. The task is marked failed and
//     the agent is quarantined in error status until re-initialized.
//   - Lifecycle: initialize or cleanup could not acquire or release resources.
//
// A fifth category, Transient, covers infrastructure outside the agent
// (stores, buses, LLM providers) so pool-level code can report it uniformly.
//
// # Usage
//
//	err := errors.Contract(errors.ErrCodeAgentBusy, "agent a1 is busy")
//
//	if errors.IsContract(err) {
//	    // caller bug: route the task somewhere else
//	}
//
// Handlers signal that the agent must be quarantined by returning an
// integrity error:
//
//	return nil, errors.Integrity("connection pool poisoned")
//
// # JSON Serialization
//
// Errors serialize to JSON so they can travel with a terminal task through a
// journal or a message bus:
//
//	data, _ := json.Marshal(agentErr)
//	var decoded errors.Error
//	_ = json.Unmarshal(data, &decoded)
package errors
