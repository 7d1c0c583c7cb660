package decider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/careloop/icumesh/core"
)

// SystemPrompt returns the reasoning instructions for an LLM-backed decider
// of the given role. The response contract is a single JSON object so the
// adapters can parse outcomes without tool calling.
func SystemPrompt(role core.Role) string {
	return fmt.Sprintf(`You are the %s agent in an ICU decision-support simulation.
You receive one event and the current patient snapshot. Respond with exactly one JSON object, no prose:
{"action":"decision"|"none","kind":"clinical_assessment"|"medication_order"|"escalation"|"nursing_intervention"|"drug_interaction_alert","urgency":"routine"|"elevated"|"high"|"critical","confidence":0.0-1.0,"summary":"...","reasoning":"..."}
Use "action":"none" when no intervention is warranted. Stay within your role's scope.`, role)
}

// EventPrompt renders the event plus patient snapshot as the user turn for an
// LLM-backed decider.
func EventPrompt(ev core.Event, snapshot *core.Patient) string {
	var b strings.Builder
	fmt.Fprintf(&b, "event kind: %s\n", ev.EventKind())
	if payload, err := json.Marshal(ev); err == nil {
		fmt.Fprintf(&b, "event: %s\n", payload)
	}
	if snapshot != nil {
		fmt.Fprintf(&b, "patient %s: diagnosis=%s severity=%s\n",
			snapshot.ID, snapshot.Demographics.Diagnosis, snapshot.Demographics.Severity)
		if vitals, err := json.Marshal(snapshot.Vitals); err == nil {
			fmt.Fprintf(&b, "vitals: %s\n", vitals)
		}
		if len(snapshot.Medications) > 0 {
			meds := make([]string, 0, len(snapshot.Medications))
			for name := range snapshot.Medications {
				meds = append(meds, name)
			}
			fmt.Fprintf(&b, "active medications: %s\n", strings.Join(meds, ", "))
		}
	}
	return b.String()
}

// llmReply is the JSON contract produced by LLM-backed deciders.
type llmReply struct {
	Action     string  `json:"action"`
	Kind       string  `json:"kind"`
	Urgency    string  `json:"urgency"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
	Reasoning  string  `json:"reasoning"`
}

// ParseOutcome converts a raw model completion into an Outcome for the given
// role and patient. Code fences are tolerated; anything unparseable or
// failing Decision validation is an error, which the runtime treats as "no
// action this cycle".
func ParseOutcome(role core.Role, patientID, raw string) (Outcome, error) {
	text := strings.TrimSpace(raw)
	if i := strings.Index(text, "{"); i >= 0 {
		if j := strings.LastIndex(text, "}"); j > i {
			text = text[i : j+1]
		}
	}

	var reply llmReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return Outcome{}, fmt.Errorf("decider reply is not valid JSON: %w", err)
	}
	if reply.Action == "none" || reply.Action == "" {
		return Outcome{}, nil
	}
	if patientID == "" {
		return Outcome{}, fmt.Errorf("decider produced a decision for an event without patient context")
	}

	urgency, err := core.ParseUrgency(reply.Urgency)
	if err != nil {
		return Outcome{}, err
	}
	d, err := core.NewDecision(patientID, role, core.DecisionKind(reply.Kind), urgency, reply.Confidence, reply.Summary)
	if err != nil {
		return Outcome{}, err
	}
	d.Reasoning = reply.Reasoning
	return Outcome{Decision: &d}, nil
}
