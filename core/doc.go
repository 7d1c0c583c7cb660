// Package core provides the foundational domain types shared by every other
// package in ICUMesh. It defines:
//
//   - Patients (demographics, vitals, labs, active medications) and their
//     read-only snapshot semantics
//   - The typed event vocabulary carried on the bus (vital updates, lab
//     results, medication changes, agent messages, decisions, alerts)
//   - Decisions and Messages as constructor-validated tagged variants
//   - The total Urgency ordering used for arbitration and alert sorting
//   - The error taxonomy (NotFound, BusClosed, DecisionTimeout, SetupError)
//
// The package intentionally keeps implementation concerns (storage, bus
// delivery, agent loops, arbitration) out of scope so that higher layers can
// depend on small immutable values without import cycles.
package core
