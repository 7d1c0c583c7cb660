// Package patient houses the Patient State Store: the single structure in
// the system mutated by more than one component (the data feed each tick and
// the coordinator when it applies authoritative medication orders).
//
// Mutations are serialized per patient, never globally, so disjoint patients
// mutate concurrently without contention. Reads always return deep-copied
// snapshots; a reader can never observe a half-applied update or mutate the
// store through a returned value.
package patient
