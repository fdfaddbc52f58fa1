// Package harness runs YAML scenarios against a fresh knowledge-graph store
// and compares the resulting graph with golden snapshots.
//
// # Scenario Format
//
//	name: chain_search
//	description: "Search follows relations up to the requested depth"
//	steps:
//	  - op: create_entity
//	    as: a
//	    name: A
//	  - op: create_reltype
//	    as: contains
//	    name: contains
//	    reverse: is contained in
//	  - op: relate
//	    from: a
//	    reltype: contains
//	    to: b
//	  - op: add_to_group
//	    group: g
//	    entity: b
//	    expect_error: MIXED_CLASSES
//	assertions:
//	  - type: search
//	    from: a
//	    text: needle
//	    depth: 2
//	    expect: [c]
//
// Steps name what they create with "as"; later steps and assertions refer to
// entities, relation types, classes and groups by those aliases. The aliases
// "system" (the system entity) and "has" (the base relation type) are always
// defined. A step with expect_error must fail with that store error code.
//
// # Step Types
//
//   - create_entity, create_reltype, create_class, create_group
//   - relate, add_text, add_to_group, set_class
//   - archive, delete_entity
//
// # Assertion Types
//
//   - search: entities found from an alias, compared as a set
//   - group_members: members of a group in sorting order
//   - entity_count: number of plain entities, optionally counting archived ones
//   - entity_exists: whether an aliased entity is still present
//
// # Deterministic Testing
//
// Every scenario runs in its own in-memory SQLite database with
// testutil.DeterministicClock and testutil.SequentialIDGenerator, so ids,
// dates and the rendered snapshot are identical across runs.
package harness
