// Package types defines the categorical model the migration engine works on:
// typesides and values, schemas with their paths, equations and congruence,
// instances, mappings between schemas, and the error taxonomy shared by the
// validator and the migration operators.
//
// Schemas are arenas addressed by NodeID and EdgeID. They are built
// incrementally, every construction call failing fast, and then frozen.
// Instances and mappings require frozen schemas, and frozen schemas may be
// read concurrently.
package types
