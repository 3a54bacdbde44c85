// Package schema declares the expected types of test-case variables.
//
// A test case may carry a schema as a map of variable names to type strings:
//
//	schema:
//	  attempts: int
//	  user: string
//	  tags: "[string]"
//
// ParseTypeMap turns that map into a Schema, and Validate checks the initial
// variables against it before a run starts. Variables declared in the schema but
// not present yet are allowed, since steps may set them later; use Require when
// a value must exist up front.
package schema
