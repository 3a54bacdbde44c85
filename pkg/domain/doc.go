/*
Package domain contains the core data model of the tendril control-flow engine.

It defines the typed step tree of a test case, the condition expression AST, the
loop and variable descriptors, and the per-run ExecutionContext. This package is
kept pure and free of I/O; browsers, AI agents and storage live behind the
interfaces in pkg/ports.

# Key Entities

  - Step: a node of the test case tree (Action, Condition, Loop or Variable).
  - Expression: a parsed condition (Element, Text, State, Variable or Compound).
  - ExecutionContext: variables, loop stack, path history and error stack of one run.
  - PathEntry: an append-only record of a branch or loop decision.
  - VariableSnapshot: an immutable copy of the variables after a mutation.
*/
package domain
