/*
Package ports defines the driven ports (interfaces) of the tendril engine.

These interfaces decouple the control-flow core from the browser, the AI agent
and storage, so the engine can be driven by Playwright, by test fakes, or by any
other element-locating backend.

# Key Interfaces

  - Locator: resolves a natural-language prompt or selector to an element.
  - CollectionLocator: optional extension enumerating every match of a selector.
  - ActionExecutor: performs the browser interaction of an action step.
  - TestCaseLoader: supplies test cases (step tree plus initial variables).
  - ReportStore: persists run reports.
*/
package ports
