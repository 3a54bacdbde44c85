package domain

import "errors"

// ErrNoLocator is returned when an operation needs the element locator but none was configured.
var ErrNoLocator = errors.New("no locator configured")

// ErrNoActionExecutor is returned when an action step runs without an action executor.
var ErrNoActionExecutor = errors.New("no action executor configured")

// ErrElementNotFound is returned by locators when the prompt matched nothing on the page.
var ErrElementNotFound = errors.New("element not found")

// ErrUnknownStep is returned when a step of an unsupported kind reaches the executor.
var ErrUnknownStep = errors.New("unknown step kind")

// ErrUnknownExpression is returned when an expression of an unsupported kind is evaluated.
var ErrUnknownExpression = errors.New("unknown expression kind")

// ErrInvalidLoop is returned when a loop configuration cannot be executed.
var ErrInvalidLoop = errors.New("invalid loop configuration")

// ErrCollectionNotFound is returned when a forEach collection variable does not exist.
var ErrCollectionNotFound = errors.New("collection not found")

// ErrSelectorCollection is returned when a forEach collection is a page selector
// and the configured locator cannot enumerate elements.
var ErrSelectorCollection = errors.New("selector collections require a collection locator")

// ErrTimeout is returned when a bounded callback did not finish in time.
var ErrTimeout = errors.New("operation timed out")

// ErrReportNotFound is returned when a run report cannot be found in the store.
var ErrReportNotFound = errors.New("report not found")

// ErrTestCaseNotFound is returned when a loader has no test case with the given id.
var ErrTestCaseNotFound = errors.New("test case not found")

// ErrCircuitOpen is returned when a run is cut short by its depth or error limits.
var ErrCircuitOpen = errors.New("circuit breaker open")

// ErrDegraded is recorded when a condition could not be fully evaluated and
// part of its value came from the fallback.
var ErrDegraded = errors.New("condition degraded to fallback")
