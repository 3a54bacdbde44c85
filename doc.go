/*
Package tendril is an adaptive control-flow engine for AI-assisted browser tests.

A test case is a tree of steps. Action steps are forwarded to a browser driver,
while condition, loop and variable steps are interpreted by the engine: branches
are chosen by evaluating conditions against the live page and the run's
variables, loops repeat a body a bounded number of times, and variables carry
values between steps.

# Concept

The engine never drives the browser itself. It depends on two ports: a Locator
that resolves a selector or a natural-language prompt to an element, and an
ActionExecutor that performs clicks, typing and navigation. Both are plain
interfaces, so the same test case runs against Playwright, an AI agent or a
test fake.

# Conditions

Conditions use a small grammar:

	element "#cart" is visible
	text "Welcome" exists
	page state is loading
	variable count > 3
	not (element "Submit" is disabled) and variable retries < 5

Keywords exist in English and Portuguese. With natural language enabled, free
text such as "if the login button is visible" is mapped onto the same
expressions.

# Usage

	eng := tendril.New(
		tendril.WithLocator(locator),
		tendril.WithActionExecutor(actions),
	)

	report, err := eng.Run(ctx, tc)
	if err != nil {
		log.Fatal(err) // invalid test case or report store failure
	}
	fmt.Println(report.Status)

A failed step does not make Run return an error; it is recorded in the report.
*/
package tendril
