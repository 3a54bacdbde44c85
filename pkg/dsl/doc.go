/*
Package dsl provides a fluent Go builder for tendril test cases.

It is an alternative to YAML or JSON documents when test cases are generated
in code or written inside Go tests.

Example usage:

	tc := dsl.New("checkout").
		Name("Checkout").
		Var("retries", 0)

	tc.Action("open", "navigate", "/cart")
	tc.If("has-items", `element ".cart-item" is visible`, func(then *dsl.Steps) {
		then.Action("pay", "click", "#pay")
	}).Else(func(els *dsl.Steps) {
		els.Action("shop", "navigate", "/shop")
	})
	tc.While("wait", "retries < 3 and page state is loading", func(body *dsl.Steps) {
		body.Increment("bump", "retries", 1)
	}).Max(10)

	report, err := engine.Run(ctx, tc.Build())
*/
package dsl
