/*
Package runner runs batches of test cases.

Test cases come from a ports.TestCaseLoader and run concurrently up to a
limit, each through its own engine run. An optional ports.Locker keeps two
processes from running the same test case at once.

# Usage

	r := runner.New(engine, file.NewLoader("./cases"),
		runner.WithConcurrency(4),
		runner.WithLogger(logger),
	)

	summary, err := r.RunAll(ctx)
	if err != nil {
		log.Fatal(err)
	}
	if !summary.OK() {
		os.Exit(1)
	}
*/
package runner
