package file_test

import (
	"context"
	"testing"

	"github.com/aretw0/tendril/internal/testutils"
	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/domain"
	contract "github.com/aretw0/tendril/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cases = map[string]string{
	"login.yaml": `
name: Login
variables:
  attempts: 0
steps:
  - id: open
    action: navigate
    target: /login
  - id: retry
    loop: "while attempts < 3"
    body:
      - id: bump
        variable: "increment attempts"
`,
	"shop/cart.json": `{
  "name": "Cart",
  "steps": [{"id": "add", "action": "click", "target": "#add"}]
}`,
	"shop/checkout.md": `---
name: Checkout
steps:
  - id: pay
    if: element "#pay" is enabled
    then:
      - id: click-pay
        action: click
        target: "#pay"
---
Pays for the items in the cart.
`,
	"README.txt":           "not a test case",
	".tendril/reports.yaml": "ignored: true",
}

func TestFileLoader_Contract(t *testing.T) {
	dir := testutils.WriteFiles(t, cases)

	contract.TestCaseLoaderContractTest(t, file.NewLoader(dir), map[string]string{
		"login":         "Login",
		"shop/cart":     "Cart",
		"shop/checkout": "Checkout",
	})
}

func TestFileLoader_DecodesEveryFormat(t *testing.T) {
	dir := testutils.WriteFiles(t, cases)
	loader := file.NewLoader(dir)
	ctx := context.Background()

	login, err := loader.Load(ctx, "login")
	require.NoError(t, err)
	assert.Equal(t, "login", login.ID)
	assert.Equal(t, 0, login.Variables["attempts"])
	require.Len(t, login.Steps, 2)
	loop, ok := login.Steps[1].(*domain.LoopStep)
	require.True(t, ok)
	assert.Equal(t, "while attempts < 3", loop.Expression)

	checkout, err := loader.Load(ctx, "shop/checkout")
	require.NoError(t, err)
	assert.Equal(t, "Pays for the items in the cart.", checkout.Description)
	_, ok = checkout.Steps[0].(*domain.ConditionStep)
	assert.True(t, ok)
}

func TestFileLoader_MarkdownWithoutFrontMatter(t *testing.T) {
	dir := testutils.WriteFiles(t, map[string]string{"notes.md": "# just notes\n"})

	_, err := file.NewLoader(dir).Load(context.Background(), "notes")
	assert.ErrorIs(t, err, file.ErrNoFrontMatter)
}

func TestFileLoader_ListSkips(t *testing.T) {
	dir := testutils.WriteFiles(t, map[string]string{
		"login.yaml":   "name: Login\nsteps:\n  - id: a\n    action: click\n    target: \"#a\"\n",
		"README.md":    "# Suite\n",
		"tendril.yaml": "log_level: debug\n",
		"guide.md":     "---\nname: Guide\nsteps:\n  - id: a\n    action: click\n    target: \"#a\"\n---\n",
	})

	ids, err := file.NewLoader(dir, file.WithIgnore("tendril.yaml")).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"guide", "login"}, ids)
}
