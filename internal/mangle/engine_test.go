package mangle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"scrapeforge/internal/mangle"
)

const testSchema = `
.decl vendor_script(ScriptURL)
.decl known_vendor_url(ScriptURL)
.decl is_vendor(ScriptURL, Vendor)

known_vendor_url("https://cdnjs.cloudflare.com/ajax/libs/turnstile.js").

is_vendor(Script, /cloudflare) :- vendor_script(Script), known_vendor_url(Script).
`

func TestEngineAddFactAndQuery(t *testing.T) {
	eng := mangle.NewEngine(mangle.DefaultConfig())
	require.NoError(t, eng.LoadSchemaString(testSchema))

	require.NoError(t, eng.AddFact("vendor_script", "https://cdnjs.cloudflare.com/ajax/libs/turnstile.js"))

	rows, err := eng.Query(context.Background(), "is_vendor(Script, Vendor)")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Contains(t, rows[0], "Script")
	require.Contains(t, rows[0], "Vendor")
}

func TestEngineAddFactUndeclaredPredicateErrors(t *testing.T) {
	eng := mangle.NewEngine(mangle.DefaultConfig())
	require.NoError(t, eng.LoadSchemaString(testSchema))

	err := eng.AddFact("nonexistent_predicate", "x")
	require.Error(t, err)
}

func TestEngineAddFactBeforeSchemaErrors(t *testing.T) {
	eng := mangle.NewEngine(mangle.DefaultConfig())
	err := eng.AddFact("vendor_script", "x")
	require.Error(t, err)
}

func TestEngineResetClearsFactsButKeepsSchema(t *testing.T) {
	eng := mangle.NewEngine(mangle.DefaultConfig())
	require.NoError(t, eng.LoadSchemaString(testSchema))
	require.NoError(t, eng.AddFact("vendor_script", "https://cdnjs.cloudflare.com/x.js"))

	eng.Reset()

	rows, err := eng.Query(context.Background(), "is_vendor(Script, Vendor)")
	require.NoError(t, err)
	require.Empty(t, rows)

	require.NoError(t, eng.AddFact("vendor_script", "https://cdnjs.cloudflare.com/y.js"))
}

func TestEngineFactLimitEnforced(t *testing.T) {
	eng := mangle.NewEngine(mangle.Config{FactLimit: 1})
	require.NoError(t, eng.LoadSchemaString(testSchema))

	require.NoError(t, eng.AddFact("vendor_script", "https://a.example/one.js"))
	err := eng.AddFact("vendor_script", "https://a.example/two.js")
	require.Error(t, err)
}
