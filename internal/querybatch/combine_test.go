package querybatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	language "github.com/pagegraph/pagegraph/internal/language"
)

const getByPathQuery = `query ($path: ID!) {
  guillotine {
    get(key: $path) {
      _path
      displayName
    }
  }
}`

func mustReparse(t *testing.T, source string) *language.OperationDefinition {
	t.Helper()
	doc, err := language.ParseQuery(source)
	require.NoError(t, err, "combined query must be valid GraphQL")
	require.Len(t, doc.Operations, 1)
	return doc.Operations[0]
}

func TestCombine_AliasedBodiesInOrder(t *testing.T) {
	inputs := []*QueryAndVariables{
		{Query: getByPathQuery, Variables: map[string]any{"path": "/a"}},
		{Query: getByPathQuery, Variables: map[string]any{"path": "/b"}},
		{Query: getByPathQuery, Variables: map[string]any{"path": "/c"}},
	}
	combined := Combine(inputs)

	require.False(t, combined.Empty())
	require.Equal(t, []string{"request0", "request1", "request2"}, combined.Aliases)

	op := mustReparse(t, combined.Query)
	require.Len(t, op.SelectionSet, 3)
	for i, sel := range op.SelectionSet {
		field, ok := sel.(*language.Field)
		require.True(t, ok)
		require.Equal(t, Alias(i), field.Alias)
		require.Equal(t, RootField, field.Name)
	}
}

func TestCombine_VariablesRenamedWithoutCollision(t *testing.T) {
	inputs := []*QueryAndVariables{
		{Query: getByPathQuery, Variables: map[string]any{"path": "/a"}},
		nil,
		{Query: getByPathQuery, Variables: map[string]any{"path": "/c"}},
	}
	combined := Combine(inputs)

	require.Equal(t, map[string]any{
		"request0_path": "/a",
		"request2_path": "/c",
	}, combined.Variables)

	op := mustReparse(t, combined.Query)
	var names []string
	for _, vd := range op.VariableDefinitions {
		names = append(names, vd.Variable)
	}
	require.ElementsMatch(t, []string{"request0_path", "request2_path"}, names)

	// Every variable token in the body must use the renamed form.
	for _, sel := range op.SelectionSet {
		field := sel.(*language.Field)
		get := field.SelectionSet[0].(*language.Field)
		require.Equal(t, "get", get.Name)
		arg := get.Arguments[0]
		require.Equal(t, language.Variable, arg.Value.Kind)
		require.Contains(t, []string{"request0_path", "request2_path"}, arg.Value.Raw)
	}
}

func TestCombine_VariableRenamingIsTokenAnchored(t *testing.T) {
	// $path must not clobber $pathSuffix: renaming is per parsed token, so a
	// variable that is a prefix of another keeps both intact.
	query := `query ($path: ID!, $pathSuffix: String) {
  guillotine {
    get(key: $path) {
      children(after: $pathSuffix) {
        _path
      }
    }
  }
}`
	combined := Combine([]*QueryAndVariables{{
		Query:     query,
		Variables: map[string]any{"path": "/a", "pathSuffix": "x"},
	}})

	op := mustReparse(t, combined.Query)
	get := op.SelectionSet[0].(*language.Field).SelectionSet[0].(*language.Field)
	require.Equal(t, "request0_path", get.Arguments[0].Value.Raw)
	children := get.SelectionSet[0].(*language.Field)
	require.Equal(t, "request0_pathSuffix", children.Arguments[0].Value.Raw)
}

func TestCombine_SkipsNilInputsButKeepsIndexes(t *testing.T) {
	combined := Combine([]*QueryAndVariables{
		nil,
		{Query: getByPathQuery, Variables: map[string]any{"path": "/b"}},
	})
	require.Equal(t, []string{"request1"}, combined.Aliases)
	require.Equal(t, map[string]any{"request1_path": "/b"}, combined.Variables)
}

func TestCombine_DropsUnrecognizedShape(t *testing.T) {
	combined := Combine([]*QueryAndVariables{
		{Query: `query { somethingElse { id } }`, Variables: map[string]any{"path": "/a"}},
		{Query: `mutation { guillotine { x } }`, Variables: nil},
		{Query: `not graphql at all`, Variables: nil},
		{Query: getByPathQuery, Variables: map[string]any{"path": "/d"}},
	})

	require.Equal(t, []int{0, 1, 2}, combined.Dropped)
	require.Equal(t, []string{"request3"}, combined.Aliases)
	// Dropped inputs contribute no variables either.
	require.Equal(t, map[string]any{"request3_path": "/d"}, combined.Variables)
}

func TestCombine_HoistsFragmentsOnce(t *testing.T) {
	withFragment := `query ($path: ID!) {
  guillotine {
    get(key: $path) {
      ...contentFields
    }
  }
}

fragment contentFields on Content {
  _path
  displayName
}`
	combined := Combine([]*QueryAndVariables{
		{Query: withFragment, Variables: map[string]any{"path": "/a"}},
		{Query: withFragment, Variables: map[string]any{"path": "/b"}},
	})

	doc, err := language.ParseQuery(combined.Query)
	require.NoError(t, err)
	require.Len(t, doc.Fragments, 1)
	require.Equal(t, "contentFields", doc.Fragments[0].Name)
	require.Len(t, doc.Operations, 1)
	require.Len(t, doc.Operations[0].SelectionSet, 2)
}

func TestCombine_EmptyWhenNothingMatches(t *testing.T) {
	require.True(t, Combine(nil).Empty())
	require.True(t, Combine([]*QueryAndVariables{nil, nil}).Empty())
	require.True(t, Combine([]*QueryAndVariables{{Query: "query { x }"}}).Empty())
}
