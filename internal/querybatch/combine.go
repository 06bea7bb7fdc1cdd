// Package querybatch combines per-component guillotine queries into one
// batched query.
//
// Each input query must have the shape
//
//	query [(params)] { guillotine { ... } }
//
// The guillotine selection of query i is re-emitted under the alias
// "request<i>", its variables are renamed to "request<i>_<name>" so that
// independent queries can never collide, and standalone fragment definitions
// are hoisted to the top level of the combined document. The backend resolves
// each alias independently, so N component queries cost one round trip.
//
// All rewriting happens on the parsed AST. Variable renaming touches the
// variable definition and every variable token in the operation body; it is
// anchored to parsed tokens, so a variable named $path can never clobber an
// identifier that merely contains "path".
package querybatch

import (
	"fmt"

	language "github.com/pagegraph/pagegraph/internal/language"
)

// RootField is the top-level field every component query must select.
const RootField = "guillotine"

// QueryAndVariables is one component's contribution to the batched call.
type QueryAndVariables struct {
	Query     string
	Variables map[string]any
}

// Combined is the batched query plus its merged variable values.
type Combined struct {
	// Query is the combined GraphQL source. Empty when no input matched.
	Query string
	// Variables holds every matched input's variables, keyed
	// "request<i>_<name>".
	Variables map[string]any
	// Aliases lists the emitted aliases in ascending input order.
	Aliases []string
	// Dropped lists input indexes whose query did not match the expected
	// shape and contributed nothing.
	Dropped []int
}

// Empty reports whether no input contributed an aliased body. Callers must
// not send an empty combination to the backend.
func (c Combined) Empty() bool { return len(c.Aliases) == 0 }

// Alias returns the alias assigned to input index i.
func Alias(i int) string { return fmt.Sprintf("request%d", i) }

// Combine merges the given queries, in order, into one batched query.
// Inputs may be nil (a descriptor with no registered query); nil inputs are
// skipped and keep their index, so aliases always encode the input position.
// Inputs whose query fails to parse or does not match the expected shape are
// dropped silently, as are their variables.
func Combine(inputs []*QueryAndVariables) Combined {
	out := Combined{Variables: map[string]any{}}

	op := &language.OperationDefinition{Operation: language.Query}
	var fragments language.FragmentDefinitionList
	seenFragments := map[string]bool{}

	for i, in := range inputs {
		if in == nil || in.Query == "" {
			continue
		}
		alias := Alias(i)

		doc, err := language.ParseQuery(in.Query)
		if err != nil {
			out.Dropped = append(out.Dropped, i)
			continue
		}
		sub := matchOperation(doc)
		if sub == nil {
			out.Dropped = append(out.Dropped, i)
			continue
		}
		root := matchRootField(sub)
		if root == nil {
			out.Dropped = append(out.Dropped, i)
			continue
		}

		renames := make(map[string]string, len(sub.VariableDefinitions))
		for _, vd := range sub.VariableDefinitions {
			renamed := alias + "_" + vd.Variable
			renames[vd.Variable] = renamed
			vd.Variable = renamed
		}
		renameInSelectionSet(sub.SelectionSet, renames)

		op.VariableDefinitions = append(op.VariableDefinitions, sub.VariableDefinitions...)
		op.SelectionSet = append(op.SelectionSet, &language.Field{
			Alias:        alias,
			Name:         root.Name,
			Arguments:    root.Arguments,
			Directives:   root.Directives,
			SelectionSet: root.SelectionSet,
		})

		// Fragments are hoisted once per name and keep their original
		// variable names; guillotine fragments do not reference variables.
		for _, frag := range doc.Fragments {
			if seenFragments[frag.Name] {
				continue
			}
			seenFragments[frag.Name] = true
			fragments = append(fragments, frag)
		}

		for name, value := range in.Variables {
			out.Variables[alias+"_"+name] = value
		}
		out.Aliases = append(out.Aliases, alias)
	}

	if len(out.Aliases) == 0 {
		return out
	}
	doc := &language.QueryDocument{
		Operations: language.OperationList{op},
		Fragments:  fragments,
	}
	out.Query = language.FormatQueryDocument(doc)
	return out
}

// matchOperation returns the single query operation of the document, or nil
// when the document holds no usable query operation.
func matchOperation(doc *language.QueryDocument) *language.OperationDefinition {
	for _, op := range doc.Operations {
		if op.Operation == language.Query {
			return op
		}
	}
	return nil
}

// matchRootField returns the sole guillotine selection of the operation, or
// nil when the operation selects anything else at the top level.
func matchRootField(op *language.OperationDefinition) *language.Field {
	if len(op.SelectionSet) != 1 {
		return nil
	}
	field, ok := op.SelectionSet[0].(*language.Field)
	if !ok || field.Name != RootField {
		return nil
	}
	return field
}

func renameInSelectionSet(set language.SelectionSet, renames map[string]string) {
	if len(renames) == 0 {
		return
	}
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			renameInArguments(s.Arguments, renames)
			renameInDirectives(s.Directives, renames)
			renameInSelectionSet(s.SelectionSet, renames)
		case *language.InlineFragment:
			renameInDirectives(s.Directives, renames)
			renameInSelectionSet(s.SelectionSet, renames)
		case *language.FragmentSpread:
			renameInDirectives(s.Directives, renames)
		}
	}
}

func renameInArguments(args language.ArgumentList, renames map[string]string) {
	for _, arg := range args {
		renameInValue(arg.Value, renames)
	}
}

func renameInDirectives(dirs language.DirectiveList, renames map[string]string) {
	for _, dir := range dirs {
		renameInArguments(dir.Arguments, renames)
	}
}

func renameInValue(v *language.Value, renames map[string]string) {
	if v == nil {
		return
	}
	if v.Kind == language.Variable {
		if renamed, ok := renames[v.Raw]; ok {
			v.Raw = renamed
		}
		return
	}
	for _, child := range v.Children {
		renameInValue(child.Value, renames)
	}
}
