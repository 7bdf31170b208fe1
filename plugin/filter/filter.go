// Package filter compiles CEL expressions into predicates over
// conversation metadata, used for listing and for the verify CLI.
//
// Available variables:
//
//	creator_id      int     conversation creator
//	title           string  conversation title
//	strict          bool    strict-mode flag
//	row_status      string  "NORMAL" or "ARCHIVED"
//	primary_scope   string  e.g. "personal", "group:G1" (empty when unset)
//	scopes          list    all context scopes, same encoding
//	tag_count       int     number of tag entries
//	classifications list    classification labels
//
// Example: `strict && "group:G1" in scopes`
package filter

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"github.com/simplechat/convmeta/plugin/metadata"
	"github.com/simplechat/convmeta/store"
)

// Filter is a compiled conversation predicate.
type Filter struct {
	program cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("creator_id", cel.IntType),
		cel.Variable("title", cel.StringType),
		cel.Variable("strict", cel.BoolType),
		cel.Variable("row_status", cel.StringType),
		cel.Variable("primary_scope", cel.StringType),
		cel.Variable("scopes", cel.ListType(cel.StringType)),
		cel.Variable("tag_count", cel.IntType),
		cel.Variable("classifications", cel.ListType(cel.StringType)),
	)
}

// Compile parses and type-checks the expression.
func Compile(expression string) (*Filter, error) {
	env, err := newEnv()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cel environment")
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "invalid filter expression: %s", expression)
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.Errorf("filter expression must evaluate to a boolean, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build cel program")
	}
	return &Filter{program: program}, nil
}

// Matches evaluates the filter against one conversation.
func (f *Filter) Matches(c *store.Conversation) (bool, error) {
	doc := c.Metadata
	if doc == nil {
		doc = metadata.NewDocument()
	}

	primaryScope := ""
	if primary, ok := doc.PrimaryContext(); ok {
		primaryScope = encodeScope(primary.Ref())
	}
	scopes := make([]string, 0, len(doc.Context))
	for _, e := range doc.Context {
		scopes = append(scopes, encodeScope(e.Ref()))
	}

	out, _, err := f.program.Eval(map[string]any{
		"creator_id":      int64(c.CreatorID),
		"title":           c.Title,
		"strict":          doc.Strict,
		"row_status":      string(c.RowStatus),
		"primary_scope":   primaryScope,
		"scopes":          scopes,
		"tag_count":       int64(len(doc.Tags)),
		"classifications": doc.Classification,
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to evaluate filter")
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("filter returned non-boolean value %v", out.Value())
	}
	return matched, nil
}

// encodeScope renders a (scope, id) pair as "kind" or "kind:id".
func encodeScope(ref metadata.ScopeRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	return string(ref.Kind) + ":" + ref.ID
}
