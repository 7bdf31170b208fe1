package main

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/simplechat/convmeta/plugin/metadata"
	"github.com/simplechat/convmeta/store"
)

// verifyWorkers bounds concurrent document checks; the work is CPU-only so
// there is no point going wide.
const verifyWorkers = 8

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every stored metadata document for consistency",
	Long: `Verify scans all conversations and reports documents that violate the
engine's guarantees: duplicate context entries, more than one primary
context, or duplicate tags within a category. A clean store exits 0.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, _, cleanup, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		filterExpr, _ := cmd.Flags().GetString("filter")
		list, err := svc.ListConversations(cmd.Context(), &store.FindConversation{}, filterExpr)
		if err != nil {
			return err
		}

		var violations atomic.Int64
		g, _ := errgroup.WithContext(cmd.Context())
		g.SetLimit(verifyWorkers)
		for _, c := range list {
			c := c
			g.Go(func() error {
				for _, problem := range verifyDocument(c.Metadata) {
					violations.Add(1)
					fmt.Printf("%s\t%s\n", c.UID, problem)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if n := violations.Load(); n > 0 {
			return fmt.Errorf("%d violations across %d conversations", n, len(list))
		}
		fmt.Printf("%d conversations verified, no violations\n", len(list))
		return nil
	},
}

func init() {
	verifyCmd.Flags().String("filter", "", "CEL filter expression to narrow the scan")
}

// verifyDocument re-checks the invariants the merger maintains. Violations
// here mean the row was written by something other than the engine.
func verifyDocument(doc *metadata.Document) []string {
	if doc == nil {
		return nil
	}
	var problems []string

	seenScopes := map[metadata.ScopeRef]bool{}
	primaries := 0
	for _, entry := range doc.Context {
		if seenScopes[entry.Ref()] {
			problems = append(problems, fmt.Sprintf("duplicate context entry for scope %s:%s", entry.Scope, entry.ID))
		}
		seenScopes[entry.Ref()] = true
		if entry.Type == metadata.ContextPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		problems = append(problems, fmt.Sprintf("%d primary context entries", primaries))
	}

	type tagKey struct {
		category metadata.Category
		key      string
	}
	seenTags := map[tagKey]bool{}
	for _, tag := range doc.Tags {
		k := tagKey{tag.Category(), tag.DedupKey()}
		if seenTags[k] {
			problems = append(problems, fmt.Sprintf("duplicate %s tag %q", tag.Category(), tag.DedupKey()))
		}
		seenTags[k] = true
	}

	seenLabels := map[string]bool{}
	for _, label := range doc.Classification {
		if seenLabels[label] {
			problems = append(problems, fmt.Sprintf("duplicate classification label %q", label))
		}
		seenLabels[label] = true
	}

	return problems
}
