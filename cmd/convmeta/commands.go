package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/simplechat/convmeta/plugin/metadata"
	"github.com/simplechat/convmeta/server/service/conversation"
	"github.com/simplechat/convmeta/store"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new conversation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, _, cleanup, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		creatorID, _ := cmd.Flags().GetInt32("creator")
		title, _ := cmd.Flags().GetString("title")
		req := &conversation.CreateConversationRequest{CreatorID: creatorID, Title: title}
		if cmd.Flags().Changed("strict") {
			strict, _ := cmd.Flags().GetBool("strict")
			req.Strict = &strict
		}

		c, err := svc.CreateConversation(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Println(c.UID)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [uid]",
	Short: "Print a conversation's metadata document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		doc, err := svc.GetMetadata(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(doc)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, optionally narrowed by a CEL filter",
	Long: `List conversations. The --filter flag takes a CEL expression over the
conversation, e.g.:

  convmeta list --filter 'strict && "group:g1" in scopes'
  convmeta list --filter 'tag_count > 10'`,
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
		for _, c := range list {
			scope := "-"
			if c.Metadata != nil {
				if primary, ok := c.Metadata.PrimaryContext(); ok {
					scope = formatScope(primary.Ref())
				}
			}
			fmt.Printf("%s\tv%d\t%s\t%s\t%s\n", c.UID, c.Version, c.RowStatus, scope, c.Title)
		}
		return nil
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge [uid]",
	Short: "Merge one turn's artifacts into a conversation",
	Long: `Merge reads a turn description as JSON from --turn (or stdin with "-")
and runs the scope-resolve, tag-collect, merge pipeline against the
conversation. The turn JSON shape:

  {
    "message": "...",
    "documents": [{"id": "doc-1", "scope": "group", "group_id": "g1", "chunks": ["c1"]}],
    "models": ["gpt-4"],
    "agents": ["planner"],
    "participants": [{"user_id": "u2", "name": "Bo"}],
    "keywords": ["budget"],
    "web_urls": ["https://example.com"]
  }`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		turn, err := readTurn(cmd)
		if err != nil {
			return err
		}
		userID, _ := cmd.Flags().GetString("user")
		groupID, _ := cmd.Flags().GetString("group")
		tc := metadata.TurnContext{UserID: userID, ActiveGroupID: groupID}

		result, err := svc.CollectAndMerge(cmd.Context(), args[0], tc, turn)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "merged %d tags across %d scopes (dropped %d, retries %d)\n",
			len(result.Tags), len(result.Scopes), result.DroppedDocuments, result.ConflictRetries)
		return printJSON(result.Conversation.Metadata)
	},
}

var strictCmd = &cobra.Command{
	Use:   "strict [uid] [on|off]",
	Short: "Set a conversation's strict-mode flag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		var strict bool
		switch args[1] {
		case "on":
			strict = true
		case "off":
			strict = false
		default:
			return fmt.Errorf("expected \"on\" or \"off\", got %q", args[1])
		}
		_, err = svc.SetStrict(cmd.Context(), args[0], strict)
		return err
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve [uid] [scope]",
	Short: "Record a user-approved scope in the conversation context",
	Long: `Approve records that the user confirmed retrieval against a scope,
e.g. "group:g1", "public:ws1" or "personal".`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		ref, err := parseScope(args[1])
		if err != nil {
			return err
		}
		_, err = svc.ApproveContext(cmd.Context(), args[0], ref)
		return err
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [uid] [scope]",
	Short: "Check whether a scope may be used without confirmation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		ref, err := parseScope(args[1])
		if err != nil {
			return err
		}
		allowed, err := svc.AllowedWithoutConfirmation(cmd.Context(), args[0], ref)
		if err != nil {
			return err
		}
		if allowed {
			fmt.Println("allowed")
			return nil
		}
		fmt.Println("needs confirmation")
		return nil
	},
}

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Delete archived conversations past the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := loadProfile()
		if err != nil {
			return err
		}
		_, st, cleanup, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		job := conversation.NewCleanupJob(st, conversation.CleanupConfig{
			RetentionDays: p.RetentionDays,
		}, nil)
		deleted, err := job.RunNow(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d archived conversations older than %d days\n", deleted, p.RetentionDays)
		return nil
	},
}

func init() {
	createCmd.Flags().Int32("creator", 0, "creator user id")
	createCmd.Flags().String("title", "", "conversation title")
	createCmd.Flags().Bool("strict", false, "strict-mode flag (defaults from profile when omitted)")

	listCmd.Flags().String("filter", "", "CEL filter expression")

	mergeCmd.Flags().String("turn", "-", `turn JSON file, or "-" for stdin`)
	mergeCmd.Flags().String("user", "", "acting user id")
	mergeCmd.Flags().String("group", "", "user's active group id")
	_ = mergeCmd.MarkFlagRequired("user")
}

func readTurn(cmd *cobra.Command) (*metadata.TurnArtifacts, error) {
	path, _ := cmd.Flags().GetString("turn")
	var reader io.Reader
	if path == "-" {
		reader = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open turn file: %w", err)
		}
		defer f.Close()
		reader = f
	}

	turn := &metadata.TurnArtifacts{}
	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(turn); err != nil {
		return nil, fmt.Errorf("failed to decode turn JSON: %w", err)
	}
	return turn, nil
}

// formatScope renders a ScopeRef as "kind" or "kind:id", the inverse of
// parseScope.
func formatScope(ref metadata.ScopeRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	return string(ref.Kind) + ":" + ref.ID
}

// parseScope turns "group:g1" / "public:ws1" / "personal" into a ScopeRef.
func parseScope(s string) (metadata.ScopeRef, error) {
	ref := metadata.ScopeRef{}
	kind, id := s, ""
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			kind, id = s[:i], s[i+1:]
			break
		}
	}
	switch metadata.ScopeKind(kind) {
	case metadata.ScopePersonal, metadata.ScopeGroup, metadata.ScopePublic, metadata.ScopeWeb:
		ref.Kind = metadata.ScopeKind(kind)
	default:
		return ref, fmt.Errorf("unknown scope kind %q", kind)
	}
	ref.ID = id
	return ref, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
