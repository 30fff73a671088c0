package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/app"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	chatuc "github.com/hareshsuppiah/sport-science-ai-chat/internal/usecase/chat"
	ragchat "github.com/hareshsuppiah/sport-science-ai-chat/pkg/sdk"
)

var (
	askPersona string
	askStudy   string
	askServer  string
	askAPIKey  string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question through the chat pipeline",
	Long: `Run a single turn against a throwaway session and print the answer with its sources.

Examples:
  ragctl ask "What is RED-S?"
  ragctl ask "How does sleep extension affect sprint times?" --persona sleep-scientist
  ragctl ask "What is RED-S?" --server http://localhost:8080 --api-key $API_KEY`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askPersona, "persona", "p", "", "persona to ask (default: the first configured)")
	askCmd.Flags().StringVar(&askStudy, "study-number", "", "study number recorded in the chat log")
	askCmd.Flags().StringVar(&askServer, "server", "", "ask a running ragchat server instead of the local pipeline")
	askCmd.Flags().StringVar(&askAPIKey, "api-key", "", "bearer key for --server (default: first of auth.api_keys)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	if askServer != "" {
		return askRemote(cmd.Context(), cmd.OutOrStdout(), question)
	}

	deps, err := app.NewDependencies(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close(time.Duration(cfg.Audit.WriteTimeoutSec) * time.Second)

	persona := askPersona
	if persona == "" {
		if ps := deps.Chat.Personas(); len(ps) > 0 {
			persona = ps[0].ID
		}
	}
	if _, err := deps.Chat.Persona(persona); err != nil {
		return fmt.Errorf("%w: %q", err, persona)
	}

	sess := deps.Sessions.Create(askStudy)
	defer func() { _ = deps.Sessions.Delete(sess.ID) }()

	turn, err := deps.Chat.Submit(cmd.Context(), sess.Conversation(persona), chatuc.TurnMeta{
		SessionID:   sess.ID,
		StudyNumber: sess.StudyNumber,
	}, question)
	if err != nil {
		return err
	}

	results := make([]ragchat.Result, len(turn.Results))
	for i, r := range turn.Results {
		results[i] = ragchat.Result{Text: r.Text, Source: r.Source, Score: r.Score}
	}
	printTurn(cmd.OutOrStdout(), turn.Answer, turn.Sources, results)
	return nil
}

// askRemote runs the same turn through the HTTP API of a running server.
func askRemote(ctx context.Context, out io.Writer, question string) error {
	key := askAPIKey
	if key == "" && len(cfg.Auth.APIKeys) > 0 {
		key = cfg.Auth.APIKeys[0]
	}
	client, err := ragchat.New(askServer, ragchat.WithAPIKey(key), ragchat.WithLogger(logger))
	if err != nil {
		return err
	}

	persona := askPersona
	if persona == "" {
		ps, err := client.Personas(ctx)
		if err != nil {
			return err
		}
		if len(ps) == 0 {
			return fmt.Errorf("%w: server has no personas", domain.ErrPersonaNotFound)
		}
		persona = ps[0].ID
	}

	sess, err := client.Sessions().Create(ctx, askStudy)
	if err != nil {
		return err
	}
	defer func() { _ = client.Sessions().Delete(context.WithoutCancel(ctx), sess.ID) }()

	turn, err := client.Chat(sess.ID, persona).Ask(ctx, question)
	if err != nil {
		return err
	}
	printTurn(out, turn.Answer, turn.Sources, turn.Results)
	return nil
}

func printTurn(out io.Writer, answer string, sources []string, results []ragchat.Result) {
	fmt.Fprintln(out, answer)
	if len(sources) > 0 {
		fmt.Fprintf(out, "\nSources: %s\n", strings.Join(sources, ", "))
	}
	if verbose {
		for i, r := range results {
			fmt.Fprintf(out, "\n[%d] %.3f %s\n%s\n", i+1, r.Score, r.Source, r.Text)
		}
	}
}
