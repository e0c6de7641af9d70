package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/etnz/cryptowallet/date"
	"github.com/etnz/cryptowallet/renderer"
	"github.com/google/subcommands"
	"google.golang.org/genai"
)

type assistCmd struct {
	model string
}

func (*assistCmd) Name() string     { return "assist" }
func (*assistCmd) Synopsis() string { return "ask questions about the portfolio" }
func (*assistCmd) Usage() string {
	return `cw assist [question]

  Starts an interactive session with an assistant that has the current
  portfolio reports in context. With arguments, asks that single question
  and exits.
`
}

func (p *assistCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.model, "model", "gemini-2.5-flash", "Model to use")
}

func (p *assistCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	settings, err := LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	store := OpenStore(settings)
	wallet, err := store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	prices, err := CurrentPrices(settings, store, wallet.Assets())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching prices: %v\n", err)
		return subcommands.ExitFailure
	}
	summary := renderer.SummaryMarkdown(&renderer.Summary{
		Date:      date.Today(),
		Portfolio: wallet.PortfolioSummary(prices),
		Fees:      wallet.FeeTotals(prices),
		Interest:  wallet.InterestTotals(prices),
	})

	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing Gemini's client:", err)
		return subcommands.ExitFailure
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			"You are an assistant answering questions about the user's crypto portfolio. "+
				"Here are the current reports:\n\n"+summary, genai.RoleUser),
	}
	chat, err := client.Chats.Create(ctx, p.model, config, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error starting chat:", err)
		return subcommands.ExitFailure
	}

	if f.NArg() > 0 {
		return ask(ctx, chat, strings.Join(f.Args(), " "))
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("assist> ")
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return subcommands.ExitSuccess
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error reading input:", err)
			return subcommands.ExitFailure
		}
		line = strings.TrimSpace(line)
		if line == "" || line == "exit" || line == "quit" {
			return subcommands.ExitSuccess
		}
		if status := ask(ctx, chat, line); status != subcommands.ExitSuccess {
			return status
		}
	}
}

func ask(ctx context.Context, chat *genai.Chat, question string) subcommands.ExitStatus {
	resp, err := chat.Send(ctx, &genai.Part{Text: question})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no response")
		return subcommands.ExitFailure
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			printMarkdown(part.Text)
		}
	}
	return subcommands.ExitSuccess
}
