// Package main provides the reader CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/flashread/internal/api/connect"
)

var (
	app    = kingpin.New("flashread-cli", "flashread rapid word display client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Reader token (or set READER_TOKEN env)").Envar("READER_TOKEN").String()

	// load command
	loadCmd  = app.Command("load", "Load a text document")
	loadFile = loadCmd.Arg("file", "Path to a text file").Required().ExistingFile()

	// start command
	startCmd = app.Command("start", "Start reading from the first word")
	startWPM = startCmd.Arg("wpm", "Words per minute (server default when omitted)").String()

	// pause command
	pauseCmd = app.Command("pause", "Pause reading")

	// resume command
	resumeCmd = app.Command("resume", "Resume reading")

	// stop command
	stopCmd = app.Command("stop", "Stop reading and rewind")

	// rate command
	rateCmd = app.Command("rate", "Change the reading rate")
	rateWPM = rateCmd.Arg("wpm", "Words per minute").Required().String()

	// status command
	statusCmd = app.Command("status", "Show the session status")

	// watch command
	watchCmd = app.Command("watch", "Display the word stream")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Create client
	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	ctx := context.Background()

	// Execute command
	switch command {
	case loadCmd.FullCommand():
		load(ctx, client, *loadFile)
	case startCmd.FullCommand():
		printReply(client.Start(ctx, *startWPM))
	case pauseCmd.FullCommand():
		printReply(client.Pause(ctx))
	case resumeCmd.FullCommand():
		printReply(client.Resume(ctx))
	case stopCmd.FullCommand():
		printReply(client.Stop(ctx))
	case rateCmd.FullCommand():
		printReply(client.SetRate(ctx, *rateWPM))
	case statusCmd.FullCommand():
		status(ctx, client)
	case watchCmd.FullCommand():
		watch(ctx, client)
	}
}

func load(ctx context.Context, client *apiconnect.Client, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printReply(client.LoadDocument(ctx, filepath.Base(path), data))
}

func printReply(reply *apiconnect.Reply, err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if reply.Success {
		fmt.Printf("Success: %s\n", reply.Message)
	} else {
		fmt.Printf("Rejected [%s]: %s\n", reply.Code, reply.Message)
		os.Exit(2)
	}
}

func status(ctx context.Context, client *apiconnect.Client) {
	s, err := client.GetStatus(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n=== CURRENT SESSION STATUS ===")
	fmt.Printf("Session ID: %s\n", s.SessionID)
	fmt.Printf("Phase: %s\n", s.Phase)
	fmt.Printf("State: %s\n", formatState(s.State))
	fmt.Printf("Rate: %d wpm (%s per word)\n", s.WPM, time.Duration(s.DelayMs)*time.Millisecond)
	fmt.Printf("Subscribers: %d\n", s.SubscriberCount)

	if s.DocumentName != "" {
		fmt.Println("\nDocument:")
		fmt.Printf("  Name: %s\n", s.DocumentName)
		fmt.Printf("  Type: %s\n", s.MIMEType)
		fmt.Printf("  Loaded At: %s\n", s.LoadedAt)
		fmt.Printf("  Position: %d / %d\n", s.Cursor, s.Total)
		if s.CurrentWord != "" {
			fmt.Printf("  Current Word: %s\n", s.CurrentWord)
		}
		fmt.Printf("  Remaining: %s\n", time.Duration(s.RemainingMs)*time.Millisecond)
		fmt.Printf("  Runs: %d started, %d completed\n", s.RunsStarted, s.RunsCompleted)
		if s.LastCompletedAt != "" {
			fmt.Printf("  Last Completed At: %s\n", s.LastCompletedAt)
		}
	} else {
		fmt.Println("\nNo document loaded")
	}
	fmt.Println()
}

func formatState(state string) string {
	switch state {
	case "stopped":
		return "⏹  Stopped"
	case "reading":
		return "▶️  Reading"
	case "paused":
		return "⏸  Paused"
	default:
		return "❓ Unknown"
	}
}

func watch(ctx context.Context, client *apiconnect.Client) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := client.Subscribe(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	fmt.Println("Watching the word stream. Press Ctrl+C to exit.")

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		cancel()
	}()

	// Receive events
	for stream.Receive() {
		printEvent(stream.Event())
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
}

// printEvent renders one event. Words overwrite each other on a single line.
func printEvent(e *apiconnect.Event) {
	switch e.Type {
	case "status":
		fmt.Printf("%s  [%d/%d]\n", formatState(e.State), e.Index, e.Total)
		if e.Word != "" {
			fmt.Printf("\r\033[K    %s", e.Word)
		}
	case "word_shown":
		fmt.Printf("\r\033[K    %-24s [%d/%d]", e.Word, e.Index+1, e.Total)
	case "state_changed":
		fmt.Printf("\n%s\n", formatState(e.State))
	case "completed":
		fmt.Printf("\n✅ Completed (%d words)\n", e.Total)
	case "cleared":
		fmt.Print("\r\033[K")
	case "validation_error":
		fmt.Printf("\n⚠️  %s\n", e.Message)
	case "document_loaded":
		fmt.Printf("\n📄 %s\n", e.Message)
	default:
		fmt.Printf("\n[Sequence: %d] unknown event %q\n", e.SequenceNo, e.Type)
	}
}
