// Command filechat processes one document and answers questions about it
// read from stdin, one per line.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"filechat-ai/internal/app"
	"filechat-ai/internal/config"
	"filechat-ai/internal/extract"
	"filechat-ai/internal/rag"
	"filechat-ai/internal/service"
)

func main() {
	file := flag.String("file", "", "document to load (pdf, txt, docx, md)")
	format := flag.String("format", "", "document format; derived from the file name when empty")
	k := flag.Int("k", 0, "chunks to retrieve per question; 0 uses TOP_K")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Logs go to stderr so answers on stdout stay clean.
	slog.SetDefault(app.NewLogger(cfg, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	upload := service.Upload{Name: filepath.Base(*file), Data: data}
	if *format != "" {
		upload.Format = extract.FormatFromName(*format)
	}

	info, err := a.Session.ProcessDocument(ctx, upload)
	if err != nil {
		log.Fatalf("Failed to process %s: %v", *file, err)
	}
	fmt.Printf("Loaded %s (%s): %d chunks, %d characters\n", info.Name, info.Format, info.Chunks, info.Characters)

	if err := chat(ctx, a.Session, os.Stdin, os.Stdout, *k); err != nil {
		log.Fatalf("Chat failed: %v", err)
	}
}

// chat answers each non-empty line of in until EOF or ctx is canceled.
// Per-question failures are reported and the loop continues.
func chat(ctx context.Context, session service.SessionService, in io.Reader, out io.Writer, k int) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			fmt.Fprint(out, "> ")
			continue
		}

		resp, err := session.Ask(ctx, rag.AskRequest{Question: question, K: k})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n> ", err)
			continue
		}

		fmt.Fprintln(out, resp.Answer)
		for _, s := range resp.Sources {
			fmt.Fprintf(out, "  [%d] chunk %d (score %.3f): %s\n", s.Rank, s.SequenceIndex, s.Score, preview(s.Text, 80))
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

// preview shortens text to at most n characters on one line.
func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
