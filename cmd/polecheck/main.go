package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"polecheck/internal"
	"polecheck/internal/config"
	"polecheck/internal/connectors"
	"polecheck/internal/httpapi"
	"polecheck/internal/listener"
	"polecheck/internal/pipeline"
	"polecheck/internal/source"
	"polecheck/internal/storage"
	"polecheck/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "run" {
		// Offline conversion; no database needed.
		runLocal(cfg, os.Args[2:])
		return
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	switch cmd {
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		addr := fs.String("addr", cfg.Addr(), "listen address")
		_ = fs.Parse(os.Args[2:])
		must(serve(db, cfg, *addr))
	case "fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		rawURL := fs.String("url", "", "map document URL (.kml, .kmz, .xlsx)")
		output := fs.String("output", "", "optional copy of the CSV result")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*rawURL) == "" {
			must(fmt.Errorf("--url is required"))
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		dl, err := source.NewClient(cfg).Fetch(ctx, *rawURL)
		must(err)
		proc := pipeline.NewProcessingService(db, cfg)
		res, err := proc.ProcessDocument(internal.SourceFetch, dl.Filename, dl.Content)
		must(err)
		if *output != "" {
			must(copyFile(proc.ArtifactPath(res.CSVFilename), *output))
		}
		printSummary("fetch done", res.Summary)
		fmt.Printf("csv=%s xlsx=%s\n", res.CSVFilename, res.XLSXFilename)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		ctx := context.Background()
		conn, err := listener.MakeConnector(ctx, strings.ToLower(strings.TrimSpace(*provider)), cfg)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d skipped=%d\n", *provider, result.Fetched, result.Stored, result.Skipped)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(*provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d status=%s artifacts=%d failures=%d\n", res.EmailID, res.Status, len(res.Artifacts), len(res.Failures))
			for _, f := range res.Failures {
				fmt.Printf("  failed %s\n", f)
			}
			return
		}
		processedEmails, artifacts, err := processor.ProcessPending(*batch, *provider)
		must(err)
		fmt.Printf("processed pending emails=%d artifacts=%d\n", processedEmails, artifacts)
	case "mail:listen":
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		s := listener.NewService(db, cfg)
		must(s.Run(ctx))
	case "cleanup":
		res, err := sweeper.New(db, cfg).Sweep(time.Now())
		must(err)
		fmt.Printf("cleanup done files=%d artifacts=%d\n", res.FilesRemoved, res.ArtifactsExpired)
	case "artifacts":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max rows")
		_ = fs.Parse(os.Args[2:])
		rows, err := db.ListArtifacts(*limit)
		must(err)
		for _, r := range rows {
			fmt.Printf("%s created=%s source=%s original=%q total=%d duplicates=%d\n",
				r.Filename, r.CreatedAt, r.Source, r.OriginalName, r.TotalRecords, r.DuplicateCount)
		}
		fmt.Printf("artifacts=%d\n", len(rows))
	default:
		usage()
		os.Exit(1)
	}
}

func runLocal(cfg config.Config, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	input := fs.String("input", "", "input .kml, .kmz or .xlsx path")
	output := fs.String("output", "", "output csv path (default OUTPUT_DIR/<input>.csv)")
	xlsxOut := fs.String("xlsx", "", "optional output xlsx path")
	asJSON := fs.Bool("json", false, "print the summary as JSON")
	_ = fs.Parse(args)
	if *input == "" {
		must(fmt.Errorf("--input is required"))
	}
	if *output == "" {
		base := strings.TrimSuffix(filepath.Base(*input), filepath.Ext(*input))
		*output = filepath.Join(cfg.OutputDir, base+".csv")
	}

	dataset, summary, err := pipeline.ProcessFile(*input)
	must(err)
	must(pipeline.ExportToCSV(dataset, *output))
	if *xlsxOut != "" {
		must(pipeline.ExportToXLSX(dataset, *xlsxOut))
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		must(enc.Encode(summary))
		return
	}
	printSummary("run done", summary)
	fmt.Printf("output=%s\n", *output)
}

func printSummary(prefix string, s internal.Summary) {
	dups := make([]string, 0, len(s.DuplicateKeys))
	for _, k := range s.DuplicateKeys {
		dups = append(dups, fmt.Sprintf("P%d", k))
	}
	fmt.Printf("%s total=%d duplicate_count=%d duplicates=[%s]\n", prefix, s.TotalRecords, s.DuplicateCount, strings.Join(dups, ","))
}

func serve(db *storage.DB, cfg config.Config, addr string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	proc := pipeline.NewProcessingService(db, cfg)
	srv := httpapi.New(cfg, proc).HTTPServer()
	srv.Addr = addr

	sw := sweeper.New(db, cfg)
	go func() { _ = sw.Run(ctx) }()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	res, err := sw.Sweep(time.Now())
	if err != nil {
		return err
	}
	log.Printf("shutdown complete, swept files=%d artifacts=%d", res.FilesRemoved, res.ArtifactsExpired)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func usage() {
	fmt.Println("usage: polecheck <command>")
	fmt.Println("commands:")
	fmt.Println("  serve [--addr=0.0.0.0:8000]")
	fmt.Println("  run --input=poles.kml [--output=poles.csv] [--xlsx=poles.xlsx] [--json]")
	fmt.Println("  fetch --url=https://.../poles.kmz [--output=poles.csv]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  cleanup")
	fmt.Println("  artifacts [--limit=20]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
