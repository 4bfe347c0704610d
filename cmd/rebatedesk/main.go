package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rebatedesk/internal"
	"rebatedesk/internal/config"
	"rebatedesk/internal/connectors"
	gmailconnector "rebatedesk/internal/connectors/gmail"
	imapconnector "rebatedesk/internal/connectors/imap"
	"rebatedesk/internal/events"
	"rebatedesk/internal/extraction"
	"rebatedesk/internal/listener"
	"rebatedesk/internal/pipeline"
	"rebatedesk/internal/refdata"
	"rebatedesk/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	obs := events.NewLogObserver(os.Stderr)

	cmd := os.Args[1]
	switch cmd {
	case "refdata:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "reference dataset (.csv or .xlsx)")
		sheet := fs.String("sheet", "", "sheet name for xlsx input")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		var rows []internal.ReferenceRow
		if strings.HasSuffix(strings.ToLower(*file), ".xlsx") {
			rows, err = refdata.LoadReferenceRowsXLSX(*file, *sheet)
		} else {
			rows, err = refdata.LoadReferenceRowsCSV(*file)
		}
		must(err)
		must(db.ReplaceReferenceRows(rows))
		fmt.Printf("reference data imported: %d rows\n", len(rows))
	case "codes:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "csv file with valid product codes")
		column := fs.Int("column", 0, "zero-based code column")
		lower := fs.Bool("lower", false, "lower-case codes on import")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		codes, err := refdata.LoadCodeSetCSV(*file, *column, *lower)
		must(err)
		must(db.ReplaceValidCodes(codes))
		fmt.Printf("valid codes imported: %d codes\n", len(codes))
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		from := fs.String("from", cfg.MailFromFilter, "sender filter")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(*label, *from, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		extractor := extraction.NewClient(cfg, obs)
		processor := pipeline.NewProcessingService(db, cfg, extractor, obs)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(context.Background(), *provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d status=%s items=%d desired=%d flagged=%d\n", res.EmailID, res.Status, res.Items, res.Desired, res.Flagged)
			return
		}
		processedEmails, processedItems, err := processor.ProcessPending(context.Background(), *batch, *provider)
		must(err)
		fmt.Printf("processed pending emails=%d items=%d\n", processedEmails, processedItems)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		emailID := fs.Int("emailId", 0, "internal email id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *emailID == 0 || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--emailId and --out are required"))
		}
		rows, err := db.GetExportRows(*emailID)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no export rows for emailId=%d", *emailID))
		}
		must(pipeline.ExportRowsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "mail:listen":
		s := listener.NewService(db, cfg, obs)
		must(s.Run(context.Background()))
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "path to a raw .eml file")
		output := fs.String("output", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *output == "" {
			must(fmt.Errorf("--input and --output are required"))
		}
		must(runOnce(db, cfg, obs, *input, *output))
	default:
		usage()
		os.Exit(1)
	}
}

// runOnce pushes a single on-disk email through the full pipeline and writes
// the evaluated items to a spreadsheet, without touching the mail tables.
func runOnce(db *storage.DB, cfg config.Config, obs events.Observer, input, output string) error {
	raw, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	content, err := pipeline.ExtractEmailContent(raw)
	if err != nil {
		return err
	}

	detect := pipeline.DetectRebateProposal(content.Subject, content.Body, cfg.DetectThreshold)
	if !detect.IsProposal {
		fmt.Printf("no rebate proposal detected (score=%.2f), nothing to do\n", detect.Score)
		return nil
	}

	extractor := extraction.NewClient(cfg, obs)
	candidates, err := extractor.ExtractCandidates(context.Background(), content.Subject, content.Body)
	if err != nil {
		return err
	}

	items := pipeline.NormalizeCandidates(candidates, obs)

	codes, err := db.ListValidCodes()
	if err != nil {
		return err
	}
	issues := pipeline.ValidateItems(items, codes, obs)

	refRows, err := db.ListReferenceRows()
	if err != nil {
		return err
	}
	lookup := refdata.BuildLookup(refRows, cfg.ReferenceColumns(), obs)
	items = pipeline.EvaluateItems(items, lookup, obs)

	issuesByIndex := map[int]string{}
	for _, entry := range issues {
		issuesByIndex[entry.ItemIndex] = strings.Join(entry.Issues, "; ")
	}

	rows := make([]internal.RebateExportRow, 0, len(items))
	for i, item := range items {
		rows = append(rows, internal.RebateExportRow{
			ItemIndex:                i,
			ManufacturerProductCode:  item.ManufacturerProductCode,
			ProductID:                item.ProductID,
			ProductName:              item.ProductName,
			Subsidiary:               item.Subsidiary,
			StartDate:                item.StartDate,
			EndDate:                  item.EndDate,
			CampaignPromotionRelated: item.CampaignPromotionRelated,
			RebateCompensationFactor: item.RebateCompensationFactor,
			MaxSPQ:                   item.MaxSPQ,
			IsDesired:                item.IsDesired != nil && *item.IsDesired,
			Issues:                   issuesByIndex[i],
		})
	}
	if err := pipeline.ExportRowsToXLSX(rows, output); err != nil {
		return err
	}
	fmt.Printf("run done items=%d output=%s\n", len(rows), filepath.Clean(output))
	return nil
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: rebatedesk <command>")
	fmt.Println("commands:")
	fmt.Println("  refdata:import --file=refdata.csv|.xlsx [--sheet=Sheet1]")
	fmt.Println("  codes:import --file=codes.csv [--column=0] [--lower]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50 [--from=vendor@example.com]")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  export:xlsx --emailId=1 --out=./out/result.xlsx")
	fmt.Println("  run --input=./mail.eml --output=./out/result.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
