package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/service"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest XML files from disk",
	Long:  `Ingest one or more XML files or directories of XML files as a single batch and print the per-file report`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)

	svc, _, err := buildService(cfg, logger)
	if err != nil {
		return err
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no XML files found under %s", strings.Join(args, ", "))
	}

	report := svc.ProcessBatch(context.Background(), files)
	printReport(report)

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", report.Failed, len(report.Files))
	}
	return nil
}

// collectFiles expands the given paths into XML file inputs. Directories
// are read one level deep.
func collectFiles(paths []string) ([]service.FileInput, error) {
	var files []service.FileInput
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			files = append(files, service.FileInput{Filename: filepath.Base(path), Data: data})
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".xml") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(path, entry.Name()))
			if err != nil {
				return nil, err
			}
			files = append(files, service.FileInput{Filename: entry.Name(), Data: data})
		}
	}
	return files, nil
}

func printReport(report *service.Report) {
	fmt.Printf("Batch %s: %d succeeded, %d failed, %d skipped\n",
		report.BatchID, report.Succeeded, report.Failed, report.Skipped)
	for _, f := range report.Files {
		line := fmt.Sprintf("  [%s] %s", f.Outcome, f.Filename)
		if f.AccessKey != "" {
			line += " key=" + f.AccessKey
		}
		if f.Message != "" {
			line += " (" + f.Message + ")"
		}
		fmt.Println(line)
	}
}
