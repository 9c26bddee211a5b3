package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/attachdrop/backend/internal/filetype"
	"github.com/attachdrop/backend/internal/models"
	"github.com/attachdrop/backend/internal/upload"
	"github.com/spf13/cobra"
)

// previewLen is how much of a data URL inspect prints.
const previewLen = 64

func inspectCmd() *cobra.Command {
	var (
		user    string
		maxSize int64
		full    bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <files...>",
		Short: "Run local files through the ingestion pipeline",
		Long: `Inspect validates and reads local files exactly as the widget would
and prints the resulting descriptors and errors as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), args, models.User{Name: user}, maxSize, full)
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "cli", "Name recorded as uploaded_by")
	cmd.Flags().Int64Var(&maxSize, "max-size", filetype.DefaultMaxFileSize, "Per-file size ceiling in bytes")
	cmd.Flags().BoolVar(&full, "full", false, "Print complete data URLs")
	return cmd
}

type inspectReport struct {
	Descriptors []models.FileDescriptor `json:"descriptors"`
	Errors      []models.IngestError    `json:"errors"`
}

func runInspect(w io.Writer, paths []string, user models.User, maxSize int64, full bool) error {
	var (
		report = inspectReport{Descriptors: []models.FileDescriptor{}}
		files  []upload.FileHandle
	)

	for _, p := range paths {
		f, err := upload.NewDiskFile(p)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	collect := make(chan models.FileDescriptor, len(files))
	policy := filetype.NewPolicy(maxSize, nil)
	in := upload.NewIngestor(policy, nil, func(batch []models.FileDescriptor) {
		for _, d := range batch {
			collect <- d
		}
	})

	in.Process(context.Background(), user, files)
	in.Wait()
	close(collect)

	for d := range collect {
		if !full && len(d.Content) > previewLen {
			d.Content = d.Content[:previewLen] + "..."
		}
		report.Descriptors = append(report.Descriptors, d)
	}
	sort.Slice(report.Descriptors, func(i, j int) bool {
		return report.Descriptors[i].Name < report.Descriptors[j].Name
	})
	report.Errors = in.Errors()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	if len(report.Errors) > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files rejected\n", len(report.Errors), len(paths))
	}
	return nil
}
