package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bindery/internal/books"
	"bindery/internal/compose"
	"bindery/internal/logging"
	"bindery/internal/printspec"
)

// newGenerateCommand renders a book's interior and cover PDFs to local
// files without touching the order pipeline. Useful for checking layout
// before an order exists.
func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var bookID string
	var outDir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render interior and cover PDFs for a book",
		RunE: func(cmd *cobra.Command, args []string) error {
			if bookID == "" {
				return fmt.Errorf("--book is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := books.Open(cfg)
			if err != nil {
				return fmt.Errorf("open book store: %w", err)
			}
			defer store.Close()

			book, err := store.GetBook(cmd.Context(), bookID)
			if err != nil {
				return fmt.Errorf("load book: %w", err)
			}
			if book == nil {
				return fmt.Errorf("book %s not found", bookID)
			}
			pages, err := store.ContentPages(cmd.Context(), bookID)
			if err != nil {
				return fmt.Errorf("load pages: %w", err)
			}

			spec, err := printspec.Compute(len(pages))
			if err != nil {
				return fmt.Errorf("compute print dimensions: %w", err)
			}

			logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: "console"})
			if err != nil {
				return err
			}
			compositor := compose.New(logger)

			interior, err := compositor.Interior(*book, pages, spec)
			if err != nil {
				return fmt.Errorf("render interior: %w", err)
			}
			cover, err := compositor.Cover(*book, spec)
			if err != nil {
				return fmt.Errorf("render cover: %w", err)
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			interiorPath := filepath.Join(outDir, bookID+"-interior.pdf")
			coverPath := filepath.Join(outDir, bookID+"-cover.pdf")
			if err := os.WriteFile(interiorPath, interior.Data, 0o644); err != nil {
				return fmt.Errorf("write interior: %w", err)
			}
			if err := os.WriteFile(coverPath, cover.Data, 0o644); err != nil {
				return fmt.Errorf("write cover: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Book:     %s (%d content pages)\n", book.Title, spec.ContentPages)
			fmt.Fprintf(out, "Layout:   %s\n", spec)
			fmt.Fprintf(out, "Interior: %s (%d pages)\n", interiorPath, interior.PageCount)
			fmt.Fprintf(out, "Cover:    %s\n", coverPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&bookID, "book", "", "Book id to render")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory for the generated PDFs")
	return cmd
}
