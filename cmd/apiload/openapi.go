package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loykin/apiload/internal/common"
	"github.com/loykin/apiload/internal/schema"
)

var (
	openapiOutput   string
	openapiValidate bool
	openapiWatch    bool
)

var openapiCmd = &cobra.Command{
	Use:   "openapi FILE",
	Short: "List the endpoints of an OpenAPI 2 or 3 document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(strings.TrimSpace(openapiOutput))
		if format != "text" && format != "json" {
			return fmt.Errorf("invalid --output %q (valid: text, json)", openapiOutput)
		}
		out := cmd.OutOrStdout()
		show := func(doc *schema.Document) error {
			if openapiValidate {
				if err := doc.Validate(cmd.Context()); err != nil {
					return err
				}
			}
			return printEndpoints(out, doc, format)
		}

		doc, err := schema.ParseFile(args[0])
		if err != nil {
			return err
		}
		if err := show(doc); err != nil {
			return err
		}
		if !openapiWatch {
			return nil
		}

		logger := common.GetLogger().WithComponent("openapi")
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		logger.Info("watching for changes", "file", args[0])
		return schema.Watch(ctx, args[0], func(d *schema.Document) {
			if err := show(d); err != nil {
				logger.Warn("reloaded document rejected", "error", err)
			}
		}, func(err error) {
			logger.Warn("reload failed", "error", err)
		})
	},
}

type endpointListing struct {
	Source    string             `json:"source"`
	Version   string             `json:"version"`
	Title     string             `json:"title,omitempty"`
	BaseURL   string             `json:"base_url,omitempty"`
	Endpoints []*schema.Endpoint `json:"endpoints"`
}

func printEndpoints(w io.Writer, doc *schema.Document, format string) error {
	base, _ := doc.BaseURL()
	if format == "json" {
		listing := endpointListing{
			Source:    doc.Source,
			Version:   doc.VersionString,
			Title:     doc.Title,
			BaseURL:   base,
			Endpoints: doc.Endpoints().All(),
		}
		if listing.Endpoints == nil {
			listing.Endpoints = []*schema.Endpoint{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}

	if base == "" {
		base = "(none)"
	}
	_, _ = fmt.Fprintf(w, "%s %s (%s)\nBase URL: %s\n\n", doc.Title, doc.APIVersion, doc.Version, base)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "METHOD\tPATH\tOPERATION\tSUMMARY")
	for _, ep := range doc.Endpoints().All() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ep.Method, ep.Path, ep.OperationID, ep.Summary)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d endpoint(s)\n", doc.Endpoints().Len())
	return err
}

func init() {
	openapiCmd.Flags().StringVarP(&openapiOutput, "output", "o", "text", "output format: text or json")
	openapiCmd.Flags().BoolVar(&openapiValidate, "validate", false, "validate the document before listing")
	openapiCmd.Flags().BoolVar(&openapiWatch, "watch", false, "keep running and re-list on every change")
}
