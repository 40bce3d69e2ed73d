package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loykin/apiload/internal/constants"
	"github.com/loykin/apiload/internal/engine"
	"github.com/loykin/apiload/internal/retry"
	"github.com/loykin/apiload/internal/schema"
	"github.com/loykin/apiload/internal/transport"
)

type requestOptions struct {
	api      string
	baseURL  string
	token    string
	params   string
	headers  string
	body     string
	bodyFile string
	timeout  time.Duration
	retries  int
	validate bool
}

var reqOpts requestOptions

var requestCmd = &cobra.Command{
	Use:   "request METHOD PATH",
	Short: "Send a single request and print the response",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		method := strings.ToUpper(strings.TrimSpace(args[0]))
		path := args[1]

		req := transport.Request{Method: method, Path: path}
		if reqOpts.params != "" {
			if err := json.Unmarshal([]byte(reqOpts.params), &req.Query); err != nil {
				return fmt.Errorf("--params: %w", err)
			}
		}
		if reqOpts.headers != "" {
			if err := json.Unmarshal([]byte(reqOpts.headers), &req.Headers); err != nil {
				return fmt.Errorf("--headers: %w", err)
			}
		}
		req.Body = reqOpts.body
		if reqOpts.bodyFile != "" {
			if req.Body != "" {
				return errors.New("--body and --body-file are mutually exclusive")
			}
			data, err := os.ReadFile(filepath.Clean(reqOpts.bodyFile))
			if err != nil {
				return err
			}
			req.Body = string(data)
		}

		client, doc, err := requestClient(cmd, a)
		if err != nil {
			return err
		}
		if reqOpts.validate {
			if err := validateRequest(doc, method, path, req.Body); err != nil {
				return err
			}
		}

		resp, err := client.Execute(cmd.Context(), req)
		if err != nil {
			return err
		}
		printResponse(cmd.OutOrStdout(), resp)
		if !resp.IsSuccess() {
			return &ExitCodeError{Code: ExitBadStatus}
		}
		return nil
	},
}

// requestClient builds an ad-hoc client for --base-url, otherwise the
// registry client of --api (or the active API) with flag overrides applied.
func requestClient(cmd *cobra.Command, a *app) (*transport.Client, *schema.Document, error) {
	flags := cmd.Flags()
	if reqOpts.baseURL != "" {
		timeout := reqOpts.timeout
		if timeout <= 0 {
			timeout = constants.DefaultRequestTimeout
		}
		client, err := transport.New(transport.Options{
			BaseURL: reqOpts.baseURL,
			Timeout: timeout,
			Retry:   retry.Policy{MaxAttempts: reqOpts.retries},
			Logger:  a.logger,
		})
		if err != nil {
			return nil, nil, err
		}
		if reqOpts.token != "" {
			client.SetHeader("Authorization", constants.DefaultAuthScheme+" "+reqOpts.token)
		}
		return client, nil, nil
	}

	name := reqOpts.api
	if name == "" {
		active, ok := a.apis.Active()
		if !ok {
			return nil, nil, errors.New("no api configured: pass --api or --base-url")
		}
		name = active.Name
	}
	cfg, ok := a.apis.Get(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", engine.ErrConfigNotFound, name)
	}
	if flags.Changed("timeout") || flags.Changed("retries") || reqOpts.token != "" {
		if flags.Changed("timeout") {
			cfg.Timeout = reqOpts.timeout
		}
		if flags.Changed("retries") {
			cfg.Retry.MaxAttempts = reqOpts.retries
		}
		if reqOpts.token != "" {
			cfg.AuthToken = reqOpts.token
		}
		if err := a.apis.Add(cfg); err != nil {
			return nil, nil, err
		}
	}
	client, err := a.apis.Client(name)
	if err != nil {
		return nil, nil, err
	}
	doc, err := a.apis.Schema(name)
	if err != nil {
		return nil, nil, err
	}
	return client, doc, nil
}

func validateRequest(doc *schema.Document, method, path, body string) error {
	if doc == nil {
		return errors.New("--validate needs an api with openapi_spec")
	}
	ep, ok := doc.Endpoints().Match(path, method)
	if !ok {
		return fmt.Errorf("%s %s is not declared in %s", method, path, doc.Source)
	}
	if strings.TrimSpace(body) == "" {
		return nil
	}
	return ep.ValidateBody(body)
}

func printResponse(w io.Writer, resp *transport.Response) {
	status := color.New(color.FgGreen)
	if !resp.IsSuccess() {
		status = color.New(color.FgRed)
	}
	_, _ = status.Fprintf(w, "HTTP %d", resp.StatusCode)
	_, _ = fmt.Fprintf(w, " %s %s\n", resp.Method, resp.URL)

	names := make([]string, 0, len(resp.Headers))
	for k := range resp.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		_, _ = fmt.Fprintf(w, "%s: %s\n", k, resp.Headers[k])
	}
	_, _ = fmt.Fprintln(w)

	if resp.JSON != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp.JSON); err == nil {
			_, _ = w.Write(buf.Bytes())
			return
		}
	}
	if resp.Body != "" {
		_, _ = fmt.Fprintln(w, resp.Body)
	}
}

func init() {
	f := requestCmd.Flags()
	f.StringVar(&reqOpts.api, "api", "", "configured api to use (default: the active api)")
	f.StringVar(&reqOpts.baseURL, "base-url", "", "send to this base URL instead of a configured api")
	f.StringVar(&reqOpts.token, "token", "", "bearer token sent as the Authorization header")
	f.StringVar(&reqOpts.params, "params", "", "query parameters as a JSON object")
	f.StringVar(&reqOpts.headers, "headers", "", "request headers as a JSON object")
	f.StringVar(&reqOpts.body, "body", "", "request body")
	f.StringVar(&reqOpts.bodyFile, "body-file", "", "read the request body from a file")
	f.DurationVar(&reqOpts.timeout, "timeout", constants.DefaultRequestTimeout, "per-attempt timeout")
	f.IntVar(&reqOpts.retries, "retries", 3, "maximum attempts")
	f.BoolVar(&reqOpts.validate, "validate", false, "validate the path and body against the api's OpenAPI spec")
}
