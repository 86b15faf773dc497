// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package run implements the one-shot bootstrap command.
package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/preflight/internal/commands/shared"
	"github.com/tombee/preflight/internal/config"
	"github.com/tombee/preflight/internal/credentials"
	"github.com/tombee/preflight/internal/log"
	"github.com/tombee/preflight/pkg/httpclient"
	"github.com/tombee/preflight/pkg/pagedata"
	"github.com/tombee/preflight/pkg/preload"
)

type runOptions struct {
	pageDataPath string
	origin       string
	cookie       string
	wait         time.Duration
}

// keyOutput is the per-key entry in the command's JSON output.
type keyOutput struct {
	Body  json.RawMessage `json:"body,omitempty"`
	Error string          `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a one-shot bootstrap preload",
		Long: `Read an initial page data document, resolve the tenant context, issue the
preload requests, and print the settled results as JSON.

The preload is best-effort: request failures are reported in the output, not
as a command failure. The command fails only on unreadable input.`,
		Example: `  # Preload from a page data file
  preflight run --page-data pagedata.json

  # Preload from stdin against an explicit origin
  cat pagedata.json | preflight run --page-data - --origin https://sentry.example.io`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.pageDataPath, "page-data", "f", "-", "page data JSON file ('-' for stdin)")
	cmd.Flags().StringVar(&opts.origin, "origin", "", "default API origin for same-origin sessions")
	cmd.Flags().StringVar(&opts.cookie, "cookie", "", "session cookie (overrides PREFLIGHT_COOKIE and the keychain)")
	cmd.Flags().DurationVar(&opts.wait, "wait", 30*time.Second, "how long to wait for the preload to settle")

	return cmd
}

func runBootstrap(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := log.New(&log.Config{Level: cfg.Log.Level, Format: log.Format(cfg.Log.Format)})

	doc, err := readPageData(opts.pageDataPath)
	if err != nil {
		return shared.NewInvalidPageDataError("read page data", err)
	}

	origin := opts.origin
	if origin == "" {
		origin = cfg.Origin
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
		CookieJar: true,
	})
	if err != nil {
		return err
	}

	reg, err := preload.Bootstrap(cmd.Context(), doc, preload.Options{
		Client:      client,
		Origin:      origin,
		Credentials: credentials.Resolve(opts.cookie),
		Logger:      logger,
	})
	if err != nil {
		// Best-effort: report and continue with whatever settled.
		logger.Warn("bootstrap failed", log.Error(err))
	}

	output := struct {
		OrgSlug string               `json:"org_slug"`
		Results map[string]keyOutput `json:"results"`
	}{
		OrgSlug: reg.OrgSlug(),
		Results: make(map[string]keyOutput),
	}

	if !reg.Empty() {
		waitCtx, cancel := context.WithTimeout(cmd.Context(), opts.wait)
		defer cancel()

		for _, key := range preload.Keys() {
			f, ok := reg.Get(key)
			if !ok {
				continue
			}
			res, err := f.Wait(waitCtx)
			if err != nil {
				output.Results[string(key)] = keyOutput{Error: err.Error()}
				continue
			}
			output.Results[string(key)] = keyOutput{Body: res.Body}
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func loadConfig() (*config.Config, error) {
	path := shared.GetConfigPath()
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return nil, shared.NewConfigError("resolve config path", err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, shared.NewConfigError("load config", err)
	}
	return cfg, nil
}

func readPageData(path string) (*pagedata.InitialData, error) {
	if path == "-" {
		return pagedata.Decode(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page data: %w", err)
	}
	defer file.Close()

	return pagedata.Decode(file)
}
