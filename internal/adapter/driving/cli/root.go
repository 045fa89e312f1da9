// Package cli is the command-line driving adapter. Every command prints the
// port's JSON response and exits non-zero when the operation failed.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driving"
)

// ErrFailed is returned by a command whose operation reported failure. The
// failure itself has already been printed.
var ErrFailed = errors.New("operation failed")

// App holds what the command tree needs. Core is built lazily so commands
// that do not touch the store (version, help) never open it.
type App struct {
	Core          func() (driving.Core, error)
	Handler       func(core driving.Core) http.Handler
	Sweep         func() int
	ListenAddr    string
	SweepInterval time.Duration
	Version       string
	Logger        *slog.Logger
	Stdin         io.Reader
}

// NewRootCommand builds the zotoksheets command tree.
func NewRootCommand(app App) *cobra.Command {
	if app.Logger == nil {
		app.Logger = slog.Default()
	}
	if app.Stdin == nil {
		app.Stdin = os.Stdin
	}

	root := &cobra.Command{
		Use:   "zotoksheets",
		Short: "Sync spreadsheet data with the Zotok entity API",
		Long: `zotoksheets stores Zotok credentials, mints and validates bearer
tokens, pulls paginated entity lists and pushes entity uploads.

It runs either as a local JSON API (serve) or as one-shot commands that
print the JSON result.`,
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.AddCommand(
		newServeCommand(app),
		newCredentialsCommand(app),
		newTokenCommand(app),
		newValidateCommand(app),
		newEndpointsCommand(app),
		newFetchCommand(app),
		newUploadCommand(app),
		newValidatePayloadCommand(app),
		newTemplateCommand(app),
		newMappingsCommand(app),
	)
	return root
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// printResult prints v and turns an unsuccessful envelope into ErrFailed.
func printResult(cmd *cobra.Command, success bool, v any) error {
	if err := printJSON(cmd, v); err != nil {
		return err
	}
	if !success {
		return ErrFailed
	}
	return nil
}

// readPayload decodes a JSON object from path, or from stdin when path is "-".
func readPayload(app App, path string) (map[string]any, error) {
	var r io.Reader
	if path == "-" {
		r = app.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open payload: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
