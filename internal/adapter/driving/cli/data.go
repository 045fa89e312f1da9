package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driving"
)

func newEndpointsCommand(app App) *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "List the endpoint catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := app.Core()
			if err != nil {
				return err
			}
			return printJSON(cmd, core.Endpoints())
		},
	}
}

func newFetchCommand(app App) *cobra.Command {
	var (
		period  string
		budgets model.FetchBudgets
	)
	cmd := &cobra.Command{
		Use:   "fetch <endpoint>",
		Short: "Fetch every record of an endpoint",
		Example: `  zotoksheets fetch customers --period 30
  zotoksheets fetch orders --page-size 50 --max-pages 5 --batch-size 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := app.Core()
			if err != nil {
				return err
			}
			resp := core.Fetch(cmd.Context(), driving.FetchRequest{
				Endpoint: args[0],
				Period:   period,
				Budgets:  budgets,
			})
			return printResult(cmd, resp.Success, resp)
		},
	}
	f := cmd.Flags()
	f.StringVar(&period, "period", "", "time period in days (7, 30 or 90); defaults per endpoint")
	f.IntVar(&budgets.PageSize, "page-size", 0, "records per page (capped by ZOTOK_PAGE_SIZE)")
	f.IntVar(&budgets.MaxPages, "max-pages", 0, "maximum pages to request")
	f.IntVar(&budgets.BatchSize, "batch-size", 0, "pages requested concurrently")
	f.IntVar(&budgets.MemoryLimit, "memory-limit", 0, "stop once this many records are held")
	f.DurationVar(&budgets.MaxExecutionTime, "max-time", 0, "wall-clock budget for the fetch")
	return cmd
}

func newUploadCommand(app App) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "upload <endpoint>",
		Short: "Upload a wrapped payload to an endpoint",
		Long: `Upload a JSON payload of the form {"customers": [...]} read from
--file, or from stdin with --file -.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(app, file)
			if err != nil {
				return err
			}
			core, err := app.Core()
			if err != nil {
				return err
			}
			resp := core.Upload(cmd.Context(), driving.UploadRequest{Endpoint: args[0], Payload: payload})
			return printResult(cmd, resp.Success, resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "payload file, - for stdin")
	return cmd
}

func newValidatePayloadCommand(app App) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate-payload <endpoint>",
		Short: "Check a payload against the endpoint's upload schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(app, file)
			if err != nil {
				return err
			}
			core, err := app.Core()
			if err != nil {
				return err
			}
			resp := core.ValidatePayload(args[0], payload)
			return printResult(cmd, resp.Valid, resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "payload file, - for stdin")
	return cmd
}

func newTemplateCommand(app App) *cobra.Command {
	return &cobra.Command{
		Use:   "template <endpoint>",
		Short: "Print a sample upload payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := app.Core()
			if err != nil {
				return err
			}
			tmpl, ok := core.Template(args[0])
			if !ok {
				return fmt.Errorf("endpoint %q has no upload template", args[0])
			}
			return printJSON(cmd, tmpl)
		},
	}
}

func newMappingsCommand(app App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage saved sheet column mappings",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := app.Core()
			if err != nil {
				return err
			}
			resp := core.ListMappings(cmd.Context())
			return printResult(cmd, resp.Success, resp)
		},
	}

	get := &cobra.Command{
		Use:   "get <sheet>",
		Short: "Show the mapping for a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := app.Core()
			if err != nil {
				return err
			}
			resp := core.GetMapping(cmd.Context(), args[0])
			return printResult(cmd, resp.Success, resp)
		},
	}

	var (
		endpoint string
		columns  map[string]string
	)
	set := &cobra.Command{
		Use:     "set <sheet>",
		Short:   "Save the mapping for a sheet",
		Example: `  zotoksheets mappings set Customers --endpoint customers --column firmName=Firm --column city=City`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := app.Core()
			if err != nil {
				return err
			}
			resp := core.SaveMapping(cmd.Context(), model.MappingRecord{
				Sheet:    args[0],
				Endpoint: endpoint,
				Mapping:  model.ColumnMapping(columns),
			})
			return printResult(cmd, resp.Success, resp)
		},
	}
	set.Flags().StringVar(&endpoint, "endpoint", "", "endpoint the sheet maps to")
	set.Flags().StringToStringVar(&columns, "column", nil, "field=column pair, repeatable")

	del := &cobra.Command{
		Use:   "delete <sheet>",
		Short: "Delete the mapping for a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := app.Core()
			if err != nil {
				return err
			}
			env := core.DeleteMapping(cmd.Context(), args[0])
			return printResult(cmd, env.Success, env)
		},
	}

	cmd.AddCommand(list, get, set, del)
	return cmd
}
