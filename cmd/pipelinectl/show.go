package main

import (
	"fmt"

	"backoffice_backend/internal/pipeline/transport"
	"backoffice_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <pipeline-id>",
	Short: "Print a pipeline as the API returns it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid pipeline id %q", args[0])
		}

		resp, err := readOnlyService().GetByID(cmd.Context(), id)
		if apperr.Is(err, apperr.KindNotFound) {
			return fmt.Errorf("pipeline %s not found", id)
		}
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var listReq transport.ListPipelinesRequest

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipelines with their current stage",
	Example: `  pipelinectl list --stage quote
  pipelinectl list --search acme --page-size 50`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := readOnlyService().List(cmd.Context(), listReq)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listReq.Category, "category", "", "filter by category")
	f.StringVar(&listReq.AssigneeID, "assignee", "", "filter by assignee id")
	f.StringVar(&listReq.MemberID, "member", "", "filter by member id")
	f.StringVar(&listReq.Stage, "stage", "", "filter by current stage (lead, opportunity, quote, contract)")
	f.StringVar(&listReq.Search, "search", "", "search registration numbers and categories")
	f.IntVar(&listReq.Page, "page", 1, "page number")
	f.IntVar(&listReq.PageSize, "page-size", 20, "page size (max 100)")
	f.StringVar(&listReq.SortBy, "sort-by", "", "regNumber, category, createdAt or updatedAt")
	f.StringVar(&listReq.SortOrder, "sort-order", "", "asc or desc")
}
