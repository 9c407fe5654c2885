package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"maintflow/internal/bootstrap"
	"maintflow/internal/domain/workorder"
	"maintflow/internal/errs"
	"maintflow/internal/ports"
	"maintflow/internal/usecase/lifecycle"
)

var partCmd = &cobra.Command{
	Use:   "part",
	Short: "Manage the part catalog and the parts ledger of work orders",
}

var partAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a catalog part by SKU",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		flags := cmd.Flags()
		sku, _ := flags.GetString("sku")
		name, _ := flags.GetString("name")
		qty, _ := flags.GetInt64("qty")
		rawCost, _ := flags.GetString("unit-cost")
		cost, err := workorder.ParseMoney(rawCost)
		if err != nil {
			return errs.Wrap(err, "parse --unit-cost")
		}

		part, err := svc.AddCatalogPart(commandContext(cmd), ports.CatalogPart{
			SKU:          sku,
			Name:         name,
			UnitCost:     cost,
			AvailableQty: qty,
		})
		if err != nil {
			return errs.Wrap(err, "add catalog part")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "catalog part %d %s available=%d unit=%s\n",
			part.ID, part.SKU, part.AvailableQty, part.UnitCost); err != nil {
			return errs.Wrap(err, "write part output")
		}
		return nil
	}),
}

var partListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog parts and their available stock",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		parts, err := svc.ListCatalogParts(commandContext(cmd))
		if err != nil {
			return errs.Wrap(err, "list catalog parts")
		}
		if err := renderCatalog(cmd.OutOrStdout(), parts); err != nil {
			return errs.Wrap(err, "write catalog")
		}
		return nil
	}),
}

type partOp func(svc *lifecycle.Service, cmd *cobra.Command, input lifecycle.PartInput) (lifecycle.PartResult, error)

func partLedgerCommand(use string, short string, withQty bool, op partOp) *cobra.Command {
	c := &cobra.Command{
		Use:   use + " <ref> <line-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
			lineID, err := strconv.ParseUint(cmd.Flags().Arg(1), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid part line id %q", cmd.Flags().Arg(1))
			}
			input := lifecycle.PartInput{
				Ref:             cmd.Flags().Arg(0),
				LineID:          lineID,
				Actor:           actorFlag(cmd),
				ExpectedVersion: expectedVersionFlag(cmd),
			}
			if withQty {
				input.Quantity, _ = cmd.Flags().GetInt64("qty")
			}
			res, err := op(svc, cmd, input)
			if err != nil {
				return errs.Wrapf(err, "%s part", use)
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s line %d %s, actual parts %s (v%d)\n",
				res.WorkOrder.Number, res.Line.ID, res.Line.Status, res.WorkOrder.Actual.PartsCost, res.WorkOrder.Version); err != nil {
				return errs.Wrap(err, "write part output")
			}
			return nil
		}),
	}
	if withQty {
		c.Flags().Int64("qty", 0, "Quantity")
	}
	return c
}

func init() {
	rootCmd.AddCommand(partCmd)
	partCmd.PersistentFlags().String("actor", "", "Acting user id (required for ledger changes)")
	partCmd.PersistentFlags().Int64("expected-version", 0, "Fail with a conflict unless the order is at this version")

	partIssueCmd := partLedgerCommand("issue", "Issue reserved stock to the technician", false,
		func(svc *lifecycle.Service, cmd *cobra.Command, input lifecycle.PartInput) (lifecycle.PartResult, error) {
			return svc.IssuePart(commandContext(cmd), input)
		})
	partUseCmd := partLedgerCommand("use", "Record consumed quantity; the remainder returns to stock", true,
		func(svc *lifecycle.Service, cmd *cobra.Command, input lifecycle.PartInput) (lifecycle.PartResult, error) {
			return svc.UsePart(commandContext(cmd), input)
		})
	partReturnCmd := partLedgerCommand("return", "Return part of a used quantity to stock", true,
		func(svc *lifecycle.Service, cmd *cobra.Command, input lifecycle.PartInput) (lifecycle.PartResult, error) {
			return svc.ReturnPart(commandContext(cmd), input)
		})

	partCmd.AddCommand(partAddCmd, partListCmd, partIssueCmd, partUseCmd, partReturnCmd)

	partAddCmd.Flags().String("sku", "", "Stock keeping unit (unique)")
	partAddCmd.Flags().String("name", "", "Part name")
	partAddCmd.Flags().String("unit-cost", "0", "Unit cost, e.g. 12.50")
	partAddCmd.Flags().Int64("qty", 0, "Available quantity")
}
