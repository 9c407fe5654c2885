package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"maintflow/internal/bootstrap"
	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/domain/workorder"
	"maintflow/internal/errs"
	"maintflow/internal/usecase/lifecycle"
)

var woCmd = &cobra.Command{
	Use:   "wo",
	Short: "Create and move work orders through their lifecycle",
}

var woCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Submit a new work order request",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		ctx := commandContext(cmd)
		flags := cmd.Flags()

		input := lifecycle.CreateInput{Actor: actorFlag(cmd)}
		input.Title, _ = flags.GetString("title")
		input.Description, _ = flags.GetString("description")
		input.Discipline, _ = flags.GetString("discipline")
		input.Category, _ = flags.GetString("category")
		input.Type, _ = flags.GetString("type")
		input.Priority, _ = flags.GetString("priority")
		input.TargetKind, _ = flags.GetString("target-kind")
		input.TargetID, _ = flags.GetString("target")
		input.EstimatedHours, _ = flags.GetFloat64("hours")
		input.LinkRef, _ = flags.GetString("link")
		input.LinkKind, _ = flags.GetString("link-kind")
		input.Tags, _ = flags.GetStringSlice("tag")
		input.Source.Type, _ = flags.GetString("source-type")
		input.Source.ID, _ = flags.GetString("source-id")
		input.Safety.PermitRequired, _ = flags.GetBool("permit")
		input.Safety.LockoutTagout, _ = flags.GetBool("lockout")
		input.Safety.PPE, _ = flags.GetStringSlice("ppe")
		input.Safety.Hazards, _ = flags.GetStringSlice("hazard")

		if flags.Changed("score") {
			score, _ := flags.GetInt("score")
			input.PriorityScore = &score
		}
		due, err := optionalTimeFlag(cmd, "due")
		if err != nil {
			return err
		}
		input.RequestedDueDate = due
		if input.EstimatedLaborCost, err = optionalMoneyFlag(cmd, "labor-cost"); err != nil {
			return err
		}

		res, err := svc.Create(ctx, input)
		if err != nil {
			logging.Error(ctx, "create work order failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create work order")
		}
		return writeResult(cmd, "created", res)
	}),
}

var woApproveCmd = &cobra.Command{
	Use:   "approve <ref>",
	Short: "Approve a requested work order within your threshold",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		ctx := commandContext(cmd)
		reason, _ := cmd.Flags().GetString("reason")
		res, err := svc.Approve(ctx, lifecycle.ApproveInput{
			Ref:             cmd.Flags().Arg(0),
			Actor:           actorFlag(cmd),
			Reason:          reason,
			ExpectedVersion: expectedVersionFlag(cmd),
		})
		if err != nil {
			return errs.Wrap(err, "approve work order")
		}
		return writeResult(cmd, "approved", res)
	}),
}

var woRejectCmd = &cobra.Command{
	Use:   "reject <ref>",
	Short: "Reject a requested work order with a reason",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		ctx := commandContext(cmd)
		reason, _ := cmd.Flags().GetString("reason")
		res, err := svc.Reject(ctx, lifecycle.RejectInput{
			Ref:             cmd.Flags().Arg(0),
			Actor:           actorFlag(cmd),
			Reason:          reason,
			ExpectedVersion: expectedVersionFlag(cmd),
		})
		if err != nil {
			return errs.Wrap(err, "reject work order")
		}
		return writeResult(cmd, "rejected", res)
	}),
}

var woPlanCmd = &cobra.Command{
	Use:   "plan <ref>",
	Short: "Estimate, schedule and reserve parts for an approved work order",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		ctx := commandContext(cmd)
		flags := cmd.Flags()

		input := lifecycle.PlanInput{
			Ref:             flags.Arg(0),
			Actor:           actorFlag(cmd),
			ExpectedVersion: expectedVersionFlag(cmd),
		}
		input.EstimatedHours, _ = flags.GetFloat64("hours")
		input.TemplateRef, _ = flags.GetString("template")
		input.Assignment = assignmentFlags(cmd)

		start, err := optionalTimeFlag(cmd, "start")
		if err != nil {
			return err
		}
		end, err := optionalTimeFlag(cmd, "end")
		if err != nil {
			return err
		}
		if start != nil && end != nil {
			input.Schedule = workorder.ScheduleWindow{Start: *start, End: *end}
		}
		if input.LaborCost, err = optionalMoneyFlag(cmd, "labor-cost"); err != nil {
			return err
		}
		specs, _ := flags.GetStringArray("part")
		for _, spec := range specs {
			part, err := parsePartSpec(spec)
			if err != nil {
				return err
			}
			input.Parts = append(input.Parts, part)
		}

		res, err := svc.Plan(ctx, input)
		if err != nil {
			logging.Error(ctx, "plan work order failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "plan work order")
		}
		return writeResult(cmd, "planned", res)
	}),
}

var woScheduleCmd = &cobra.Command{
	Use:   "schedule <ref>",
	Short: "Confirm the assignment of a planned work order",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		ctx := commandContext(cmd)
		input := lifecycle.ScheduleInput{
			Ref:             cmd.Flags().Arg(0),
			Actor:           actorFlag(cmd),
			ExpectedVersion: expectedVersionFlag(cmd),
		}
		if assignment := assignmentFlags(cmd); !assignment.IsZero() {
			input.Assignment = &assignment
		}
		res, err := svc.Schedule(ctx, input)
		if err != nil {
			return errs.Wrap(err, "schedule work order")
		}
		return writeResult(cmd, "scheduled", res)
	}),
}

var woCompleteCmd = &cobra.Command{
	Use:   "complete <ref>",
	Short: "Finish execution with the completion checklist",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		ctx := commandContext(cmd)
		flags := cmd.Flags()

		var checklist workorder.Checklist
		checklist.WorkPerformed, _ = flags.GetBool("work-performed")
		checklist.SafetyVerified, _ = flags.GetBool("safety-verified")
		checklist.AreaCleaned, _ = flags.GetBool("area-cleaned")
		checklist.ToolsReturned, _ = flags.GetBool("tools-returned")
		checklist.Notes, _ = flags.GetString("notes")
		if all, _ := flags.GetBool("all-checks"); all {
			checklist.WorkPerformed = true
			checklist.SafetyVerified = true
			checklist.AreaCleaned = true
			checklist.ToolsReturned = true
		}

		res, err := svc.Complete(ctx, lifecycle.CompleteInput{
			Ref:             flags.Arg(0),
			Actor:           actorFlag(cmd),
			Checklist:       checklist,
			ExpectedVersion: expectedVersionFlag(cmd),
		})
		if err != nil {
			return errs.Wrap(err, "complete work order")
		}
		return writeResult(cmd, "completed", res)
	}),
}

var woCancelCmd = &cobra.Command{
	Use:   "cancel <ref>",
	Short: "Cancel a work order and release its reserved stock",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		ctx := commandContext(cmd)
		reason, _ := cmd.Flags().GetString("reason")
		res, err := svc.Cancel(ctx, lifecycle.CancelInput{
			Ref:             cmd.Flags().Arg(0),
			Actor:           actorFlag(cmd),
			Reason:          reason,
			ExpectedVersion: expectedVersionFlag(cmd),
		})
		if err != nil {
			return errs.Wrap(err, "cancel work order")
		}
		return writeResult(cmd, "cancelled", res)
	}),
}

type executionOp func(svc *lifecycle.Service, ctx context.Context, input lifecycle.ExecutionInput) (lifecycle.Result, error)

// executionCommand builds the commands that only need a ref, an actor and an optional reason.
func executionCommand(use string, short string, verb string, op executionOp) *cobra.Command {
	c := &cobra.Command{
		Use:   use + " <ref>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
			ctx := commandContext(cmd)
			reason, _ := cmd.Flags().GetString("reason")
			res, err := op(svc, ctx, lifecycle.ExecutionInput{
				Ref:             cmd.Flags().Arg(0),
				Actor:           actorFlag(cmd),
				Reason:          reason,
				ExpectedVersion: expectedVersionFlag(cmd),
			})
			if err != nil {
				return errs.Wrapf(err, "%s work order", use)
			}
			return writeResult(cmd, verb, res)
		}),
	}
	c.Flags().String("reason", "", "Optional note recorded in the history row")
	return c
}

var woShowCmd = &cobra.Command{
	Use:   "show <ref>",
	Short: "Show a work order with its parts and execution",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		details, err := svc.Get(commandContext(cmd), cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "get work order")
		}
		if err := renderDetails(cmd.OutOrStdout(), details); err != nil {
			return errs.Wrap(err, "write work order")
		}
		return nil
	}),
}

var woListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the work order queue in priority order",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		flags := cmd.Flags()
		input := lifecycle.ListQueueInput{}
		input.Statuses, _ = flags.GetStringSlice("status")
		input.Discipline, _ = flags.GetString("discipline")
		input.TechnicianID, _ = flags.GetString("technician")
		input.TeamID, _ = flags.GetString("team")
		input.IncludeTerminal, _ = flags.GetBool("all")
		input.Limit, _ = flags.GetInt("limit")

		items, err := svc.ListQueue(commandContext(cmd), input)
		if err != nil {
			return errs.Wrap(err, "list work orders")
		}
		if err := renderQueue(cmd.OutOrStdout(), items); err != nil {
			return errs.Wrap(err, "write queue")
		}
		return nil
	}),
}

var woTimelineCmd = &cobra.Command{
	Use:   "timeline <ref>",
	Short: "Print the status history of a work order",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		tl, err := svc.Timeline(commandContext(cmd), cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "load timeline")
		}
		if err := renderTimeline(cmd.OutOrStdout(), tl); err != nil {
			return errs.Wrap(err, "write timeline")
		}
		return nil
	}),
}

func commandContext(cmd *cobra.Command) context.Context {
	return logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
}

func actorFlag(cmd *cobra.Command) string {
	actor, _ := cmd.Flags().GetString("actor")
	return strings.TrimSpace(actor)
}

// expectedVersionFlag returns nil when the flag is unset; versions start at 1.
func expectedVersionFlag(cmd *cobra.Command) *int64 {
	if !cmd.Flags().Changed("expected-version") {
		return nil
	}
	v, _ := cmd.Flags().GetInt64("expected-version")
	return &v
}

func assignmentFlags(cmd *cobra.Command) workorder.Assignment {
	technician, _ := cmd.Flags().GetString("technician")
	team, _ := cmd.Flags().GetString("team")
	return workorder.Assignment{TechnicianID: technician, TeamID: team}
}

func writeResult(cmd *cobra.Command, verb string, res lifecycle.Result) error {
	if err := renderResult(cmd.OutOrStdout(), verb, res); err != nil {
		return errs.Wrap(err, "write result")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(woCmd)
	woCmd.PersistentFlags().String("actor", "", "Acting user id (required)")
	woCmd.PersistentFlags().Int64("expected-version", 0, "Fail with a conflict unless the order is at this version")

	woStartCmd := executionCommand("start", "Start execution of a scheduled work order", "started",
		(*lifecycle.Service).StartExecution)
	woPauseCmd := executionCommand("pause", "Pause execution", "paused", (*lifecycle.Service).Pause)
	woResumeCmd := executionCommand("resume", "Resume a paused execution", "resumed", (*lifecycle.Service).Resume)
	woVerifyCmd := executionCommand("verify", "Verify completed work (not by its executor)", "verified", (*lifecycle.Service).Verify)
	woCloseCmd := executionCommand("close", "Close a verified work order", "closed", (*lifecycle.Service).Close)

	woCmd.AddCommand(
		woCreateCmd, woApproveCmd, woRejectCmd, woPlanCmd, woScheduleCmd,
		woStartCmd, woPauseCmd, woResumeCmd, woCompleteCmd, woVerifyCmd, woCloseCmd, woCancelCmd,
		woShowCmd, woListCmd, woTimelineCmd,
	)

	woCreateCmd.Flags().String("title", "", "Short description of the work")
	woCreateCmd.Flags().String("description", "", "Details of the request")
	woCreateCmd.Flags().String("discipline", "maintenance", "maintenance or quality")
	woCreateCmd.Flags().String("category", "", "Category label")
	woCreateCmd.Flags().String("type", "corrective", "Work type (corrective, preventive, calibration, ...)")
	woCreateCmd.Flags().String("priority", "normal", "emergency, urgent, high, normal or low")
	woCreateCmd.Flags().Int("score", 0, "Override the priority score (0-100)")
	woCreateCmd.Flags().String("target-kind", "asset", "asset or instrument")
	woCreateCmd.Flags().String("target", "", "Asset or instrument id")
	woCreateCmd.Flags().String("due", "", "Requested due date (2006-01-02 or RFC3339)")
	woCreateCmd.Flags().Float64("hours", 0, "Estimated hours")
	woCreateCmd.Flags().String("labor-cost", "", "Estimated labor cost, overrides hours times the labor rate")
	woCreateCmd.Flags().String("link", "", "Related work order ref")
	woCreateCmd.Flags().String("link-kind", "related", "Link kind: related, follow_up, duplicate_of or parent")
	woCreateCmd.Flags().StringSlice("tag", nil, "Tag (repeatable)")
	woCreateCmd.Flags().String("source-type", "", "Origin type (inspection, alarm, ...)")
	woCreateCmd.Flags().String("source-id", "", "Origin id")
	woCreateCmd.Flags().Bool("permit", false, "Work permit required")
	woCreateCmd.Flags().Bool("lockout", false, "Lockout/tagout required")
	woCreateCmd.Flags().StringSlice("ppe", nil, "Required protective equipment")
	woCreateCmd.Flags().StringSlice("hazard", nil, "Known hazards")

	woApproveCmd.Flags().String("reason", "", "Optional approval note")
	woRejectCmd.Flags().String("reason", "", "Rejection reason (required)")
	woCancelCmd.Flags().String("reason", "", "Cancellation reason (required)")

	woPlanCmd.Flags().Float64("hours", 0, "Estimated hours")
	woPlanCmd.Flags().String("start", "", "Scheduled start (RFC3339)")
	woPlanCmd.Flags().String("end", "", "Scheduled end (RFC3339)")
	woPlanCmd.Flags().String("technician", "", "Assigned technician")
	woPlanCmd.Flags().String("team", "", "Assigned team")
	woPlanCmd.Flags().String("labor-cost", "", "Labor cost, overrides hours times the labor rate")
	woPlanCmd.Flags().String("template", "", "Task or form template reference")
	woPlanCmd.Flags().StringArray("part", nil, "Part line: <catalog-id>:<qty>[:<unit-cost>] or direct:<description>:<qty>:<unit-cost>")

	woScheduleCmd.Flags().String("technician", "", "Technician, overrides the planned one")
	woScheduleCmd.Flags().String("team", "", "Team, overrides the planned one")

	woCompleteCmd.Flags().Bool("work-performed", false, "Checklist: work performed")
	woCompleteCmd.Flags().Bool("safety-verified", false, "Checklist: safety verified")
	woCompleteCmd.Flags().Bool("area-cleaned", false, "Checklist: area cleaned")
	woCompleteCmd.Flags().Bool("tools-returned", false, "Checklist: tools returned")
	woCompleteCmd.Flags().Bool("all-checks", false, "Tick every checklist item")
	woCompleteCmd.Flags().String("notes", "", "Completion notes")

	woListCmd.Flags().StringSlice("status", nil, "Filter by status (repeatable)")
	woListCmd.Flags().String("discipline", "", "Filter by discipline")
	woListCmd.Flags().String("technician", "", "Filter by technician")
	woListCmd.Flags().String("team", "", "Filter by team")
	woListCmd.Flags().Bool("all", false, "Include closed, rejected and cancelled orders")
	woListCmd.Flags().Int("limit", 50, "Maximum rows")
}
