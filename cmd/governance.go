package cmd

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emrgen/digidoc/internal/audit"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "access gate and access request commands",
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "audit trail commands",
}

var holdCmd = &cobra.Command{
	Use:   "hold",
	Short: "legal hold commands",
}

func init() {
	rootCmd.AddCommand(accessCmd)
	accessCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	accessCmd.AddCommand(evaluateAccessCmd())
	accessCmd.AddCommand(requestAccessCmd())
	accessCmd.AddCommand(decideAccessCmd())
	accessCmd.AddCommand(listAccessRequestsCmd())

	rootCmd.AddCommand(auditCmd)
	auditCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	auditCmd.AddCommand(queryAuditCmd())
	auditCmd.AddCommand(restrictedReportCmd())

	rootCmd.AddCommand(holdCmd)
	holdCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	holdCmd.AddCommand(getHoldCmd())
	holdCmd.AddCommand(setHoldCmd())

	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(batchCmd())
}

func evaluateAccessCmd() *cobra.Command {
	var docID string

	var required = []string{"doc-id"}

	command := &cobra.Command{
		Use:   "evaluate",
		Short: "evaluate read access to a document",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			decision, err := newClient().EvaluateAccess(context.Background(), docID)
			if err != nil {
				logrus.Error(err)
				return
			}

			if decision.Allowed {
				color.Green("allowed: %s (%s)", decision.Reason, decision.EffectiveConfidentiality)
			} else {
				color.Red("denied: %s (%s)", decision.Reason, decision.EffectiveConfidentiality)
			}
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")

	return command
}

func requestAccessCmd() *cobra.Command {
	var docID string
	var reason string

	var required = []string{"doc-id", "reason"}

	command := &cobra.Command{
		Use:   "request",
		Short: "request access to a Restricted document",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			req, err := newClient().RequestAccess(context.Background(), docID, reason)
			if err != nil {
				logrus.Error(err)
				return
			}

			printAccessRequests(req)
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")
	command.Flags().StringVarP(&reason, "reason", "r", "", "why access is needed (required)")

	return command
}

func decideAccessCmd() *cobra.Command {
	var requestID string
	var approve bool
	var deny bool

	var required = []string{"request-id"}

	command := &cobra.Command{
		Use:   "decide",
		Short: "approve or deny a pending access request",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			if approve == deny {
				color.Red("provide exactly one of --approve or --deny")
				return
			}

			req, err := newClient().DecideAccessRequest(context.Background(), requestID, approve)
			if err != nil {
				logrus.Error(err)
				return
			}

			printAccessRequests(req)
		},
	}

	command.Flags().StringVarP(&requestID, "request-id", "i", "", "access request id (required)")
	command.Flags().BoolVar(&approve, "approve", false, "approve the request")
	command.Flags().BoolVar(&deny, "deny", false, "deny the request")

	return command
}

func listAccessRequestsCmd() *cobra.Command {
	var docID string
	var status string

	command := &cobra.Command{
		Use:   "list",
		Short: "list access requests",
		Run: func(cmd *cobra.Command, args []string) {
			reqs, err := newClient().ListAccessRequests(context.Background(), docID, model.AccessRequestStatus(status))
			if err != nil {
				logrus.Error(err)
				return
			}

			printAccessRequests(reqs...)
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id")
	command.Flags().StringVarP(&status, "status", "s", "", "Pending, Approved or Denied")

	return command
}

func queryAuditCmd() *cobra.Command {
	var filter audit.Filter
	var action string
	var scope string
	var since time.Duration

	command := &cobra.Command{
		Use:     "query",
		Short:   "query the audit trail",
		Example: "digidoc audit query -d <doc-id> --since 72h",
		Run: func(cmd *cobra.Command, args []string) {
			filter.Action = model.Action(action)
			filter.Scope = model.Scope(scope)
			if since > 0 {
				filter.From = time.Now().Add(-since)
			}

			events, err := newClient().QueryAudit(context.Background(), filter)
			if err != nil {
				logrus.Error(err)
				return
			}

			printAuditEvents(events)
		},
	}

	command.Flags().StringVarP(&filter.DocumentID, "doc-id", "d", "", "document id")
	command.Flags().StringVarP(&filter.LineageID, "lineage-id", "L", "", "lineage id")
	command.Flags().StringVarP(&filter.PerformedBy, "user", "u", "", "performed by")
	command.Flags().StringVarP(&action, "action", "a", "", "action")
	command.Flags().StringVarP(&scope, "scope", "s", "", "RESTRICTED or GOVERNANCE")
	command.Flags().DurationVar(&since, "since", 0, "only events newer than this")
	command.Flags().IntVarP(&filter.Limit, "limit", "n", 0, "maximum number of events")

	command.Flags().SortFlags = false

	return command
}

func restrictedReportCmd() *cobra.Command {
	var days int

	command := &cobra.Command{
		Use:   "restricted",
		Short: "restricted access report",
		Run: func(cmd *cobra.Command, args []string) {
			events, err := newClient().RestrictedAccessReport(context.Background(), days)
			if err != nil {
				logrus.Error(err)
				return
			}

			printAuditEvents(events)
		},
	}

	command.Flags().IntVarP(&days, "days", "w", 30, "report window in days")

	return command
}

func getHoldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "show the legal hold flag",
		Run: func(cmd *cobra.Command, args []string) {
			active, err := newClient().LegalHold(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}
			if active {
				color.Red("legal hold active: deletion, purge and new versions are suspended")
			} else {
				color.Green("legal hold inactive")
			}
		},
	}
}

func setHoldCmd() *cobra.Command {
	var active bool

	command := &cobra.Command{
		Use:   "set",
		Short: "switch the legal hold on or off",
		Run: func(cmd *cobra.Command, args []string) {
			if err := newClient().SetLegalHold(context.Background(), active); err != nil {
				logrus.Error(err)
				return
			}
			logrus.Infof("legal hold set to %t", active)
		},
	}

	command.Flags().BoolVar(&active, "active", false, "activate the hold")

	return command
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "run the retention sweep now",
		Run: func(cmd *cobra.Command, args []string) {
			report, err := newClient().SweepRetention(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}
			if report.Held {
				color.Yellow("sweep skipped: legal hold active")
				return
			}

			color.Green("scanned %d, marked %d, failed %d", report.Scanned, len(report.Marked), report.Failed)
			for _, id := range report.Marked {
				color.Magenta("  %s", id)
			}
		},
	}
}

func batchCmd() *cobra.Command {
	var batchID string
	var expected int

	var required = []string{"batch-id", "expected"}

	command := &cobra.Command{
		Use:   "batch",
		Short: "check the completeness of a digitization batch",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			report, err := newClient().BatchCompleteness(context.Background(), batchID, expected)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Batch", "Expected", "Scanned", "Documents", "Complete"})
			table.Append([]string{
				report.BatchID,
				strconv.Itoa(report.ExpectedPages),
				strconv.Itoa(report.ScannedPages),
				strconv.Itoa(len(report.Documents)),
				strconv.FormatBool(report.Complete),
			})
			table.Render()
		},
	}

	command.Flags().StringVarP(&batchID, "batch-id", "b", "", "batch id (required)")
	command.Flags().IntVarP(&expected, "expected", "e", 0, "expected page count (required)")

	return command
}

func printAccessRequests(reqs ...*model.AccessRequest) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Document", "User", "Status", "Reason", "Decided By"})
	for _, r := range reqs {
		table.Append([]string{r.ID, r.DocumentID, r.UserID, string(r.Status), r.Reason, r.DecidedBy})
	}
	table.Render()
}

func printAuditEvents(events []*model.AuditEvent) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Action", "Document", "By", "Change", "Scope", "Details"})
	for _, e := range events {
		var change []string
		if e.OldValue != nil {
			change = append(change, *e.OldValue)
		}
		if e.NewValue != nil {
			change = append(change, *e.NewValue)
		}
		table.Append([]string{
			e.Timestamp.Local().Format(time.DateTime),
			string(e.Action),
			e.DocumentID,
			e.PerformedBy,
			strings.Join(change, " -> "),
			string(e.Scope),
			e.Details,
		})
	}
	table.Render()
}
