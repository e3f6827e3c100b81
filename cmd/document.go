package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/emrgen/digidoc/internal/lifecycle"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/emrgen/digidoc/internal/service"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "document commands",
}

func init() {
	rootCmd.AddCommand(docCmd)
	docCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	docCmd.AddCommand(ingestDocCmd())
	docCmd.AddCommand(getDocCmd())
	docCmd.AddCommand(transitionDocCmd())
	docCmd.AddCommand(reclassifyDocCmd())
	docCmd.AddCommand(listDocVersionsCmd())
	docCmd.AddCommand(currentDocCmd())
}

func ingestDocCmd() *cobra.Command {
	var req service.IngestRequest
	var meta string
	var level string
	var batchID string
	var containerID string

	var required = []string{"content"}

	command := &cobra.Command{
		Use:     "ingest",
		Short:   "ingest a document",
		Long:    `store a new document in Received state, as version 1 of a new lineage or as the next version of --lineage-id`,
		Example: "digidoc doc ingest -c <content> -C Invoice -m '{\"amount\": 12}' -l Confidential",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			if meta != "" {
				if !json.Valid([]byte(meta)) {
					logrus.Error("invalid metadata, expected a json object")
					return
				}
				req.Metadata = []byte(meta)
			}
			req.ConfidentialityLevel = model.Confidentiality(level)
			if batchID != "" {
				req.BatchID = &batchID
			}
			if containerID != "" {
				req.ContainerID = &containerID
			}

			doc, err := newClient().IngestDocument(context.Background(), &req)
			if err != nil {
				logrus.Error(err)
				return
			}

			printDocuments(doc)
		},
	}

	command.Flags().StringVarP(&req.Content, "content", "c", "", "extracted text (required)")
	command.Flags().StringVarP(&meta, "meta", "m", "", "metadata json object")
	command.Flags().StringVarP(&req.Category, "category", "C", "", "document category")
	command.Flags().StringVarP(&req.Department, "department", "D", "", "department")
	command.Flags().StringVarP(&level, "level", "l", "", "confidentiality level (Public, Internal, Confidential, Restricted)")
	command.Flags().StringVarP(&req.LineageID, "lineage-id", "L", "", "append to an existing lineage")
	command.Flags().StringVarP(&req.OwnerID, "owner", "o", "", "owner id, defaults to the uploader")
	command.Flags().StringVarP(&batchID, "batch-id", "b", "", "digitization batch id")
	command.Flags().StringVar(&containerID, "container-id", "", "physical container id")
	command.Flags().IntVarP(&req.PageCount, "pages", "p", 0, "scanned page count")

	command.Flags().SortFlags = false

	return command
}

func getDocCmd() *cobra.Command {
	var docID string

	var required = []string{"doc-id"}

	command := &cobra.Command{
		Use:   "get",
		Short: "get a document with its content",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			doc, err := newClient().GetDocument(context.Background(), docID)
			if err != nil {
				logrus.Error(err)
				return
			}

			printDocuments(doc)
			if len(doc.Metadata) > 0 {
				color.Cyan("metadata: %s", string(doc.Metadata))
			}
			fmt.Println(doc.Content)
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")

	return command
}

func transitionDocCmd() *cobra.Command {
	var docID string
	var event string
	var payload lifecycle.Payload
	var content string
	var meta string

	var required = []string{"doc-id", "event"}

	command := &cobra.Command{
		Use:     "transition",
		Short:   "apply a lifecycle event",
		Example: "digidoc doc transition -d <doc-id> -e reject -r 'illegible scan'",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			if cmd.Flag("content").Changed {
				payload.Content = &content
			}
			if meta != "" {
				payload.Metadata = []byte(meta)
			}

			doc, err := newClient().ApplyTransition(context.Background(), docID, model.Event(event), payload)
			if err != nil {
				logrus.Error(err)
				return
			}

			printDocuments(doc)
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")
	command.Flags().StringVarP(&event, "event", "e", "", "event (required): "+strings.Join(eventNames(), ", "))
	command.Flags().StringVarP(&payload.Reason, "reason", "r", "", "reason, required for reject")
	command.Flags().StringVar(&payload.Comments, "comments", "", "comments, required for requestChanges")
	command.Flags().StringVarP(&payload.Category, "category", "C", "", "category to assign")
	command.Flags().StringVarP(&payload.Department, "department", "D", "", "department to assign")
	command.Flags().StringVarP(&content, "content", "c", "", "new content for reupload")
	command.Flags().StringVarP(&meta, "meta", "m", "", "metadata json object")
	command.Flags().BoolVar(&payload.HoldPublication, "hold", false, "approve without publishing")

	command.Flags().SortFlags = false

	return command
}

func reclassifyDocCmd() *cobra.Command {
	var docID string
	var req service.ReclassifyRequest
	var level string

	var required = []string{"doc-id"}

	command := &cobra.Command{
		Use:   "reclassify",
		Short: "change category, department or confidentiality in place",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			req.ConfidentialityLevel = model.Confidentiality(level)
			doc, err := newClient().Reclassify(context.Background(), docID, req)
			if err != nil {
				logrus.Error(err)
				return
			}

			printDocuments(doc)
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")
	command.Flags().StringVarP(&req.Category, "category", "C", "", "new category")
	command.Flags().StringVarP(&req.Department, "department", "D", "", "new department")
	command.Flags().StringVarP(&level, "level", "l", "", "new confidentiality level")

	return command
}

func listDocVersionsCmd() *cobra.Command {
	var lineageID string

	var required = []string{"lineage-id"}

	command := &cobra.Command{
		Use:   "versions",
		Short: "list the versions of a lineage, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			versions, err := newClient().ListVersions(context.Background(), lineageID)
			if err != nil {
				logrus.Error(err)
				return
			}

			printVersions(versions...)
		},
	}

	command.Flags().StringVarP(&lineageID, "lineage-id", "L", "", "lineage id (required)")

	return command
}

func currentDocCmd() *cobra.Command {
	var lineageID string

	var required = []string{"lineage-id"}

	command := &cobra.Command{
		Use:   "current",
		Short: "resolve the current version of a lineage",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			current, err := newClient().ResolveCurrent(context.Background(), lineageID)
			if err != nil {
				logrus.Error(err)
				return
			}

			printVersions(current)
		},
	}

	command.Flags().StringVarP(&lineageID, "lineage-id", "L", "", "lineage id (required)")

	return command
}

func printDocuments(docs ...*model.Document) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Lineage", "Version", "Status", "Approval", "Level", "Category", "Owner"})
	for _, doc := range docs {
		table.Append([]string{
			doc.ID,
			doc.LineageID,
			strconv.FormatInt(doc.VersionNumber, 10),
			string(doc.Status),
			string(doc.ApprovalStatus),
			string(doc.ConfidentialityLevel),
			doc.Category,
			doc.OwnerID,
		})
	}
	table.Render()
}

func printVersions(versions ...*service.VersionView) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Version", "Status", "Level", "Category", "Access"})
	for _, v := range versions {
		readable := "denied: " + v.Access.Reason
		if v.Access.Allowed {
			readable = "allowed"
		}
		table.Append([]string{
			v.Document.ID,
			strconv.FormatInt(v.Document.VersionNumber, 10),
			string(v.Document.Status),
			string(v.Document.ConfidentialityLevel),
			v.Document.Category,
			readable,
		})
	}
	table.Render()
}

func eventNames() []string {
	var names []string
	for _, e := range lifecycle.AllEvents() {
		names = append(names, string(e))
	}
	return names
}

func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	var providedFlags []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missingFlags = append(missingFlags, required)
		} else {
			value := cmd.Flag(required).Value.String()
			providedFlags = append(providedFlags, fmt.Sprintf("--%s=%s", required, value))
		}
	}

	if len(missingFlags) > 0 {
		var msg string
		for _, f := range missingFlags {
			msg += fmt.Sprintf("--%s ", f)
		}

		color.Red("missing: %s\n", msg)
		if len(providedFlags) > 0 {
			provided := strings.Join(providedFlags, " ")
			color.Green("provide: %s\n", provided)
		}

		cmd.Println("")

		_ = cmd.Usage()

		return true
	}

	return false
}
