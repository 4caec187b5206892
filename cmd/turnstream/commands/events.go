package commands

import (
	"fmt"
	"net/url"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

var (
	eventsMinOffset int
	eventsSource    string
	eventsTypes     string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect a session's event log",
}

var eventsListCmd = &cobra.Command{
	Use:   "list <session-id>",
	Short: "List a session's events",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsList,
}

func init() {
	eventsListCmd.Flags().IntVar(&eventsMinOffset, "min-offset", -1, "only events at or after this offset")
	eventsListCmd.Flags().StringVar(&eventsSource, "source", "", "filter by event source")
	eventsListCmd.Flags().StringVar(&eventsTypes, "types", "", "comma-separated event types")

	eventsCmd.AddCommand(eventsListCmd)
}

func runEventsList(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if eventsMinOffset >= 0 {
		q.Set("min_offset", fmt.Sprintf("%d", eventsMinOffset))
	}
	if eventsSource != "" {
		q.Set("source", eventsSource)
	}
	if eventsTypes != "" {
		q.Set("types", eventsTypes)
	}

	path := "/api/sessions/" + args[0] + "/events"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	data, err := getJSON(cmd.Context(), path)
	if err != nil {
		return err
	}

	gjson.GetBytes(data, "data").ForEach(func(_, e gjson.Result) bool {
		fmt.Printf("%-4s  %-6s %-8s %-16s %s\n",
			color.New(color.FgHiBlack).Sprint(e.Get("offset").String()),
			e.Get("source").String(),
			e.Get("type").String(),
			e.Get("correlation_id").String(),
			e.Get("data").Raw)
		return true
	})
	return nil
}
