package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	sessionCreateAgent      string
	sessionCreateTitle      string
	sessionCreateAllowGreet bool
	sessionCreateExplicitID string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new session",
	RunE:  runSessionCreate,
}

var sessionGetCmd = &cobra.Command{
	Use:   "get <session-id>",
	Short: "Show a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionGet,
}

func init() {
	sessionCreateCmd.Flags().StringVar(&sessionCreateAgent, "agent", "", "agent id to bind the session to (required)")
	sessionCreateCmd.Flags().StringVar(&sessionCreateTitle, "title", "", "session title")
	sessionCreateCmd.Flags().StringVar(&sessionCreateExplicitID, "id", "", "explicit session id")
	sessionCreateCmd.Flags().BoolVar(&sessionCreateAllowGreet, "allow-greeting", false, "dispatch the agent immediately on an empty session")
	sessionCreateCmd.MarkFlagRequired("agent")

	sessionCmd.AddCommand(sessionCreateCmd, sessionGetCmd)
}

func runSessionCreate(cmd *cobra.Command, args []string) error {
	body, _ := sjson.SetBytes([]byte(`{}`), "agent_id", sessionCreateAgent)
	if sessionCreateTitle != "" {
		body, _ = sjson.SetBytes(body, "title", sessionCreateTitle)
	}
	if sessionCreateExplicitID != "" {
		body, _ = sjson.SetBytes(body, "id", sessionCreateExplicitID)
	}

	path := "/api/sessions"
	if sessionCreateAllowGreet {
		path += "?allow_greeting=true"
	}

	data, err := postJSON(cmd.Context(), path, body)
	if err != nil {
		return err
	}
	printSession(data)
	return nil
}

func runSessionGet(cmd *cobra.Command, args []string) error {
	data, err := getJSON(cmd.Context(), "/api/sessions/"+args[0])
	if err != nil {
		return err
	}
	printSession(data)
	return nil
}

func printSession(data []byte) {
	s := gjson.ParseBytes(data)
	fmt.Printf("%s  agent=%s  mode=%s  title=%s\n",
		color.New(color.FgGreen).Sprint(s.Get("id").String()),
		s.Get("agent_id").String(),
		s.Get("mode").String(),
		s.Get("title").String())
}
