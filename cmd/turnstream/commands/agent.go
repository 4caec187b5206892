package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	agentCreateType        string
	agentCreateName        string
	agentCreateDescription string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agents",
}

var agentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new agent",
	RunE:  runAgentCreate,
}

var agentGetCmd = &cobra.Command{
	Use:   "get <agent-id>",
	Short: "Show an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentGet,
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	RunE:  runAgentList,
}

func init() {
	agentCreateCmd.Flags().StringVar(&agentCreateType, "type", "test", "agent type (runner dispatch key)")
	agentCreateCmd.Flags().StringVar(&agentCreateName, "name", "", "agent display name")
	agentCreateCmd.Flags().StringVar(&agentCreateDescription, "description", "", "agent description")

	agentCmd.AddCommand(agentCreateCmd, agentGetCmd, agentListCmd)
}

func runAgentCreate(cmd *cobra.Command, args []string) error {
	body, _ := sjson.SetBytes([]byte(`{}`), "type", agentCreateType)
	body, _ = sjson.SetBytes(body, "name", agentCreateName)
	if agentCreateDescription != "" {
		body, _ = sjson.SetBytes(body, "description", agentCreateDescription)
	}

	data, err := postJSON(cmd.Context(), "/api/agents", body)
	if err != nil {
		return err
	}
	printAgent(data)
	return nil
}

func runAgentGet(cmd *cobra.Command, args []string) error {
	data, err := getJSON(cmd.Context(), "/api/agents/"+args[0])
	if err != nil {
		return err
	}
	printAgent(data)
	return nil
}

func runAgentList(cmd *cobra.Command, args []string) error {
	data, err := getJSON(cmd.Context(), "/api/agents")
	if err != nil {
		return err
	}
	gjson.GetBytes(data, "data").ForEach(func(_, a gjson.Result) bool {
		printAgentResult(a)
		return true
	})
	return nil
}

func printAgent(data []byte) {
	printAgentResult(gjson.ParseBytes(data))
}

func printAgentResult(a gjson.Result) {
	fmt.Printf("%s  %-12s %s\n",
		color.New(color.FgGreen).Sprint(a.Get("id").String()),
		a.Get("type").String(),
		a.Get("name").String())
}
