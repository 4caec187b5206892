package commands

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var chatCmd = &cobra.Command{
	Use:   "chat <session-id> <message...>",
	Short: "Post a message to a session and render the reply as it streams",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	message := strings.Join(args[1:], " ")

	body, _ := sjson.SetBytes([]byte(`{"type":"message","source":"user"}`), "content", message)

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
		serverURL+"/api/sessions/"+sessionID+"/events/stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	// A live turn is a side-effecting request: unlike the other
	// commands, a connection failure here is not retried, since a
	// retry could post the message twice.
	resp, err := httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", serverURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		detail := gjson.GetBytes(data, "detail").String()
		if detail == "" {
			detail = string(data)
		}
		return fmt.Errorf("server: %s (HTTP %d)", detail, resp.StatusCode)
	}

	return renderStream(resp.Body)
}

// renderStream parses the server's "event: <type>\ndata: <json>\n\n"
// framing and prints each frame as it arrives.
func renderStream(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			renderFrame(eventType, strings.TrimPrefix(line, "data: "))
		}
	}
	fmt.Println()
	return scanner.Err()
}

func renderFrame(eventType, data string) {
	switch eventType {
	case "chunk":
		color.New(color.FgCyan).Print(".")
	case "status":
		status := gjson.Get(data, "data.status").String()
		color.New(color.FgYellow).Printf("\n[%s]\n", status)
	case "message":
		gjson.Get(data, "data.parts").ForEach(func(_, part gjson.Result) bool {
			fmt.Print(part.Get("content").String())
			return true
		})
		fmt.Println()
	case "error":
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %s\n", gjson.Get(data, "message").String())
	case "":
		// data line with no preceding event line, nothing to render
	default:
		fmt.Println(data)
	}
}
