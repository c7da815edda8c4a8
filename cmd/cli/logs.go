package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/yourusername/mediabridge-go/pkg/logger"
)

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View server logs (acquire, access, error, process)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		category := string(logger.CategoryAcquire)
		if len(args) == 1 {
			category = args[0]
		}
		if !logger.ValidCategory(logger.LogCategory(category)) {
			exitOnError(fmt.Errorf("unknown category %q", category))
		}

		follow, _ := cmd.Flags().GetBool("follow")
		if follow {
			exitOnError(followLogs(category))
			return
		}

		query := url.Values{}
		limit, _ := cmd.Flags().GetInt("limit")
		query.Set("limit", strconv.Itoa(limit))
		if date, _ := cmd.Flags().GetString("date"); date != "" {
			query.Set("date", date)
		}
		path := "/api/v1/logs/" + category
		if search, _ := cmd.Flags().GetString("search"); search != "" {
			path += "/search"
			query.Set("q", search)
		}

		var result struct {
			Entries []logger.LogEntry `json:"entries"`
		}
		exitOnError(newAPIClient(serverURL).getJSON(path, query, &result))
		for _, entry := range result.Entries {
			printLogEntry(entry)
		}
	},
}

// followLogs streams entries over the websocket until interrupted
func followLogs(category string) error {
	wsURL := strings.Replace(serverURL, "http", "ws", 1) + "/api/v1/logs/ws?category=" + url.QueryEscape(category)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to log stream: %w", err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		var entry logger.LogEntry
		if err := conn.ReadJSON(&entry); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			select {
			case <-interrupt:
				return nil
			default:
			}
			return err
		}
		printLogEntry(entry)
	}
}

func printLogEntry(entry logger.LogEntry) {
	level := strings.ToUpper(entry.Level)
	switch entry.Level {
	case "error", "fatal", "panic":
		level = color.RedString(level)
	case "warn":
		level = color.YellowString(level)
	default:
		level = color.CyanString(level)
	}

	line := fmt.Sprintf("%s %-5s %s", entry.Timestamp, level, entry.Message)
	for _, key := range []string{"id", "url", "provider", "error_kind", "status", "path"} {
		if v, ok := entry.Fields[key]; ok {
			line += fmt.Sprintf(" %s=%v", key, v)
		}
	}
	fmt.Println(line)
}

func init() {
	logsCmd.Flags().BoolP("follow", "f", false, "Stream new entries")
	logsCmd.Flags().StringP("search", "s", "", "Only entries containing this text")
	logsCmd.Flags().StringP("date", "d", "", "Log date (YYYY-MM-DD, default today)")
	logsCmd.Flags().IntP("limit", "n", 100, "Maximum entries")
}
