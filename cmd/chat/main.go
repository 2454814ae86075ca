package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"ai-helpdesk-be/internal/bootstrap"
	"ai-helpdesk-be/internal/config"
	"ai-helpdesk-be/pkg/database"
	"ai-helpdesk-be/pkg/rag/session"

	"github.com/fatih/color"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const help = "Commands: /history, /clear, /new, /quit"

func main() {
	cfg := config.Load()

	var db *gorm.DB
	if cfg.Database.Connection != "" {
		conn, err := database.NewGormDBFromDSN(cfg.Database.Connection, false, database.WithLogger(logger.Discard))
		if err != nil {
			color.Red("Database unavailable, continuing without knowledge base: %v", err)
		} else {
			db = conn
		}
	}

	container, err := bootstrap.NewContainer(db, cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	manager := container.SessionManager
	cyan := color.New(color.FgCyan)
	sessionID := ""

	color.Cyan("🤖 Helpdesk console (%s mode)", manager.Config().Mode)
	color.Yellow(help)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nyou> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return
		case "/new":
			sessionID = ""
			color.Green("Started a new conversation")
			continue
		case "/clear":
			if sessionID == "" {
				color.Yellow("Nothing to clear")
				continue
			}
			if _, err := manager.ClearHistory(ctx, sessionID); err != nil {
				color.Red("Failed: %v", err)
				continue
			}
			color.Green("History cleared for %s", sessionID)
			continue
		case "/history":
			printHistory(ctx, manager, sessionID)
			continue
		}

		fmt.Print("bot> ")
		res, err := manager.Chat(ctx, session.ChatRequest{
			Message:   line,
			SessionID: sessionID,
			UseRAG:    true,
			Stream:    true,
			OnChunk:   func(text string) { _, _ = cyan.Print(text) },
		})
		fmt.Println()
		if err != nil {
			color.Red("Failed: %v", err)
			if ctx.Err() != nil {
				return
			}
			continue
		}
		sessionID = res.SessionID

		// the streamed text is provisional; show the final answer when it differs
		if res.Assessment != nil && (res.Assessment.NeedsClarification || res.Assessment.NeedsHuman) {
			color.Yellow("%s", res.Response)
		}
		color.New(color.Faint).Printf("confidence=%.2f sources=%d session=%s\n", res.Confidence, len(res.Sources), res.SessionID)
	}
}

func printHistory(ctx context.Context, manager *session.Manager, sessionID string) {
	if sessionID == "" {
		color.Yellow("No conversation yet")
		return
	}
	messages, err := manager.GetHistory(ctx, sessionID, 0)
	if err != nil {
		color.Red("Failed: %v", err)
		return
	}
	for _, msg := range messages {
		color.Magenta("[%s] %s", msg.Role, msg.Content)
	}
}
