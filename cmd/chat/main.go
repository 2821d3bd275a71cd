// Terminal client for one project conversation. It wires the sync
// engine against the live database feed and the HTTP gate: confirmed
// steps stream in through LISTEN/NOTIFY, user input goes out through
// the admission-gated API, and the merged view re-renders on every
// change.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"stepchat-backend/internal/chat"
	"stepchat-backend/internal/pipeline"
	"stepchat-backend/internal/supabase"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: chat <project-id>")
		os.Exit(1)
	}
	projectID, err := uuid.Parse(os.Args[1])
	if err != nil {
		log.Fatalf("Invalid project id: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("API_BASE_URL", "http://localhost:8080/api/v1")
	dbURL := v.GetString("DATABASE_URL")
	token := v.GetString("API_TOKEN")
	if dbURL == "" || token == "" {
		log.Fatal("DATABASE_URL and API_TOKEN are required")
	}

	store, err := supabase.NewDatabaseClient(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	feed, err := supabase.NewChangeListener(dbURL)
	if err != nil {
		log.Fatalf("Failed to open change feed: %v", err)
	}
	defer feed.Close()

	gate := pipeline.NewClient(v.GetString("API_BASE_URL"), token)

	session := chat.NewSession(store, gate, feed)
	session.OnChange(render)
	defer session.Close()

	ctx := context.Background()
	if err := session.Enter(ctx, projectID); err != nil {
		log.Fatalf("Failed to enter project: %v", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/select "):
			index, err := strconv.Atoi(strings.TrimPrefix(line, "/select "))
			if err != nil {
				fmt.Println("usage: /select <option-number>")
				continue
			}
			step, ok := lastStep(session)
			if !ok {
				fmt.Println("no step to select from")
				continue
			}
			session.SelectOption(ctx, step, index-1)
		case line == "/approve":
			step, ok := lastStep(session)
			if !ok {
				fmt.Println("no step to approve")
				continue
			}
			session.Approve(ctx, step)
		case line == "/regen":
			step, ok := lastStep(session)
			if !ok {
				fmt.Println("no step to regenerate")
				continue
			}
			session.Regenerate(ctx, step)
		default:
			if err := session.Submit(ctx, line, nil); err != nil {
				if errors.Is(err, chat.ErrPipelineClosed) {
					fmt.Println("this project no longer accepts input")
					continue
				}
				fmt.Printf("submit failed: %v\n", err)
			}
		}
	}
}

func render(snap chat.Snapshot) {
	fmt.Print("\033[2J\033[H")
	for _, m := range snap.Messages {
		fmt.Printf("[%s] %s\n", m.Author, m.Content)
	}
	if snap.IsWorking {
		fmt.Println("... assistant is working")
	}
	if snap.Err != nil {
		var admission *chat.AdmissionError
		if errors.As(snap.Err, &admission) && admission.InsufficientCredits() {
			fmt.Println("!! out of credits - top up to continue")
		} else {
			fmt.Printf("!! %v\n", snap.Err)
		}
	}
	if snap.Terminal {
		fmt.Println("-- pipeline finished --")
	}
	fmt.Print("> ")
}

// lastStep finds the most recent confirmed step in the merged view.
func lastStep(session *chat.Session) (uuid.UUID, bool) {
	messages := session.Snapshot().Messages
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].StepResultID != uuid.Nil {
			return messages[i].StepResultID, true
		}
	}
	return uuid.Nil, false
}
