// ABOUTME: Interactive command loop for the parley client
// ABOUTME: Slash commands for auth, agent selection, history, and export

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/parley/internal/api"
	"github.com/2389/parley/internal/conversation"
	"github.com/2389/parley/internal/directory"
	"github.com/2389/parley/internal/export"
	"github.com/2389/parley/internal/session"
)

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	agentColor  = color.New(color.FgGreen)
	errColor    = color.New(color.FgRed)
	dimColor    = color.New(color.FgHiBlack)
)

type repl struct {
	sessions      *session.Manager
	conversations *conversation.Manager
	agents        *directory.Directory
	client        *api.Client

	selectedAgent string
}

func (r *repl) run(ctx context.Context) error {
	fmt.Println("parley - terminal chat client")
	r.printStatus()
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		r.printPrompt()

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := r.handleCommand(ctx, input); quit {
				return nil
			}
			fmt.Println()
			continue
		}

		r.send(ctx, input)
		fmt.Println()
	}
}

// handleCommand dispatches one slash command; returns true to quit.
func (r *repl) handleCommand(ctx context.Context, input string) bool {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		printHelp()
	case "/login":
		r.login(ctx, args)
	case "/signup":
		r.signup(ctx, args)
	case "/logout":
		r.sessions.Logout(ctx)
		fmt.Println("Signed out.")
	case "/whoami":
		r.printStatus()
	case "/agents":
		r.listAgents(ctx)
	case "/use":
		r.useAgent(ctx, args)
	case "/all":
		r.sendAll(ctx, args)
	case "/clear":
		r.clear()
	case "/history":
		r.history(ctx)
	case "/forget":
		r.forget(ctx, args)
	case "/export":
		r.export(args)
	default:
		errColor.Printf("Unknown command %s. Try /help.\n", cmd)
	}
	return false
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /login <email> <password>   Sign in")
	fmt.Println("  /signup <email> <password>  Create an account")
	fmt.Println("  /logout                     Sign out")
	fmt.Println("  /whoami                     Show the current user")
	fmt.Println("  /agents                     List available agents")
	fmt.Println("  /use <id>                   Select the agent to chat with")
	fmt.Println("  /all <message>              Send one message to every agent")
	fmt.Println("  /clear                      Clear the current conversation")
	fmt.Println("  /history                    Show stored sessions with this agent")
	fmt.Println("  /forget <session_id>        Delete one stored session")
	fmt.Println("  /export <file.html>         Export the conversation as HTML")
	fmt.Println("  /quit                       Exit")
}

func (r *repl) printPrompt() {
	if r.selectedAgent != "" {
		promptColor.Printf("[%s]> ", r.selectedAgent)
	} else {
		promptColor.Print("> ")
	}
}

func (r *repl) printStatus() {
	state := r.sessions.State()
	if state.User != nil {
		fmt.Printf("Signed in as %s\n", state.User.Email)
	} else {
		fmt.Println("Not signed in. Use /login or /signup.")
	}
}

func (r *repl) login(ctx context.Context, args string) {
	email, password, ok := strings.Cut(args, " ")
	if !ok {
		errColor.Println("Usage: /login <email> <password>")
		return
	}
	user, err := r.sessions.Login(ctx, email, strings.TrimSpace(password))
	if err != nil {
		errColor.Println(err)
		return
	}
	fmt.Printf("Signed in as %s\n", user.Email)
}

func (r *repl) signup(ctx context.Context, args string) {
	email, password, ok := strings.Cut(args, " ")
	if !ok {
		errColor.Println("Usage: /signup <email> <password>")
		return
	}
	user, err := r.sessions.Signup(ctx, email, strings.TrimSpace(password))
	if err != nil {
		errColor.Println(err)
		return
	}
	if user == nil {
		fmt.Println("Account created. Check your email for a confirmation link, then /login.")
		return
	}
	fmt.Printf("Signed in as %s\n", user.Email)
}

func (r *repl) listAgents(ctx context.Context) {
	agents, err := r.agents.List(ctx)
	if err != nil {
		errColor.Println(err)
		return
	}
	if len(agents) == 0 {
		fmt.Println("No agents available")
		return
	}
	fmt.Println("Available agents:")
	for _, a := range agents {
		marker := " "
		if a.ID == r.selectedAgent {
			marker = "*"
		}
		fmt.Printf(" %s %s: %s", marker, a.ID, a.Name)
		if a.Description != "" {
			dimColor.Printf(" - %s", a.Description)
		}
		fmt.Println()
	}
}

func (r *repl) useAgent(ctx context.Context, id string) {
	if id == "" {
		r.selectedAgent = ""
		fmt.Println("Cleared agent selection")
		return
	}
	agent, err := r.agents.Get(ctx, id)
	if err != nil {
		errColor.Println(err)
		return
	}
	r.selectedAgent = agent.ID
	fmt.Printf("Now chatting with %s\n", agent.Name)
}

func (r *repl) send(ctx context.Context, text string) {
	if r.selectedAgent == "" {
		errColor.Println("No agent selected. Use /agents to list and /use <id> to pick one.")
		return
	}
	reply, err := r.conversations.Send(ctx, r.selectedAgent, text)
	if err != nil {
		r.printSendError(err)
		return
	}
	if reply == nil {
		return
	}
	agentColor.Printf("%s: ", r.selectedAgent)
	fmt.Println(reply.Content)
}

func (r *repl) sendAll(ctx context.Context, text string) {
	agents, err := r.agents.List(ctx)
	if err != nil {
		errColor.Println(err)
		return
	}
	ids := make([]string, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}

	replies, err := r.conversations.SendMulti(ctx, ids, text)
	if err != nil {
		r.printSendError(err)
		return
	}
	for _, id := range ids {
		reply, ok := replies[id]
		if !ok {
			dimColor.Printf("%s: (no reply)\n", id)
			continue
		}
		agentColor.Printf("%s: ", id)
		fmt.Println(reply.Content)
	}
}

func (r *repl) printSendError(err error) {
	switch {
	case errors.Is(err, conversation.ErrNotAuthenticated):
		errColor.Println("You need to sign in before sending messages. Use /login.")
	case errors.Is(err, conversation.ErrEmptyMessage):
		errColor.Println("Nothing to send.")
	default:
		errColor.Println(err)
	}
}

func (r *repl) clear() {
	if r.selectedAgent == "" {
		errColor.Println("No agent selected.")
		return
	}
	r.conversations.Clear(r.selectedAgent)
	fmt.Println("Conversation cleared.")
}

func (r *repl) history(ctx context.Context) {
	userID := r.sessions.UserID()
	if userID == "" {
		errColor.Println("Sign in to see stored history.")
		return
	}
	if r.selectedAgent == "" {
		errColor.Println("No agent selected. Use /use <id> first.")
		return
	}

	records, err := r.client.ListUserAgentSessions(ctx, userID, r.selectedAgent, 20)
	if err != nil {
		errColor.Println(err)
		return
	}
	if len(records) == 0 {
		fmt.Println("No stored sessions with this agent.")
		return
	}
	for _, rec := range records {
		dimColor.Printf("%s  [%s]\n", rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.ID)
		fmt.Printf("you: %s\n", rec.Query)
		agentColor.Printf("%s: ", rec.AgentID)
		fmt.Println(rec.Response)
		fmt.Println()
	}
}

func (r *repl) forget(ctx context.Context, sessionID string) {
	if sessionID == "" {
		errColor.Println("Usage: /forget <session_id>")
		return
	}
	if err := r.client.DeleteSession(ctx, sessionID); err != nil {
		errColor.Println(err)
		return
	}
	fmt.Println("Session deleted.")
}

func (r *repl) export(path string) {
	if r.selectedAgent == "" {
		errColor.Println("No agent selected.")
		return
	}
	if path == "" {
		errColor.Println("Usage: /export <file.html>")
		return
	}

	messages := r.conversations.Messages(r.selectedAgent)
	if len(messages) == 0 {
		errColor.Println("Nothing to export.")
		return
	}

	var email string
	if state := r.sessions.State(); state.User != nil {
		email = state.User.Email
	}

	f, err := os.Create(path)
	if err != nil {
		errColor.Println(err)
		return
	}
	defer f.Close()

	transcript := export.Transcript{
		AgentName:  r.selectedAgent,
		UserEmail:  email,
		ExportedAt: time.Now(),
		Messages:   messages,
	}
	if err := export.WriteHTML(f, transcript); err != nil {
		errColor.Println(err)
		return
	}
	fmt.Printf("Exported %d messages to %s\n", len(messages), path)
}
