// Command tinychat-cli is a terminal client for a running tinychat gateway.
// Messages stream to stdout as they arrive; /copy puts the last assistant
// reply on the system clipboard.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/boat-builder/tinychat"
)

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Gateway base URL")
	sessionID := flag.String("session", "", "Session id to resume (default: a fresh session)")
	flag.Parse()

	id := *sessionID
	if id == "" {
		id = tinychat.NewSessionID()
	}

	client := tinychat.NewClient(strings.TrimRight(*serverURL, "/") + "/api/chat")
	conv := tinychat.NewConversation(id, nil)
	conv.OnChunk = func(fragment string) {
		fmt.Print(fragment)
	}
	clip := tinychat.NewClipboard()

	fmt.Printf("Session %s. Type a message, /copy to copy the last reply, /quit to exit.\n", id)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/copy":
			copyLastReply(conv, clip)
		default:
			if err := client.Send(context.Background(), conv, line); err != nil {
				fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
				conv.Reset()
				continue
			}
			fmt.Println()
		}
	}
}

func copyLastReply(conv *tinychat.Conversation, clip *tinychat.Clipboard) {
	messages := conv.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != tinychat.RoleAssistant {
			continue
		}
		result := clip.Copy(messages[i].Text())
		if result.OK {
			fmt.Println("Copied last reply to clipboard.")
		} else {
			fmt.Printf("Copy failed (%s): %s\n", result.Reason, result.Detail)
		}
		return
	}
	fmt.Println("Nothing to copy yet.")
}
