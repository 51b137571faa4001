// chatcli is a terminal client for the docchat API: it creates a
// conversation, sends messages, renders the streamed reply as it
// arrives and can attach documents with /attach.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

var serverURL = flag.String("server", "http://localhost:8080", "docchat API base URL")

type conversation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type streamEvent struct {
	Event   string `json:"event"`
	Content string `json:"content"`
	Error   string `json:"error"`
}

func main() {
	flag.Parse()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	conv, err := createConversation(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create conversation: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(boldGreen("docchat"))
	fmt.Printf("Conversation: %s\n", boldCyan(conv.ID))
	fmt.Println("Type a message and press Enter. '/attach <path>' uploads a document, 'exit' quits.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())

		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit"):
			return
		case strings.HasPrefix(input, "/attach "):
			path := strings.TrimSpace(strings.TrimPrefix(input, "/attach "))
			if err := attachDocument(*serverURL, path); err != nil {
				fmt.Println(red("attach failed: " + err.Error()))
			} else {
				fmt.Printf("attached %s\n", filepath.Base(path))
			}
			continue
		}

		fmt.Print(boldCyan("Assistant: "))
		if err := streamMessage(*serverURL, conv.ID, input); err != nil {
			fmt.Println(red("error: " + err.Error()))
		}
		fmt.Println()
	}
}

func createConversation(server string) (conversation, error) {
	resp, err := http.Post(server+"/api/conversations", "application/json", nil)
	if err != nil {
		return conversation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return conversation{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var conv conversation
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		return conversation{}, err
	}
	return conv, nil
}

// streamMessage sends one message and prints SSE deltas as they arrive.
func streamMessage(server, conversationID, message string) error {
	endpoint := fmt.Sprintf("%s/api/conversations/%s/stream?message=%s",
		server, conversationID, url.QueryEscape(message))

	resp, err := http.Get(endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}

		switch ev.Event {
		case "delta":
			fmt.Print(ev.Content)
		case "error":
			return fmt.Errorf("%s", ev.Error)
		case "done":
			fmt.Println()
			return nil
		}
	}
	return scanner.Err()
}

// attachDocument uploads one file into the live document set.
func attachDocument(server, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := http.Post(server+"/api/documents", writer.FormDataContentType(), &body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Failed []struct {
			Name   string `json:"name"`
			Reason string `json:"reason"`
		} `json:"failed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%s: %s", result.Failed[0].Name, result.Failed[0].Reason)
	}
	return nil
}
