package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/event-chat/internal/adapters/secondary/wsclient"
	"github.com/gatherly/event-chat/internal/chat"
	"github.com/gatherly/event-chat/internal/core/domain"
)

type devTokenResponse struct {
	Token       string             `json:"token"`
	Participant domain.Participant `json:"participant"`
}

// mintToken asks the server's dev endpoint for an identity and access token.
func mintToken(apiAddr, displayName, role string) (*devTokenResponse, error) {
	reqBody, _ := json.Marshal(map[string]string{
		"displayName": displayName,
		"role":        role,
	})
	resp, err := http.Post(apiAddr+"/api/v1/auth/dev-token", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token request failed: %s", string(body))
	}

	var tokenResp devTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "chat server address")
	displayName := flag.String("name", "guest", "display name")
	role := flag.String("role", "PARTICIPANT", "role: ORGANIZER or PARTICIPANT")
	roomID := flag.String("room", "event-1", "room id to join")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// 1. Mint a dev identity
	log.Printf("Minting identity for %s...", *displayName)
	identity, err := mintToken("http://"+*serverAddr, *displayName, *role)
	if err != nil {
		log.Fatal("identity: ", err)
	}
	log.Printf("Joined as %s (%s)", identity.Participant.DisplayName, identity.Participant.ID)

	// 2. Build the websocket transport with the token
	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/api/v1/ws"}
	q := u.Query()
	q.Set("token", identity.Token)
	u.RawQuery = q.Encode()

	transport, err := wsclient.New(wsclient.Config{URL: u.String(), Logger: logger})
	if err != nil {
		log.Fatal("transport: ", err)
	}

	// 3. Start the session
	sess, err := chat.NewSession(chat.SessionConfig{
		RoomID:    *roomID,
		Identity:  identity.Participant,
		Transport: transport,
		Logger:    logger,
		Location:  time.Local,
	})
	if err != nil {
		log.Fatal("session: ", err)
	}

	transport.Start(context.Background())
	sess.Start()

	// 4. Render updates as they arrive
	printed := make(map[uuid.UUID]bool)
	var lastPinned uuid.UUID
	go func() {
		for range sess.Updates() {
			render(sess, identity.Participant.ID, printed, &lastPinned)
		}
	}()

	// 5. Read stdin and send. Lines starting with /announce are sent as
	// announcements (organizers only).
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			announcement := false
			if strings.HasPrefix(line, "/announce ") {
				announcement = true
				line = strings.TrimPrefix(line, "/announce ")
			}
			if err := sess.Send(line, announcement); err != nil {
				log.Printf("send failed: %v", err)
			}
		}
	}()

	// 6. Shut down on interrupt or when the session ends
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-interrupt:
		log.Println("interrupted, closing session")
	case <-sess.Done():
		if err := sess.Err(); err != nil {
			log.Printf("session ended: %v", err)
		}
	}
	_ = sess.Close()
}

// render prints feed items that have not been shown yet.
func render(sess *chat.Session, selfID uuid.UUID, printed map[uuid.UUID]bool, lastPinned *uuid.UUID) {
	snap := sess.Snapshot()

	if snap.PinnedAnnouncement != nil && snap.PinnedAnnouncement.ID != *lastPinned {
		*lastPinned = snap.PinnedAnnouncement.ID
		fmt.Printf("\n== ANNOUNCEMENT: %s ==\n\n", snap.PinnedAnnouncement.Text)
	}

	for _, item := range snap.Feed {
		if printed[item.Message.ID] {
			continue
		}
		printed[item.Message.ID] = true

		if item.ShowDateSeparator {
			fmt.Printf("---- %s ----\n", item.DateLabel)
		}

		author := item.Message.Author.DisplayName
		if item.IsSelf {
			author = "you"
		}
		badge := ""
		if item.Message.Author.IsOrganizer() {
			badge = " [organizer]"
		}
		marker := ""
		if item.Message.IsAnnouncement {
			marker = " (announcement)"
		}
		fmt.Printf("[%s] %s%s:%s %s\n",
			item.Message.CreatedAt.Local().Format("15:04"),
			author, badge, marker, item.Message.Text,
		)
	}

	fmt.Printf("-- %d online --\n", len(snap.OnlineParticipantIDs))
}
