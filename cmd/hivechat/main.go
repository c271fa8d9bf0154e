// Command hivechat is a terminal client for Home Hive direct messages.
//
// Plain lines are sent to the open conversation. Commands:
//
//	/open <user id>     open the conversation with a user
//	/search <query>     find users by name or email
//	/inbox              list recent conversations
//	/file <path> [text] send a photo or video with an optional caption
//	/close              close the conversation
//	/quit               sign out and exit
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"homehive/internal/apiclient"
	"homehive/internal/feed"
	"homehive/internal/notifications"
)

func main() {
	server := flag.String("server", "http://localhost:8375", "API base URL")
	email := flag.String("email", "tenant@example.com", "Account email")
	password := flag.String("password", "Password123!", "Account password")
	peer := flag.Uint("peer", 0, "User ID to open (0 = last conversation)")
	statePath := flag.String("state", feed.DefaultLastConversationPath(), "File remembering the last conversation")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *server, *email, *password, uint(*peer), *statePath); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(ctx context.Context, server, email, password string, peer uint, statePath string) error {
	session := feed.NewSession()
	client, err := apiclient.New(server, session)
	if err != nil {
		return err
	}

	auth, err := client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := session.SignIn(auth.User, auth.Token); err != nil {
		return err
	}
	log.Printf("✅ Signed in as %s (id %d)", auth.User.Name, auth.User.ID)
	defer func() {
		logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Logout(logoutCtx); err != nil {
			log.Printf("logout failed: %v", err)
		}
		session.SignOut()
	}()

	store := feed.NewFileLastConversationStore(statePath)
	view := feed.NewConversationView(client, session, store)
	defer view.Dispose()

	r := &renderer{self: session.UserID(), seen: make(map[int64]bool)}
	view.OnChange(r.render)

	go listen(ctx, client, view)

	if peer == 0 {
		if last, ok, err := store.Load(); err == nil && ok {
			peer = last
		}
	}
	if peer != 0 {
		openConversation(ctx, view, r, peer)
	}

	return readLoop(ctx, client, view, r)
}

// listen keeps the realtime stream open until ctx ends. Events missed while the
// socket was down are recovered by reloading the open conversation.
func listen(ctx context.Context, client *apiclient.Client, view *feed.ConversationView) {
	client.Follow(ctx,
		func() {
			if err := view.Resync(ctx); err != nil {
				log.Printf("resync after reconnect: %v", err)
			}
		},
		func(ev notifications.Event) {
			if err := view.HandleEvent(ctx, ev); err != nil {
				log.Printf("event %s: %v", ev.Type, err)
			}
		},
		func(err error, retryIn time.Duration) {
			log.Printf("realtime disconnected: %v (retrying in %s)", err, retryIn)
		},
	)
}

func readLoop(ctx context.Context, client *apiclient.Client, view *feed.ConversationView, r *renderer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, client, view, r, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, client *apiclient.Client, view *feed.ConversationView, r *renderer, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		send(ctx, view, line, nil)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit":
		return true
	case "/open":
		id, err := strconv.ParseUint(arg, 10, 32)
		if err != nil || id == 0 {
			fmt.Println("usage: /open <user id>")
			return false
		}
		openConversation(ctx, view, r, uint(id))
	case "/close":
		view.Close()
		fmt.Println("conversation closed")
	case "/search":
		users, err := client.SearchUsers(ctx, arg)
		if err != nil {
			fmt.Printf("search failed: %v\n", err)
			return false
		}
		for _, u := range users {
			fmt.Printf("  %6d  %s <%s>\n", u.ID, u.Name, u.Email)
		}
	case "/inbox":
		inbox, err := client.Inbox(ctx)
		if err != nil {
			fmt.Printf("inbox failed: %v\n", err)
			return false
		}
		for _, entry := range inbox {
			if entry.Peer == nil || entry.LastMessage == nil {
				continue
			}
			fmt.Printf("  %6d  %-24s %s\n", entry.Peer.ID, entry.Peer.Name, preview(entry.LastMessage.Text))
		}
	case "/file":
		path, caption, _ := strings.Cut(arg, " ")
		media, err := readAttachment(path)
		if err != nil {
			fmt.Printf("cannot attach %q: %v\n", path, err)
			return false
		}
		send(ctx, view, caption, media)
	default:
		fmt.Printf("unknown command %s\n", cmd)
	}
	return false
}

func openConversation(ctx context.Context, view *feed.ConversationView, r *renderer, peer uint) {
	r.reset()
	if err := view.Open(ctx, peer); err != nil {
		fmt.Printf("cannot open conversation with %d: %v\n", peer, err)
		return
	}
	fmt.Printf("── conversation with user %d ──\n", peer)
}

func send(ctx context.Context, view *feed.ConversationView, text string, media *feed.Attachment) {
	_, err := view.Send(ctx, text, media)
	switch {
	case err == nil:
	case errors.Is(err, feed.ErrViewClosed):
		fmt.Println("open a conversation first: /open <user id>")
	case errors.Is(err, feed.ErrEmptyMessage):
	default:
		fmt.Printf("message not sent: %v\n", err)
	}
}

func readAttachment(path string) (*feed.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &feed.Attachment{Filename: filepath.Base(path), ContentType: contentType, Data: data}, nil
}

func preview(text string) string {
	const limit = 48
	if len([]rune(text)) <= limit {
		return text
	}
	return string([]rune(text)[:limit-1]) + "…"
}

// renderer prints each confirmed message once, and pending ones as they appear.
type renderer struct {
	self uint

	mu   sync.Mutex
	seen map[int64]bool
}

func (r *renderer) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = make(map[int64]bool)
}

func (r *renderer) render(items []feed.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		if r.seen[it.ID] {
			continue
		}
		r.seen[it.ID] = true

		who := "them"
		if it.Message.SenderID == r.self {
			who = "me"
		}
		status := ""
		if it.Pending {
			status = " (sending)"
		}
		text := it.Message.Text
		if it.Message.MediaURL != "" {
			text = strings.TrimSpace(text + " [" + it.Message.MediaURL + "]")
		}
		fmt.Printf("%s %-4s %s%s\n", it.Message.CreatedAt.Local().Format("15:04"), who, text, status)
	}
}
