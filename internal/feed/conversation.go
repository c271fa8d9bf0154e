package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"homehive/internal/models"
	"homehive/internal/notifications"
)

// ViewState is the lifecycle state of a ConversationView.
type ViewState int

const (
	Closed ViewState = iota
	Open
)

func (s ViewState) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

var (
	ErrViewClosed   = errors.New("conversation is not open")
	ErrEmptyMessage = errors.New("message must contain text or media")
	ErrOpenCanceled = errors.New("conversation was closed while loading")
)

// Attachment is a media file sent with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ConversationAPI is the part of the server a conversation view talks to.
type ConversationAPI interface {
	LoadConversation(ctx context.Context, peerID uint) ([]*models.Message, error)
	SendMessage(ctx context.Context, peerID uint, text string, media *Attachment) (*models.Message, error)
}

// Item is one row of the view. Pending items were appended optimistically and
// carry a negative temporary ID until the server confirms them.
type Item struct {
	ID      int64
	Pending bool
	Message models.Message
}

// ConversationView holds the ordered messages of the conversation with one peer.
// Items are ordered by created_at, then id, and an id appears at most once.
type ConversationView struct {
	api     ConversationAPI
	session *Session
	last    LastConversationStore

	mu         sync.Mutex
	state      ViewState
	peerID     uint
	items      []Item
	nextTempID int64
	// generation changes on every Open and Close so late responses for a
	// conversation that is no longer shown are dropped.
	generation uint64
	// opening is the Open call whose load is in flight, if any.
	opening  *openAttempt
	onChange func([]Item)

	unsubscribe func()
}

// NewConversationView creates a closed view. The view closes itself when the
// session signs out. last may be nil.
func NewConversationView(api ConversationAPI, session *Session, last LastConversationStore) *ConversationView {
	v := &ConversationView{
		api:     api,
		session: session,
		last:    last,
	}
	v.unsubscribe = session.Subscribe(func(ev SessionEvent) {
		if ev.Kind == SignedOut {
			v.Close()
		}
	})
	return v
}

// Dispose detaches the view from the session.
func (v *ConversationView) Dispose() {
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
}

// OnChange registers fn to receive a snapshot after every change. fn runs on the
// goroutine that made the change, without the view's lock held.
func (v *ConversationView) OnChange(fn func([]Item)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// openAttempt collects realtime messages for the peer being loaded so they are
// not lost between the server snapshot and the switch to Open.
type openAttempt struct {
	peerID   uint
	buffered []models.Message
}

func (v *ConversationView) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// PeerID returns the peer of the open conversation, or zero when closed.
func (v *ConversationView) PeerID() uint {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.peerID
}

// Items returns a copy of the current sequence.
func (v *ConversationView) Items() []Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Open loads the full conversation with peerID and shows it, replacing whatever
// was open. When loading fails the view keeps its previous state. Messages for
// peerID merged while the load is in flight are kept. A Close, sign-out or newer
// Open during the load cancels this one with ErrOpenCanceled.
func (v *ConversationView) Open(ctx context.Context, peerID uint) error {
	self := v.session.UserID()
	if self == 0 {
		return ErrNotSignedIn
	}
	if peerID == 0 || peerID == self {
		return errors.New("choose someone else to message")
	}

	attempt := &openAttempt{peerID: peerID}
	v.mu.Lock()
	v.opening = attempt
	v.mu.Unlock()

	messages, err := v.api.LoadConversation(ctx, peerID)
	signedIn := v.session.UserID() == self

	v.mu.Lock()
	if v.opening != attempt {
		v.mu.Unlock()
		if err != nil {
			return err
		}
		return ErrOpenCanceled
	}
	v.opening = nil
	if err != nil {
		v.mu.Unlock()
		return err
	}
	if !signedIn {
		v.mu.Unlock()
		return ErrOpenCanceled
	}
	v.generation++
	v.state = Open
	v.peerID = peerID
	v.items = v.items[:0:0]
	for _, m := range messages {
		v.insertLocked(Item{ID: int64(m.ID), Message: *m})
	}
	for _, m := range attempt.buffered {
		if v.indexLocked(int64(m.ID)) < 0 {
			v.insertLocked(Item{ID: int64(m.ID), Message: m})
		}
	}
	snapshot, notify := v.snapshotLocked(), v.onChange
	v.mu.Unlock()

	if v.last != nil {
		_ = v.last.Save(peerID)
	}
	if notify != nil {
		notify(snapshot)
	}
	return nil
}

// Close drops the conversation and any pending sends.
func (v *ConversationView) Close() {
	v.mu.Lock()
	v.opening = nil
	if v.state == Closed {
		v.mu.Unlock()
		return
	}
	v.generation++
	v.state = Closed
	v.peerID = 0
	v.items = nil
	notify := v.onChange
	v.mu.Unlock()

	if v.last != nil {
		_ = v.last.Clear()
	}
	if notify != nil {
		notify(nil)
	}
}

// Refresh reloads the whole conversation. Pending sends, and rows merged or
// confirmed while the load was in flight, stay in place.
func (v *ConversationView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	if v.state != Open {
		v.mu.Unlock()
		return ErrViewClosed
	}
	peerID, gen := v.peerID, v.generation
	v.mu.Unlock()

	messages, err := v.api.LoadConversation(ctx, peerID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if v.generation != gen {
		v.mu.Unlock()
		return nil
	}
	previous := v.items
	v.items = make([]Item, 0, len(messages)+len(previous))
	for _, m := range messages {
		v.insertLocked(Item{ID: int64(m.ID), Message: *m})
	}
	for _, it := range previous {
		if v.indexLocked(it.ID) < 0 {
			v.insertLocked(it)
		}
	}
	snapshot, notify := v.snapshotLocked(), v.onChange
	v.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
	return nil
}

// Resync reloads an open conversation after the realtime stream was interrupted.
// A closed view has nothing to reload.
func (v *ConversationView) Resync(ctx context.Context) error {
	if err := v.Refresh(ctx); err != nil && !errors.Is(err, ErrViewClosed) {
		return err
	}
	return nil
}

// Merge inserts a confirmed message delivered out of band (a realtime event).
// Messages of other conversations, and ids already present, are ignored. A
// message for a conversation that is still loading is held until the load
// lands. It reports whether the message was accepted.
func (v *ConversationView) Merge(msg *models.Message) bool {
	if msg == nil || msg.ID == 0 {
		return false
	}
	self := v.session.UserID()

	v.mu.Lock()
	held := false
	if a := v.opening; a != nil && belongsTo(msg, self, a.peerID) {
		held = true
		for _, m := range a.buffered {
			if m.ID == msg.ID {
				held = false
				break
			}
		}
		if held {
			a.buffered = append(a.buffered, *msg)
		}
	}
	if v.state != Open || !belongsTo(msg, self, v.peerID) || v.indexLocked(int64(msg.ID)) >= 0 {
		v.mu.Unlock()
		return held
	}
	v.insertLocked(Item{ID: int64(msg.ID), Message: *msg})
	snapshot, notify := v.snapshotLocked(), v.onChange
	v.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
	return true
}

// HandleEvent applies a realtime event. A message_created event is merged; a
// messages_dropped notice means events were lost, so the view is reloaded.
func (v *ConversationView) HandleEvent(ctx context.Context, ev notifications.Event) error {
	switch ev.Type {
	case notifications.EventMessageCreated:
		var msg models.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			return err
		}
		v.Merge(&msg)
		return nil
	case notifications.EventMessagesDropped:
		if v.State() != Open {
			return nil
		}
		return v.Refresh(ctx)
	default:
		return nil
	}
}

// Send appends the message as pending straight away, then asks the server to
// store it. On success the pending item becomes the confirmed row; on failure
// it is removed so the view is exactly as it was before the call. There is no
// retry.
func (v *ConversationView) Send(ctx context.Context, text string, media *Attachment) (*models.Message, error) {
	self := v.session.UserID()
	if self == 0 {
		return nil, ErrNotSignedIn
	}
	text = strings.TrimSpace(text)
	if text == "" && media == nil {
		return nil, ErrEmptyMessage
	}

	v.mu.Lock()
	if v.state != Open {
		v.mu.Unlock()
		return nil, ErrViewClosed
	}
	v.nextTempID--
	tempID := v.nextTempID
	peerID, gen := v.peerID, v.generation
	v.insertLocked(Item{
		ID:      tempID,
		Pending: true,
		Message: models.Message{
			SenderID:   self,
			ReceiverID: peerID,
			Text:       text,
			CreatedAt:  time.Now(),
		},
	})
	snapshot, notify := v.snapshotLocked(), v.onChange
	v.mu.Unlock()
	if notify != nil {
		notify(snapshot)
	}

	saved, err := v.api.SendMessage(ctx, peerID, text, media)

	v.mu.Lock()
	if v.generation != gen {
		v.mu.Unlock()
		return saved, err
	}
	if i := v.indexLocked(tempID); i >= 0 {
		v.items = append(v.items[:i], v.items[i+1:]...)
	}
	// The realtime echo may already have delivered the confirmed row.
	if err == nil && saved != nil && v.indexLocked(int64(saved.ID)) < 0 {
		v.insertLocked(Item{ID: int64(saved.ID), Message: *saved})
	}
	snapshot, notify = v.snapshotLocked(), v.onChange
	v.mu.Unlock()
	if notify != nil {
		notify(snapshot)
	}
	return saved, err
}

func belongsTo(msg *models.Message, self, peer uint) bool {
	return (msg.SenderID == self && msg.ReceiverID == peer) ||
		(msg.SenderID == peer && msg.ReceiverID == self)
}

func (v *ConversationView) indexLocked(id int64) int {
	for i := range v.items {
		if v.items[i].ID == id {
			return i
		}
	}
	return -1
}

// insertLocked places it after every item that sorts before or equal to it.
// Pending items sort by their local timestamp and stay after confirmed rows
// stamped at the same instant.
func (v *ConversationView) insertLocked(it Item) {
	i := sort.Search(len(v.items), func(i int) bool {
		return itemLess(it, v.items[i])
	})
	v.items = append(v.items, Item{})
	copy(v.items[i+1:], v.items[i:])
	v.items[i] = it
}

func itemLess(a, b Item) bool {
	if !a.Message.CreatedAt.Equal(b.Message.CreatedAt) {
		return a.Message.CreatedAt.Before(b.Message.CreatedAt)
	}
	if a.Pending != b.Pending {
		return !a.Pending
	}
	if a.Pending {
		// More negative ids were created later.
		return a.ID > b.ID
	}
	return a.ID < b.ID
}

func (v *ConversationView) snapshotLocked() []Item {
	out := make([]Item, len(v.items))
	copy(out, v.items)
	return out
}
