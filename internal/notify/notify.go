// Package notify is the client's notification center: the in-app
// inbox plus the sound and desktop alerts for notifications that
// arrive while the app is in the background.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/tasksphere/sphere-client/internal/api"
	"github.com/tasksphere/sphere-client/internal/models"
	"github.com/tasksphere/sphere-client/internal/realtime"
)

// Chime plays the in-app arrival sound.
type Chime interface {
	Play()
}

// Notifier posts an OS-level desktop notification.
type Notifier interface {
	Notify(title, message string) error
}

// beeepChime is the default two-tone arrival chime.
type beeepChime struct{}

func (beeepChime) Play() {
	if err := beeep.Beep(800, 150); err != nil {
		log.Printf("notify: chime failed: %v", err)
		return
	}
	time.Sleep(80 * time.Millisecond)
	if err := beeep.Beep(1000, 150); err != nil {
		log.Printf("notify: chime failed: %v", err)
	}
}

// beeepNotifier is the default desktop notifier.
type beeepNotifier struct{}

func (beeepNotifier) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Option configures a Center.
type Option func(*Center)

// WithChime replaces the default chime.
func WithChime(c Chime) Option { return func(n *Center) { n.chime = c } }

// WithNotifier replaces the default desktop notifier.
func WithNotifier(d Notifier) Option { return func(n *Center) { n.notifier = d } }

// WithSound toggles the arrival chime.
func WithSound(enabled bool) Option { return func(n *Center) { n.soundEnabled = enabled } }

// WithDesktop toggles desktop notifications.
func WithDesktop(enabled bool) Option { return func(n *Center) { n.desktopEnabled = enabled } }

// Center holds the notification inbox, newest first. The unread count
// is always recomputed from the list itself so the badge can never
// drift from what the inbox shows.
type Center struct {
	api *api.Client
	rt  *realtime.Client

	chime          Chime
	notifier       Notifier
	soundEnabled   bool
	desktopEnabled bool

	mu            sync.Mutex
	notifications []models.Notification
	unread        int
	focused       bool
	onHighlight   func(taskID, listID uint64)
	onChange      []func()

	handlerID realtime.HandlerID
	attached  bool
}

// NewCenter builds a center over the transport and realtime channel.
func NewCenter(client *api.Client, rt *realtime.Client, opts ...Option) *Center {
	n := &Center{
		api:            client,
		rt:             rt,
		chime:          beeepChime{},
		notifier:       beeepNotifier{},
		soundEnabled:   true,
		desktopEnabled: true,
		focused:        true,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Attach subscribes to newNotification pushes. Idempotent.
func (n *Center) Attach() {
	n.mu.Lock()
	if n.attached {
		n.mu.Unlock()
		return
	}
	n.attached = true
	n.mu.Unlock()
	n.handlerID = n.rt.OnNewNotification(n.Receive)
}

// Detach drops the push subscription and leaves the inbox as-is.
func (n *Center) Detach() {
	n.mu.Lock()
	if !n.attached {
		n.mu.Unlock()
		return
	}
	n.attached = false
	n.mu.Unlock()
	n.rt.Off(realtime.EventNewNotification, n.handlerID)
}

// OnHighlightTask registers the callback invoked when the user
// activates a notification that points at a task. listID is zero when
// the notification does not name one.
func (n *Center) OnHighlightTask(fn func(taskID, listID uint64)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onHighlight = fn
}

// OnChange registers a listener invoked after every inbox mutation.
func (n *Center) OnChange(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChange = append(n.onChange, fn)
}

// SetFocused tracks whether the app currently has the user's
// attention; desktop alerts only fire while it does not.
func (n *Center) SetFocused(focused bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.focused = focused
}

// Load replaces the inbox with the server's list.
func (n *Center) Load(ctx context.Context) error {
	notifications, err := n.api.ListNotifications(ctx)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.notifications = notifications
	n.recountLocked()
	n.mu.Unlock()
	n.fireChange()
	return nil
}

// recountLocked rebuilds the unread counter from the list. Caller
// holds n.mu.
func (n *Center) recountLocked() {
	unread := 0
	for i := range n.notifications {
		if !n.notifications[i].Read {
			unread++
		}
	}
	n.unread = unread
}

func (n *Center) fireChange() {
	n.mu.Lock()
	listeners := make([]func(), len(n.onChange))
	copy(listeners, n.onChange)
	n.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Receive merges a pushed notification into the inbox and raises the
// appropriate alerts. Duplicate pushes are dropped by id.
func (n *Center) Receive(notification models.Notification) {
	n.mu.Lock()
	for i := range n.notifications {
		if n.notifications[i].ID == notification.ID {
			n.mu.Unlock()
			return
		}
	}
	n.notifications = append([]models.Notification{notification}, n.notifications...)
	n.recountLocked()
	focused := n.focused
	sound := n.soundEnabled
	desktop := n.desktopEnabled
	n.mu.Unlock()

	if sound {
		go n.chime.Play()
	}
	// Reminders always reach the desktop; everything else only when
	// the app is in the background.
	if desktop && (!focused || notification.Type == models.NotificationTypeReminder) {
		if err := n.notifier.Notify(notification.Title, notification.Message); err != nil {
			log.Printf("notify: desktop notification failed: %v", err)
		}
	}
	n.fireChange()
}

// Activate marks a notification read and, when it references a task,
// invokes the highlight callback so the UI can jump to it.
func (n *Center) Activate(ctx context.Context, id uint64) error {
	if err := n.MarkRead(ctx, id); err != nil {
		return err
	}
	n.mu.Lock()
	var target *models.Notification
	for i := range n.notifications {
		if n.notifications[i].ID == id {
			target = &n.notifications[i]
			break
		}
	}
	highlight := n.onHighlight
	n.mu.Unlock()

	if target != nil && target.TaskID != nil && highlight != nil {
		var listID uint64
		if target.TaskListID != nil {
			listID = *target.TaskListID
		}
		highlight(*target.TaskID, listID)
	}
	return nil
}

// MarkRead marks one notification read.
func (n *Center) MarkRead(ctx context.Context, id uint64) error {
	if err := n.api.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	n.mu.Lock()
	for i := range n.notifications {
		if n.notifications[i].ID == id {
			n.notifications[i].Read = true
			break
		}
	}
	n.recountLocked()
	n.mu.Unlock()
	n.fireChange()
	return nil
}

// MarkAllRead marks the whole inbox read.
func (n *Center) MarkAllRead(ctx context.Context) error {
	if err := n.api.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	for i := range n.notifications {
		n.notifications[i].Read = true
	}
	n.recountLocked()
	n.mu.Unlock()
	n.fireChange()
	return nil
}

// Delete removes one notification.
func (n *Center) Delete(ctx context.Context, id uint64) error {
	if err := n.api.DeleteNotification(ctx, id); err != nil {
		return err
	}
	n.mu.Lock()
	for i := range n.notifications {
		if n.notifications[i].ID == id {
			n.notifications = append(n.notifications[:i], n.notifications[i+1:]...)
			break
		}
	}
	n.recountLocked()
	n.mu.Unlock()
	n.fireChange()
	return nil
}

// ClearAll empties the inbox.
func (n *Center) ClearAll(ctx context.Context) error {
	if err := n.api.ClearAllNotifications(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	n.notifications = nil
	n.recountLocked()
	n.mu.Unlock()
	n.fireChange()
	return nil
}

// Notifications returns the inbox, newest first.
func (n *Center) Notifications() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification(nil), n.notifications...)
}

// Unread is the badge count, derived from the list.
func (n *Center) Unread() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unread
}
