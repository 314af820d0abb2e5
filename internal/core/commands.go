package core

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"

	"bossbot/internal/boss"
	"bossbot/internal/storage"
	kit "bossbot/internal/transport"
	"bossbot/pkg/logx"
	"bossbot/pkg/tgui"
)

// callbackScope prefixes all inline-button callback data of this bot.
const callbackScope = "boss"

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	OwnerOnly   bool
	Handle      HandlerFunc
}

type HandlerFunc func(ctx context.Context, req *Request) error

// Request carries one routed update into a handler.
type Request struct {
	Chat     kit.ChatTarget
	FromID   int64
	FromName string
	Args     []string

	// Callback-only fields.
	CallbackID string
	MessageID  int
	Payload    string
}

// Deps are the collaborators handlers need.
type Deps struct {
	Adapter kit.Adapter
	Store   *boss.Store
	Mgr     *boss.Manager
	Audit   storage.Store // may be nil
	Render  *Renderer
	Log     logx.Logger
}

// Commands routes incoming updates to command and callback handlers.
type Commands struct {
	deps Deps

	mu     sync.RWMutex
	owners []int64

	byName    map[string]*Command
	ordered   []*Command
	callbacks map[string]HandlerFunc // action -> handler

	jobs chan func()
}

func NewCommands(deps Deps, owners []int64) *Commands {
	c := &Commands{
		deps:      deps,
		owners:    append([]int64(nil), owners...),
		byName:    map[string]*Command{},
		callbacks: map[string]HandlerFunc{},
		jobs:      make(chan func(), 256),
	}
	c.register()
	return c
}

// SetOwners updates the owner list used for OwnerOnly checks.
// Safe to call during hot reload.
func (c *Commands) SetOwners(owners []int64) {
	c.mu.Lock()
	c.owners = append([]int64(nil), owners...)
	c.mu.Unlock()
}

func (c *Commands) isOwner(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, o := range c.owners {
		if o == id {
			return true
		}
	}
	return false
}

func (c *Commands) add(cmd Command) {
	cc := cmd
	c.ordered = append(c.ordered, &cc)
	c.byName[cc.Name] = &cc
	for _, a := range cc.Aliases {
		a = strings.TrimSpace(a)
		if a != "" {
			c.byName[a] = &cc
		}
	}
}

// MenuCommands lists the commands for the platform command menu.
func (c *Commands) MenuCommands() []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(c.ordered))
	for _, cmd := range c.ordered {
		out = append(out, kit.BotCommand{Command: cmd.Name, Description: cmd.Description})
	}
	return out
}

// DispatchLoop consumes updates until ctx is done. Handlers run on a small
// worker pool; a panicking handler is recovered and logged.
func (c *Commands) DispatchLoop(ctx context.Context, updates <-chan kit.Update) {
	const workers = 4

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-c.jobs:
					if !ok {
						return
					}
					job()
				}
			}
		}()
	}
	c.deps.Log.Info("command dispatcher started", logx.Int("workers", workers))

	defer func() {
		close(c.jobs)
		wg.Wait()
		c.deps.Log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			c.route(ctx, up)
		}
	}
}

func (c *Commands) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		c.routeMessage(ctx, up.Message)
	case kit.UpdateCallback:
		c.routeCallback(ctx, up.Callback)
	}
}

func (c *Commands) routeMessage(ctx context.Context, msg *kit.Message) {
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}

	c.mu.RLock()
	cmd := c.byName[strings.ToLower(word)]
	c.mu.RUnlock()

	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	if cmd == nil {
		c.reply(ctx, chat, "unknown command. try /help")
		return
	}
	if cmd.OwnerOnly && !c.isOwner(msg.FromID) {
		c.reply(ctx, chat, "unauthorized")
		return
	}

	req := &Request{
		Chat:     chat,
		FromID:   msg.FromID,
		FromName: msg.FromUsername,
		Args:     parts[1:],
	}
	c.enqueue(ctx, cmd.Name, req, cmd.Handle)
}

func (c *Commands) routeCallback(ctx context.Context, cb *kit.Callback) {
	if cb == nil {
		return
	}
	scope, action, payload := tgui.Split(cb.Data)
	if scope != callbackScope {
		return
	}
	c.mu.RLock()
	handle := c.callbacks[action]
	c.mu.RUnlock()
	if handle == nil {
		return
	}
	req := &Request{
		Chat:       kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:     cb.FromID,
		FromName:   cb.FromName,
		CallbackID: cb.ID,
		MessageID:  cb.MessageID,
		Payload:    payload,
	}
	c.enqueue(ctx, "callback:"+action, req, handle)
}

func (c *Commands) enqueue(ctx context.Context, name string, req *Request, handle HandlerFunc) {
	job := func() {
		defer func() {
			if r := recover(); r != nil {
				c.deps.Log.Error("panic in command handler",
					logx.String("command", name),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}()
		if err := handle(ctx, req); err != nil {
			c.deps.Log.Warn("command failed", logx.String("command", name), logx.Err(err))
		}
	}
	select {
	case c.jobs <- job:
	default:
		c.deps.Log.Warn("command queue full; dropping", logx.String("command", name))
	}
}

func (c *Commands) reply(ctx context.Context, to kit.ChatTarget, text string) {
	if _, err := c.deps.Adapter.SendText(ctx, to, text, &kit.SendOptions{DisablePreview: true}); err != nil {
		c.deps.Log.Warn("reply failed", logx.Err(err))
	}
}
