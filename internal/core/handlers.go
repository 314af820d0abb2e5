package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"bossbot/internal/boss"
	"bossbot/internal/storage"
	kit "bossbot/internal/transport"
	"bossbot/pkg/logx"
)

func (c *Commands) register() {
	c.add(Command{
		Name:        "kill",
		Aliases:     []string{"k"},
		Description: "record a boss kill now",
		Usage:       "/kill <boss>",
		Handle:      c.handleKill,
	})
	c.add(Command{
		Name:        "killat",
		Description: "record a boss kill at a time today",
		Usage:       "/killat <boss> <HHMM>",
		Handle:      c.handleKillAt,
	})
	c.add(Command{
		Name:        "when",
		Description: "show one boss status",
		Usage:       "/when <boss>",
		Handle:      c.handleWhen,
	})
	c.add(Command{
		Name:        "all",
		Description: "list upcoming bosses",
		Usage:       "/all [limit]",
		Handle:      c.handleAll,
	})
	c.add(Command{
		Name:        "add",
		Description: "track a boss with a respawn period",
		Usage:       "/add <boss> <minutes>",
		OwnerOnly:   true,
		Handle:      c.handleAdd,
	})
	c.add(Command{
		Name:        "set",
		Description: "change a boss respawn period",
		Usage:       "/set <boss> <minutes>",
		OwnerOnly:   true,
		Handle:      c.handleSet,
	})
	c.add(Command{
		Name:        "del",
		Description: "stop tracking a boss",
		Usage:       "/del <boss>",
		OwnerOnly:   true,
		Handle:      c.handleDel,
	})
	c.add(Command{
		Name:        "clear",
		Description: "forget all recorded kills",
		Usage:       "/clear",
		OwnerOnly:   true,
		Handle:      c.handleClear,
	})
	c.add(Command{
		Name:        "help",
		Description: "show available commands",
		Usage:       "/help",
		Handle:      c.handleHelp,
	})

	c.callbacks["confirm"] = c.handleConfirm
	c.callbacks["dismiss"] = c.handleDismiss
}

func (c *Commands) actor(req *Request) string {
	if req.FromName != "" {
		return req.FromName
	}
	return "id:" + strconv.FormatInt(req.FromID, 10)
}

// audit appends an audit entry if a store is configured.
func (c *Commands) audit(ctx context.Context, req *Request, action, bossName, detail string) {
	if c.deps.Audit == nil {
		return
	}
	e := storage.AuditEntry{
		At:     time.Now().UTC(),
		Actor:  c.actor(req),
		ChatID: req.Chat.ChatID,
		Action: action,
		Boss:   bossName,
		Detail: detail,
	}
	if err := c.deps.Audit.AppendAudit(ctx, e); err != nil {
		c.deps.Log.Warn("audit append failed", logx.String("action", action), logx.Err(err))
	}
}

func (c *Commands) recordAndReply(ctx context.Context, req *Request, name string, at time.Time) error {
	rec := c.deps.Mgr.RecordKill(ctx, name, req.Chat, c.actor(req), at)

	now := time.Now()
	s := c.deps.Mgr.Settings()
	st := boss.Classify(rec.Period, rec.LastKill, now, s.EarlyWarning)

	text, opt := c.deps.Render.StatusCard(name, rec, st, s, "recorded by "+c.actor(req), now)
	if _, err := c.deps.Adapter.SendText(ctx, req.Chat, text, opt); err != nil {
		return fmt.Errorf("send kill reply: %w", err)
	}
	return nil
}

func (c *Commands) handleKill(ctx context.Context, req *Request) error {
	name := strings.TrimSpace(strings.Join(req.Args, " "))
	if name == "" {
		c.reply(ctx, req.Chat, "usage: /kill <boss>")
		return nil
	}
	c.audit(ctx, req, "kill", name, "")
	return c.recordAndReply(ctx, req, name, time.Now())
}

func (c *Commands) handleKillAt(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 {
		c.reply(ctx, req.Chat, "usage: /killat <boss> <HHMM>")
		return nil
	}
	raw := req.Args[len(req.Args)-1]
	name := strings.TrimSpace(strings.Join(req.Args[:len(req.Args)-1], " "))
	if name == "" {
		c.reply(ctx, req.Chat, "usage: /killat <boss> <HHMM>")
		return nil
	}

	at, err := parseTodayHHMM(raw, time.Now())
	if err != nil {
		c.reply(ctx, req.Chat, "invalid time format, use HHMM (e.g. 2340)")
		return nil
	}
	c.audit(ctx, req, "killat", name, raw)
	return c.recordAndReply(ctx, req, name, at)
}

// parseTodayHHMM interprets a 4-digit HHMM as a wall-clock time on now's date.
func parseTodayHHMM(raw string, now time.Time) (time.Time, error) {
	if len(raw) != 4 {
		return time.Time{}, fmt.Errorf("want 4 digits, got %q", raw)
	}
	hh, err := strconv.Atoi(raw[:2])
	if err != nil || hh < 0 || hh > 23 {
		return time.Time{}, fmt.Errorf("bad hour in %q", raw)
	}
	mm, err := strconv.Atoi(raw[2:])
	if err != nil || mm < 0 || mm > 59 {
		return time.Time{}, fmt.Errorf("bad minute in %q", raw)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location()), nil
}

func (c *Commands) handleWhen(ctx context.Context, req *Request) error {
	name := strings.TrimSpace(strings.Join(req.Args, " "))
	if name == "" {
		c.reply(ctx, req.Chat, "usage: /when <boss>")
		return nil
	}
	rec := c.deps.Store.GetOrCreate(ctx, name, 0)
	now := time.Now()
	st := boss.Classify(rec.Period, rec.LastKill, now, c.deps.Mgr.Settings().EarlyWarning)

	footerText := "no kill recorded yet — /kill " + name
	if rec.LastKill != nil {
		footerText = "as of " + now.Format("15:04")
	}
	text, opt := c.deps.Render.StatusCard(name, rec, st, c.deps.Mgr.Settings(), footerText, now)
	if _, err := c.deps.Adapter.SendText(ctx, req.Chat, text, opt); err != nil {
		return fmt.Errorf("send status: %w", err)
	}
	return nil
}

func (c *Commands) handleAll(ctx context.Context, req *Request) error {
	limit := 10
	if len(req.Args) > 0 {
		n, err := strconv.Atoi(req.Args[0])
		if err != nil {
			c.reply(ctx, req.Chat, "usage: /all [limit]")
			return nil
		}
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 40 {
		limit = 40
	}

	now := time.Now()
	s := c.deps.Mgr.Settings()
	all := c.deps.Store.All()

	items := make([]upcomingItem, 0, len(all))
	for name, rec := range all {
		if rec.LastKill == nil {
			continue
		}
		st := boss.Classify(rec.Period, rec.LastKill, now, s.EarlyWarning)
		left := st.Respawn.Sub(now)
		if left < 0 {
			left = 0
		}
		items = append(items, upcomingItem{Name: name, Record: rec, Status: st, Left: left})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Left != items[j].Left {
			return items[i].Left < items[j].Left
		}
		return items[i].Name < items[j].Name
	})

	text, opt := c.deps.Render.ListUpcoming(items, limit, len(items))
	if _, err := c.deps.Adapter.SendText(ctx, req.Chat, text, opt); err != nil {
		return fmt.Errorf("send listing: %w", err)
	}
	return nil
}

func (c *Commands) parsePeriodArgs(req *Request) (name string, minutes int, ok bool) {
	if len(req.Args) < 2 {
		return "", 0, false
	}
	raw := req.Args[len(req.Args)-1]
	name = strings.TrimSpace(strings.Join(req.Args[:len(req.Args)-1], " "))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || name == "" {
		return "", 0, false
	}
	return name, n, true
}

func (c *Commands) handleAdd(ctx context.Context, req *Request) error {
	name, minutes, ok := c.parsePeriodArgs(req)
	if !ok {
		c.reply(ctx, req.Chat, "usage: /add <boss> <minutes>, minutes must be a positive number")
		return nil
	}
	c.deps.Store.GetOrCreate(ctx, name, minutes)
	rec := c.deps.Store.SetPeriod(ctx, name, minutes)
	c.audit(ctx, req, "add", name, strconv.Itoa(minutes))
	c.reply(ctx, req.Chat, fmt.Sprintf("tracking %s, respawn every %dm", name, rec.Period))
	return nil
}

func (c *Commands) handleSet(ctx context.Context, req *Request) error {
	name, minutes, ok := c.parsePeriodArgs(req)
	if !ok {
		c.reply(ctx, req.Chat, "usage: /set <boss> <minutes>, minutes must be a positive number")
		return nil
	}
	rec := c.deps.Store.SetPeriod(ctx, name, minutes)
	c.audit(ctx, req, "set", name, strconv.Itoa(minutes))
	c.reply(ctx, req.Chat, fmt.Sprintf("%s now respawns every %dm", name, rec.Period))
	return nil
}

func (c *Commands) handleDel(ctx context.Context, req *Request) error {
	name := strings.TrimSpace(strings.Join(req.Args, " "))
	if name == "" {
		c.reply(ctx, req.Chat, "usage: /del <boss>")
		return nil
	}
	if !c.deps.Store.Delete(ctx, name) {
		c.reply(ctx, req.Chat, "not tracking "+name)
		return nil
	}
	c.audit(ctx, req, "del", name, "")
	c.reply(ctx, req.Chat, "stopped tracking "+name)
	return nil
}

func (c *Commands) handleClear(ctx context.Context, req *Request) error {
	n := c.deps.Store.ClearAll(ctx)
	c.audit(ctx, req, "clear", "", strconv.Itoa(n))
	c.reply(ctx, req.Chat, fmt.Sprintf("cleared %d recorded kills", n))
	return nil
}

func (c *Commands) handleHelp(ctx context.Context, req *Request) error {
	var sb strings.Builder
	sb.WriteString("commands:\n")
	for _, cmd := range c.ordered {
		fmt.Fprintf(&sb, "%s", cmd.Usage)
		if cmd.OwnerOnly {
			sb.WriteString(" (owner)")
		}
		fmt.Fprintf(&sb, " — %s\n", cmd.Description)
	}
	c.reply(ctx, req.Chat, strings.TrimRight(sb.String(), "\n"))
	return nil
}

// handleConfirm flips the pressed respawn card into a confirmed kill. The
// pressed card is the live one, so there is nothing older to supersede; the
// edit below replaces it in place (and drops its keyboard).
func (c *Commands) handleConfirm(ctx context.Context, req *Request) error {
	name := strings.TrimSpace(req.Payload)
	if name == "" {
		return c.deps.Adapter.AnswerCallback(ctx, req.CallbackID, "stale button")
	}

	now := time.Now()
	rec := c.deps.Mgr.ConfirmKill(ctx, name, req.Chat, c.actor(req), now)
	c.audit(ctx, req, "confirm", name, "")

	st := boss.Classify(rec.Period, rec.LastKill, now, c.deps.Mgr.Settings().EarlyWarning)
	text, opt := c.deps.Render.Confirmed(name, rec, st, c.actor(req), now)

	ref := kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.MessageID}
	if err := c.deps.Adapter.EditText(ctx, ref, text, opt); err != nil {
		c.deps.Log.Warn("confirm edit failed", logx.String("boss", name), logx.Err(err))
	}
	return c.deps.Adapter.AnswerCallback(ctx, req.CallbackID, "kill logged")
}

// handleDismiss drops the card's keyboard but leaves the record alone, so the
// boss stays listed as spawned until somebody records a kill.
func (c *Commands) handleDismiss(ctx context.Context, req *Request) error {
	name := strings.TrimSpace(req.Payload)
	if name == "" {
		return c.deps.Adapter.AnswerCallback(ctx, req.CallbackID, "stale button")
	}

	now := time.Now()
	rec, ok := c.deps.Store.Get(name)
	if ok {
		st := boss.Classify(rec.Period, rec.LastKill, now, c.deps.Mgr.Settings().EarlyWarning)
		text, opt := c.deps.Render.StatusCard(name, rec, st, c.deps.Mgr.Settings(),
			"dismissed by "+c.actor(req), now)
		ref := kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.MessageID}
		if err := c.deps.Adapter.EditText(ctx, ref, text, opt); err != nil {
			c.deps.Log.Warn("dismiss edit failed", logx.String("boss", name), logx.Err(err))
		}
	}
	c.deps.Store.ClearCard(ctx, name)
	c.audit(ctx, req, "dismiss", name, "")
	return c.deps.Adapter.AnswerCallback(ctx, req.CallbackID, "dismissed")
}
