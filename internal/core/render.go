package core

import (
	"fmt"
	"strings"
	"time"

	"bossbot/internal/boss"
	kit "bossbot/internal/transport"
	"bossbot/pkg/tgui"
)

// Renderer builds all outgoing boss messages. It implements boss.Renderer;
// the lifecycle manager hands it the card state tag and it decides the
// presentation (a suppressed card simply carries no confirm keyboard).
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

func bossLabel(name string) string { return name + " BOSS" }

func fmtMD(t time.Time) string {
	if t.IsZero() {
		return "--/--"
	}
	return t.Format("01-02")
}

func fmtHM(t time.Time) string {
	if t.IsZero() {
		return "--:--"
	}
	return t.Format("15:04")
}

// progressBar renders elapsed cycle progress as "#####-------".
func progressBar(elapsed time.Duration, periodMinutes int, width int) string {
	total := periodMinutes * 60
	if total < 1 {
		total = 1
	}
	e := int(elapsed.Seconds())
	if e < 0 {
		e = 0
	}
	if e > total {
		e = total
	}
	filled := (e*width + total/2) / total
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
}

func stateLine(st boss.Status, s boss.Settings) string {
	switch st.Phase {
	case boss.PhaseSpawned:
		return "🔴 spawned"
	case boss.PhaseImminent:
		return fmt.Sprintf("🟡 spawning soon (within %s)", boss.FormatCompact(s.EarlyWarning))
	case boss.PhaseMissed:
		return fmt.Sprintf("🟠 overdue — %s", st.Remaining)
	case boss.PhaseWaiting:
		return "🔵 cooling down"
	default:
		return "⚪ no kill recorded"
	}
}

// cardBody renders the shared card skeleton: state, period, progress and
// the last-kill / expected / remaining rows.
func cardBody(b *tgui.Builder, name string, rec boss.Record, st boss.Status, state string, now time.Time) {
	b.Title("📜", bossLabel(name))
	b.KV("Status", state)
	b.KV("Period", fmt.Sprintf("%d min", boss.SafePeriod(rec.Period)))
	if rec.LastKill != nil {
		b.RawLine("• " + tgui.B("Progress").String() + ": " + tgui.Code(progressBar(now.Sub(*rec.LastKill), boss.SafePeriod(rec.Period), 18)).String())
		b.Blank()
		b.KV("Last kill", fmtMD(*rec.LastKill)+" "+fmtHM(*rec.LastKill))
		b.KV("Expected", fmtMD(st.Respawn)+" "+fmtHM(st.Respawn))
		b.KV("Remaining", st.Remaining)
	}
}

func footer(b *tgui.Builder, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.Blank()
	b.RawLine(tgui.I(text).String())
}

// Reminder implements boss.Renderer.
func (r *Renderer) Reminder(name string, rec boss.Record, st boss.Status, s boss.Settings) (string, *kit.SendOptions) {
	b := tgui.New()
	b.Title("⏰", bossLabel(name))
	b.KV("Status", fmt.Sprintf("🟡 spawning soon (within %s)", boss.FormatCompact(s.EarlyWarning)))
	b.KV("Expected", fmtMD(st.Respawn)+" "+fmtHM(st.Respawn))
	b.KV("Remaining", st.Remaining)
	m := b.Build()
	return m.Text, m.Opt
}

// Card implements boss.Renderer. An active card carries the confirm
// keyboard; a suppressed one does not.
func (r *Renderer) Card(name string, rec boss.Record, st boss.Status, state boss.CardState, s boss.Settings) (string, *kit.SendOptions) {
	b := tgui.New()
	cardBody(b, name, rec, st, "🔴 spawned", time.Now())
	if state == boss.CardActive {
		kb := tgui.NewInline().Row(
			tgui.Btn("✅ Killed", tgui.Data("boss", "confirm", name)),
			tgui.Btn("Dismiss", tgui.Data("boss", "dismiss", name)),
		)
		b.Inline(kb)
	}
	m := b.Build()
	return m.Text, m.Opt
}

// Superseded implements boss.Renderer: the resolved form an old card is
// edited into when a newer correction replaces it. No keyboard, so the
// edit drops the stale confirm button.
func (r *Renderer) Superseded(name string, rec boss.Record, now time.Time) (string, *kit.SendOptions) {
	b := tgui.New()
	b.Title("📜", bossLabel(name))
	b.KV("Status", "✅ resolved by a newer record")
	footer(b, "superseded at "+now.Format("2006-01-02 15:04:05"))
	m := b.Build()
	return m.Text, m.Opt
}

// Confirmed is the card a pressed confirm button is edited into.
func (r *Renderer) Confirmed(name string, rec boss.Record, st boss.Status, actor string, now time.Time) (string, *kit.SendOptions) {
	b := tgui.New()
	cardBody(b, name, rec, st, "🟢 kill logged", now)
	footer(b, "by "+actor)
	m := b.Build()
	return m.Text, m.Opt
}

// StatusCard is the reply for /kill, /killat and /when.
func (r *Renderer) StatusCard(name string, rec boss.Record, st boss.Status, s boss.Settings, footerText string, now time.Time) (string, *kit.SendOptions) {
	b := tgui.New()
	cardBody(b, name, rec, st, stateLine(st, s), now)
	footer(b, footerText)
	m := b.Build()
	return m.Text, m.Opt
}

// upcomingItem is one row of the /all listing.
type upcomingItem struct {
	Name   string
	Record boss.Record
	Status boss.Status
	Left   time.Duration // clamped >= 0
}

// ListUpcoming renders the /all listing, soonest first (pre-sorted).
func (r *Renderer) ListUpcoming(items []upcomingItem, limit, total int) (string, *kit.SendOptions) {
	b := tgui.New()
	b.Title("📋", "Boss status")
	if len(items) == 0 {
		b.Line("nothing tracked yet — record a kill with /kill <boss>")
		m := b.Build()
		return m.Text, m.Opt
	}

	var sb strings.Builder
	shown := 0
	for _, it := range items {
		if shown >= limit {
			break
		}
		fmt.Fprintf(&sb, "• %s: %s\n", bossLabel(it.Name), it.Status.Remaining)
		if it.Record.LastKill != nil {
			fmt.Fprintf(&sb, "  last: %s %s\n", fmtMD(*it.Record.LastKill), fmtHM(*it.Record.LastKill))
		}
		fmt.Fprintf(&sb, "  next: %s %s\n\n", fmtMD(it.Status.Respawn), fmtHM(it.Status.Respawn))
		shown++
	}
	b.Pre(strings.TrimRight(sb.String(), "\n"))
	footer(b, fmt.Sprintf("%d total, %d shown — /all 20 shows more", total, shown))
	m := b.Build()
	return m.Text, m.Opt
}
