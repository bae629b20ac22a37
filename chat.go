package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
	"github.com/xiaot623/gogo/streamchat/internal/render"
	"github.com/xiaot623/gogo/streamchat/internal/repository"
	"github.com/xiaot623/gogo/streamchat/internal/session"
	"github.com/xiaot623/gogo/streamchat/internal/telemetry"
)

var renderStyle string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively in the terminal",
	Long: `Start an interactive chat session. Replies stream as they arrive.

Commands:
  /stop          stop the current reply
  /retry         retry the last failed request
  /regen         regenerate the last reply
  /new           start a new conversation
  /trim [n]      keep the last n messages and summarize the rest
  /model <id>    switch model
  /models        list models
  /list          list saved conversations
  /open <id>     open a saved conversation
  /delete <id>   delete a saved conversation
  /render        render the last reply as markdown
  /stats         show stats for the last reply
  /quit          exit

Ctrl-C stops a streaming reply.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&renderStyle, "style", render.StyleAuto, "Markdown style: auto, dark, light or notty")
}

func runChat(cmd *cobra.Command, args []string) error {
	store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()
	debouncer := repository.NewDebouncer(store, cfg.PersistDebounce, logger)

	sink := telemetry.New(cfg.TelemetryEnabled, cfg.TelemetryURL, logger)
	defer flushTelemetry(sink)

	renderer, err := render.New(renderStyle, render.DefaultWidth)
	if err != nil {
		logger.Debug("markdown renderer unavailable", zap.Error(err))
	}

	repl := newREPL(sessionFactory(cfg, sink)(), store, debouncer, renderer, cmd.OutOrStdout())
	defer repl.close()

	convs := repository.LoadAll(cmd.Context(), store, logger)
	repl.open(convs[0])

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	go func() {
		for range interrupt {
			if !repl.sess.Stop() {
				repl.println("(use /quit to exit)")
			}
		}
	}()

	return repl.run(cmd.Context(), cmd.InOrStdin())
}

// repl drives one session from line input.
type repl struct {
	sess      *session.Session
	store     repository.Store
	debouncer *repository.Debouncer
	renderer  *render.Renderer

	outMu sync.Mutex
	out   io.Writer

	convMu sync.Mutex
	convID string

	// printer state, touched only by the observer
	printedID   string
	printedLen  int
	wasActive   bool
	lastNotice  string
	unsubscribe func()
}

func newREPL(sess *session.Session, store repository.Store, debouncer *repository.Debouncer, renderer *render.Renderer, out io.Writer) *repl {
	r := &repl{
		sess:      sess,
		store:     store,
		debouncer: debouncer,
		renderer:  renderer,
		out:       out,
	}
	r.unsubscribe = sess.Subscribe(r.observe)
	return r
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	r.println(fmt.Sprintf("Model: %s. Type /quit to exit.", r.sess.Model()))

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if quit := r.handleLine(ctx, scanner.Text()); quit {
			return nil
		}
	}
	return scanner.Err()
}

func (r *repl) close() {
	r.sess.Close()
	r.unsubscribe()
	r.saveNow()
	r.debouncer.Close(context.Background())
}

// handleLine runs one line of input and reports whether to exit.
func (r *repl) handleLine(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}
	if !strings.HasPrefix(input, "/") {
		if !r.sess.SendMessage(input) {
			r.println("(a reply is still streaming; /stop to cancel it)")
		}
		return false
	}

	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		r.sess.Stop()
		r.println("Bye!")
		return true
	case "/stop":
		if !r.sess.Stop() {
			r.println("(nothing to stop)")
		}
	case "/retry":
		if !r.sess.RetryLast() {
			r.println("(nothing to retry)")
		}
	case "/regen":
		if !r.sess.Regenerate() {
			r.println("(nothing to regenerate)")
		}
	case "/new":
		r.saveNow()
		r.setConversation(repository.NewConversation(time.Now()).ID)
		r.sess.Reset()
		r.println("Started a new conversation.")
	case "/trim":
		keep := 0
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				r.println("usage: /trim [n]")
				return false
			}
			keep = n
		}
		if !r.sess.Trim(keep) {
			r.println("(nothing to trim)")
			return false
		}
		r.persist()
		r.println(fmt.Sprintf("Trimmed to %d messages.", len(r.sess.Messages())))
	case "/model":
		if arg == "" {
			r.println("Current model: " + r.sess.Model())
			return false
		}
		if _, ok := domain.FindModel(arg); !ok {
			r.println(fmt.Sprintf("(%s is not in the catalogue; using it anyway)", arg))
		}
		r.sess.SetModel(arg)
		r.println("Model: " + arg)
	case "/models":
		var b strings.Builder
		current := r.sess.Model()
		for _, m := range domain.ModelOptions {
			marker := " "
			if m.ID == current {
				marker = "*"
			}
			fmt.Fprintf(&b, "%s %-24s %s\n", marker, m.ID, m.Description)
		}
		r.print(b.String())
	case "/list":
		r.listConversations(ctx)
	case "/open":
		r.openConversation(ctx, arg)
	case "/delete":
		r.deleteConversation(ctx, arg)
	case "/render":
		msg := lastAssistant(r.sess.Messages())
		if msg == nil {
			r.println("(no reply to render)")
			return false
		}
		r.print(r.renderer.Render(msg.DisplayText()))
	case "/stats":
		r.println(formatStats(r.sess.Snapshot()))
	default:
		r.println("unknown command: " + name)
	}
	return false
}

func (r *repl) listConversations(ctx context.Context) {
	r.debouncer.Flush(ctx)
	convs, err := r.store.ListConversations(ctx)
	if err != nil {
		r.println("failed to list conversations: " + err.Error())
		return
	}
	if len(convs) == 0 {
		r.println("(no saved conversations)")
		return
	}
	current := r.conversation()
	var b strings.Builder
	for _, c := range convs {
		marker := " "
		if c.ID == current {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %s  %s  (%d messages)\n", marker, c.ID, c.Title, len(c.Messages))
	}
	r.print(b.String())
}

func (r *repl) openConversation(ctx context.Context, id string) {
	if id == "" {
		r.println("usage: /open <id>")
		return
	}
	r.debouncer.Flush(ctx)
	conv, err := r.store.GetConversation(ctx, id)
	if err != nil {
		r.println("failed to open conversation: " + err.Error())
		return
	}
	if conv == nil {
		r.println("conversation not found: " + id)
		return
	}
	r.saveNow()
	r.open(*conv)
	r.println(fmt.Sprintf("Opened %q (%d messages).", conv.Title, len(conv.Messages)))
}

func (r *repl) deleteConversation(ctx context.Context, id string) {
	if id == "" {
		r.println("usage: /delete <id>")
		return
	}
	r.debouncer.Cancel(id)
	if err := r.store.DeleteConversation(ctx, id); err != nil {
		r.println("failed to delete conversation: " + err.Error())
		return
	}
	if id == r.conversation() {
		r.setConversation(repository.NewConversation(time.Now()).ID)
		r.sess.Reset()
	}
	r.println("Deleted " + id)
}

// open makes conv the current conversation.
func (r *repl) open(conv domain.Conversation) {
	r.setConversation(conv.ID)
	r.sess.Load(conv.Messages)
}

// observe prints streamed text and notifications, and schedules a save
// when an exchange settles.
func (r *repl) observe(snap session.Snapshot) {
	active := snap.Status.Active()
	if msg := lastAssistant(snap.Messages); msg != nil {
		switch {
		case msg.IsStreaming:
			if msg.ID != r.printedID {
				r.printedID = msg.ID
				r.printedLen = 0
			}
			r.printRest(msg)
		case r.wasActive && msg.ID == r.printedID:
			r.printRest(msg)
		}
	}
	settled := r.wasActive && !active
	if settled {
		r.print("\n")
	}
	r.wasActive = active

	notice := ""
	if snap.Notification != nil {
		notice = snap.Notification.Message
		if notice != r.lastNotice {
			r.println(fmt.Sprintf("[%s] %s", snap.Notification.Level, notice))
		}
	}
	r.lastNotice = notice

	if settled {
		r.persist()
	}
}

func (r *repl) printRest(msg *domain.Message) {
	text := msg.DisplayText()
	if len(text) > r.printedLen {
		r.print(text[r.printedLen:])
		r.printedLen = len(text)
	}
}

func (r *repl) persist() {
	msgs := r.sess.Messages()
	if len(msgs) == 0 {
		return
	}
	r.debouncer.Save(domain.Conversation{
		ID:        r.conversation(),
		Title:     domain.TitleFor(msgs),
		UpdatedAt: time.Now(),
		Messages:  msgs,
	})
}

func (r *repl) saveNow() {
	r.persist()
	r.debouncer.Flush(context.Background())
}

func (r *repl) conversation() string {
	r.convMu.Lock()
	defer r.convMu.Unlock()
	return r.convID
}

func (r *repl) setConversation(id string) {
	r.convMu.Lock()
	r.convID = id
	r.convMu.Unlock()
}

func (r *repl) print(s string) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	io.WriteString(r.out, s)
}

func (r *repl) println(s string) {
	r.print(s + "\n")
}

func lastAssistant(msgs []domain.Message) *domain.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleAssistant {
			return &msgs[i]
		}
	}
	return nil
}

func formatStats(snap session.Snapshot) string {
	st := snap.Stats
	if st == nil {
		return "(no stats yet)"
	}
	parts := []string{"model " + st.ModelID, fmt.Sprintf("%d tokens", st.Tokens)}
	if st.FirstTokenMs != nil {
		parts = append(parts, fmt.Sprintf("first token %dms", *st.FirstTokenMs))
	}
	if st.DurationMs != nil {
		parts = append(parts, fmt.Sprintf("%dms", *st.DurationMs))
	}
	if snap.Throughput > 0 {
		parts = append(parts, fmt.Sprintf("%.1f tok/s", snap.Throughput))
	}
	return strings.Join(parts, ", ")
}
