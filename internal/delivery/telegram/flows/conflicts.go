package flows

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"gopkg.in/telebot.v3"

	"shift-scheduler/internal/app/resolution"
	"shift-scheduler/internal/app/service"
	"shift-scheduler/internal/app/workflow"
	"shift-scheduler/internal/delivery/telegram/keyboards"
	"shift-scheduler/internal/delivery/telegram/router"
	"shift-scheduler/internal/domain"
	"shift-scheduler/pkg/optimistic"
)

// Messenger is the part of *telebot.Bot the flows talk through outside of
// an update context.
type Messenger interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Edit(msg telebot.Editable, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// ConflictFlow keeps one resolution session per chat and re-renders the
// session's panel message after every transition.
type ConflictFlow struct {
	Bot        Messenger
	Scheduling *service.SchedulingService
	Staff      *service.StaffService
	Async      *service.AsyncService
	Managers   map[int64]bool
	// Schedule runs workflow effects. Defaults to the worker pool.
	Schedule func(func())

	mu       sync.Mutex
	sessions map[int64]*chatSession
}

type chatSession struct {
	mu       sync.Mutex
	runner   *workflow.Runner
	roster   domain.Roster
	panel    *telebot.Message
	actor    string
	elevated bool
}

func RegisterConflicts(r *router.CallbackRouter, f *ConflictFlow) {
	r.Register("cf_sel", func(c telebot.Context, payload string) error {
		return f.reply(c, f.Dispatch(c.Chat().ID, workflow.SelectConflict{ConflictID: payload}))
	})
	r.Register("cf_opt", func(c telebot.Context, payload string) error {
		return f.reply(c, f.Choose(c.Chat().ID, domain.ResolutionOption(payload)))
	})
	r.Register("cf_skip", func(c telebot.Context, _ string) error {
		return f.reply(c, f.Dispatch(c.Chat().ID, workflow.Skip{}))
	})
	r.Register("cf_ignore", func(c telebot.Context, _ string) error {
		return f.reply(c, f.Dispatch(c.Chat().ID, workflow.IgnoreAll{}))
	})
}

func (f *ConflictFlow) reply(c telebot.Context, err error) error {
	if err == nil {
		return nil
	}
	return c.Send(DescribeError(err))
}

var errNoSession = errors.New("no open conflict session")

// Open detects the conflicts of p and posts a fresh session panel to chat.
// A session already open in the chat is abandoned.
func (f *ConflictFlow) Open(ctx context.Context, chat *telebot.Chat, actor string, p domain.Period) error {
	schedule := f.Schedule
	if schedule == nil {
		schedule = f.Async.Go
	}
	type started struct {
		runner *workflow.Runner
		roster domain.Roster
	}
	st, err := service.Await(ctx, f.Async, func() (started, error) {
		roster, err := f.Staff.Roster(ctx)
		if err != nil {
			return started{}, err
		}
		runner, err := f.Scheduling.StartSession(context.Background(), p, schedule)
		return started{runner: runner, roster: roster}, err
	})
	if err != nil {
		return err
	}

	s := st.runner.Session()
	text, markup := RenderSession(s, st.roster)
	panel, err := f.Bot.Send(chat, text, markup)
	if err != nil {
		return err
	}
	if s.State.Terminal() {
		return nil
	}

	cs := &chatSession{
		runner:   st.runner,
		roster:   st.roster,
		panel:    panel,
		actor:    actor,
		elevated: f.Managers[chat.ID],
	}
	chatID := chat.ID
	st.runner.OnChange = func(workflow.Session) { f.render(chatID, cs) }

	f.mu.Lock()
	if f.sessions == nil {
		f.sessions = make(map[int64]*chatSession)
	}
	f.sessions[chatID] = cs
	f.mu.Unlock()
	return nil
}

func (f *ConflictFlow) session(chatID int64) (*chatSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs, ok := f.sessions[chatID]
	return cs, ok
}

// Session returns the current state of the chat's session.
func (f *ConflictFlow) Session(chatID int64) (workflow.Session, bool) {
	cs, ok := f.session(chatID)
	if !ok {
		return workflow.Session{}, false
	}
	return cs.runner.Session(), true
}

func (f *ConflictFlow) Dispatch(chatID int64, ev workflow.Event) error {
	cs, ok := f.session(chatID)
	if !ok {
		return errNoSession
	}
	_, err := cs.runner.Dispatch(ev)
	return err
}

// Choose submits opt for the selected conflict with the chat's authority.
func (f *ConflictFlow) Choose(chatID int64, opt domain.ResolutionOption) error {
	cs, ok := f.session(chatID)
	if !ok {
		return errNoSession
	}
	_, err := cs.runner.Dispatch(workflow.ChooseResolution{
		Option: opt,
		Params: resolution.Params{Elevated: cs.elevated, Actor: cs.actor},
	})
	return err
}

// render always shows the latest session so that late edits from
// concurrent effects never roll the panel back.
func (f *ConflictFlow) render(chatID int64, cs *chatSession) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	s := cs.runner.Session()
	text, markup := RenderSession(s, cs.roster)
	msg, err := f.Bot.Edit(cs.panel, text, markup)
	switch {
	case err == nil:
		cs.panel = msg
	case !errors.Is(err, telebot.ErrSameMessageContent):
		log.Printf("[callback] render session chat=%d: %v", chatID, err)
	}

	if s.State.Terminal() {
		f.mu.Lock()
		if f.sessions[chatID] == cs {
			delete(f.sessions, chatID)
		}
		f.mu.Unlock()
	}
}

// RenderSession turns a session into the panel text and its keyboard.
func RenderSession(s workflow.Session, roster domain.Roster) (string, *telebot.ReplyMarkup) {
	empty := &telebot.ReplyMarkup{}
	switch s.State {
	case workflow.AllResolved:
		if s.Resolved == 0 {
			return "Конфликтов нет ✅", empty
		}
		return fmt.Sprintf("Все конфликты решены ✅ (решено: %d)", s.Resolved), empty
	case workflow.Dismissed:
		return fmt.Sprintf("Оставшиеся конфликты проигнорированы (%d).", len(s.Conflicts)), empty
	case workflow.Resolving:
		c, _ := s.Current()
		return fmt.Sprintf("Применяю «%s» для: %s…", keyboards.OptionLabel(s.Option), keyboards.ConflictLine(c, roster)), empty
	case workflow.Resolved:
		return "Решено. Проверяю расписание…", empty
	case workflow.ConflictSelected, workflow.Failed:
		c, ok := s.Current()
		if !ok {
			break
		}
		var b strings.Builder
		b.WriteString(keyboards.ConflictLine(c, roster))
		b.WriteString("\n")
		b.WriteString(c.Message)
		if s.State == workflow.Failed && s.LastError != nil {
			b.WriteString("\n\n❌ ")
			b.WriteString(DescribeError(s.LastError))
		}
		b.WriteString("\n\nКак решить?")
		return b.String(), keyboards.BuildOptions(c)
	}
	text := fmt.Sprintf("Конфликтов: %d. Выберите, что решать:", len(s.Conflicts))
	if s.Resolved > 0 {
		text = fmt.Sprintf("Решено: %d. Осталось конфликтов: %d.", s.Resolved, len(s.Conflicts))
	}
	return text, keyboards.BuildConflictList(s.Conflicts, roster)
}

// DescribeError renders the errors a manager can act on in plain words.
func DescribeError(err error) string {
	var (
		verr *domain.ValidationError
		cerr *optimistic.ConcurrencyError
		warn *domain.UnresolvedConflictWarning
	)
	switch {
	case errors.Is(err, errNoSession):
		return "Сессия устарела. Запустите /conflicts ещё раз."
	case errors.Is(err, domain.ErrUnauthorized):
		return "Это решение может принять только менеджер."
	case errors.Is(err, domain.ErrNoCandidate):
		return "Нет свободного подходящего сотрудника."
	case errors.Is(err, domain.ErrNotFound):
		return "Смена уже удалена или изменена."
	case errors.Is(err, domain.ErrInvalidOption):
		return "Этот вариант не подходит для конфликта."
	case errors.Is(err, workflow.ErrUnknownConflict):
		return "Конфликт уже решён."
	case errors.Is(err, workflow.ErrInvalidTransition):
		return "Дождитесь завершения текущего действия."
	case errors.As(err, &verr):
		return "Решение даёт некорректную смену: " + verr.Reason
	case errors.As(err, &cerr):
		return "Смену одновременно меняет кто-то ещё, попробуйте позже."
	case errors.As(err, &warn):
		return fmt.Sprintf("Есть нерешённые конфликты: %d.", len(warn.Conflicts))
	}
	return "Ошибка: " + err.Error()
}
