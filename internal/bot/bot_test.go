package bot

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/fakebackend"
	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/session"
	"github.com/sedaguven/davon-library-system/internal/storage/stubs"
)

const (
	testUserID = int64(123)
	testChatID = int64(456)
)

// recordingSender captures everything the bot sends instead of calling Telegram
type recordingSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

func (s *recordingSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *recordingSender) lastText(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent, "nothing was sent")
	msg, ok := s.sent[len(s.sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok, "last sent item is not a message")
	return msg.Text
}

type testBot struct {
	*Bot
	sender  *recordingSender
	backend *fakebackend.Server
	journal *stubs.MockDB
}

func setupTestBot(t *testing.T) *testBot {
	t.Helper()

	backend := fakebackend.New(fakebackend.Config{}, zap.NewNop())
	require.NoError(t, fakebackend.Seed(backend.Store()))
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	client, err := gateway.New(gateway.Config{BaseURL: ts.URL + "/api", Timeout: 5 * time.Second}, zap.NewNop())
	require.NoError(t, err)

	creds := make(map[int64]*session.MemoryCredentials)
	var credsMu sync.Mutex
	journal := stubs.NewMockDB()
	sender := &recordingSender{}

	b := newBot(sender, "123456:TEST", Deps{
		Backend: client,
		Journal: journal,
		Credentials: func(id int64) session.CredentialStore {
			credsMu.Lock()
			defer credsMu.Unlock()
			if _, ok := creds[id]; !ok {
				creds[id] = session.NewMemoryCredentials()
			}
			return creds[id]
		},
	}, []int64{testUserID}, zap.NewNop())

	return &testBot{Bot: b, sender: sender, backend: backend, journal: journal}
}

func commandMessage(text string) *tgbotapi.Message {
	command, _, _ := strings.Cut(text, " ")
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: testUserID},
		Chat:      &tgbotapi.Chat{ID: testChatID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}},
	}
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: testUserID},
		Chat:      &tgbotapi.Chat{ID: testChatID},
		Text:      text,
	}
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: testUserID},
		Message: &tgbotapi.Message{
			MessageID: 99,
			Chat:      &tgbotapi.Chat{ID: testChatID},
		},
		Data: data,
	}
}

func (tb *testBot) login(t *testing.T, email, password string) {
	t.Helper()
	tb.handleMessage(commandMessage("/login"))
	tb.handleMessage(textMessage(email))
	tb.handleMessage(textMessage(password))
	require.True(t, tb.accountFor(context.Background(), testUserID).Session.Current().Authenticated())
}

func (tb *testBot) bookID(t *testing.T, title string) int64 {
	t.Helper()
	books, _ := tb.backend.Store().Books(1, 50, "title", "asc")
	for _, b := range books {
		if b.Title == title {
			return b.ID
		}
	}
	t.Fatalf("book %q not seeded", title)
	return 0
}

func TestBot_LoginConversation(t *testing.T) {
	tb := setupTestBot(t)

	tb.handleMessage(commandMessage("/login"))
	state, ok := tb.state(testUserID)
	require.True(t, ok, "Expected conversation state to be created")
	assert.Equal(t, "login", state.Command)
	assert.Equal(t, 1, state.Step)

	tb.handleMessage(textMessage("not-an-email"))
	assert.Equal(t, 1, state.Step)

	tb.handleMessage(textMessage(fakebackend.MemberEmail))
	assert.Equal(t, 2, state.Step)
	assert.Equal(t, "Please enter your password:", tb.sender.lastText(t))

	tb.handleMessage(textMessage(fakebackend.MemberPassword))
	_, ok = tb.state(testUserID)
	assert.False(t, ok, "Expected conversation to be cleaned up")
	assert.Equal(t, "✅ Logged in as Ada Reader (user)", tb.sender.lastText(t))

	// the password message is deleted from the chat
	var deleted bool
	for _, r := range tb.sender.requests {
		if del, ok := r.(tgbotapi.DeleteMessageConfig); ok && del.MessageID == 2 {
			deleted = true
		}
	}
	assert.True(t, deleted)
}

func TestBot_LoginFailure(t *testing.T) {
	tb := setupTestBot(t)

	tb.handleMessage(commandMessage("/login"))
	tb.handleMessage(textMessage(fakebackend.MemberEmail))
	tb.handleMessage(textMessage("wrong"))

	assert.Equal(t, "❌ Login failed: Invalid email or password", tb.sender.lastText(t))
	assert.True(t, tb.accountFor(context.Background(), testUserID).Session.Current().Anonymous())
}

func TestBot_CommandInterruptsConversation(t *testing.T) {
	tb := setupTestBot(t)

	tb.handleMessage(commandMessage("/login"))
	_, ok := tb.state(testUserID)
	require.True(t, ok)

	tb.handleMessage(commandMessage("/start"))
	_, ok = tb.state(testUserID)
	assert.False(t, ok, "Expected conversation state to be deleted when interrupted by new command")
	assert.Contains(t, tb.sender.lastText(t), "Available commands")
}

func TestBot_CommandAfterCompletedConversation(t *testing.T) {
	tb := setupTestBot(t)

	tb.setState(testUserID, &ConversationState{Command: "login", Step: -1, Data: map[string]interface{}{}})
	tb.handleMessage(commandMessage("/whoami"))

	_, ok := tb.state(testUserID)
	assert.False(t, ok)
	assert.Equal(t, "You are not logged in. Use /login to sign in.", tb.sender.lastText(t))
}

func TestBot_PanicRecovery(t *testing.T) {
	tb := setupTestBot(t)

	// a password step without the email collected earlier
	tb.setState(testUserID, &ConversationState{Command: "login", Step: 2, Data: map[string]interface{}{}})

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("handleMessage panicked: %v", r)
		}
	}()
	tb.handleMessage(textMessage("secret"))

	assert.Equal(t, "An error occurred while processing your request. Please try again.", tb.sender.lastText(t))
}

func TestBot_UnauthorizedUser(t *testing.T) {
	tb := setupTestBot(t)

	msg := commandMessage("/books")
	msg.From.ID = 777
	tb.HandleWebhookUpdate(tgbotapi.Update{Message: msg})

	assert.Equal(t, "Sorry, you are not authorized to use this bot.", tb.sender.lastText(t))
}

func TestBot_BookViewAnonymous(t *testing.T) {
	tb := setupTestBot(t)

	tb.handleMessage(commandMessage("/book " + itoa(tb.bookID(t, "Ulysses"))))

	require.NotEmpty(t, tb.sender.sent)
	msg := tb.sender.sent[len(tb.sender.sent)-1].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Ulysses")
	assert.Contains(t, msg.Text, "Log in with /login")
	assert.Nil(t, msg.ReplyMarkup)
}

func TestBot_BorrowFromView(t *testing.T) {
	tb := setupTestBot(t)
	tb.login(t, fakebackend.MemberEmail, fakebackend.MemberPassword)
	dune := tb.bookID(t, "Dune")

	tb.handleMessage(commandMessage("/book " + itoa(dune)))
	msg := tb.sender.sent[len(tb.sender.sent)-1].(tgbotapi.MessageConfig)
	keyboard, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.InlineKeyboard, 1)
	assert.Equal(t, "borrow:"+itoa(dune), *keyboard.InlineKeyboard[0][0].CallbackData)

	tb.handleCallbackQuery(callback("borrow:" + itoa(dune)))
	assert.Equal(t, "Book borrowed successfully!", tb.sender.lastText(t))

	// the button was disabled first, then the message re-rendered with the fresh view
	var edits []tgbotapi.Chattable
	for _, r := range tb.sender.requests {
		switch r.(type) {
		case tgbotapi.EditMessageReplyMarkupConfig, tgbotapi.EditMessageTextConfig:
			edits = append(edits, r)
		}
	}
	require.Len(t, edits, 2)
	working := edits[0].(tgbotapi.EditMessageReplyMarkupConfig)
	assert.Equal(t, "noop", *working.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
	final := edits[1].(tgbotapi.EditMessageTextConfig)
	assert.Contains(t, final.Text, "Currently unavailable")
	require.NotNil(t, final.ReplyMarkup)
	assert.Equal(t, "reserve:"+itoa(dune), *final.ReplyMarkup.InlineKeyboard[0][0].CallbackData)

	loans := tb.backend.Store().LoansForUser(tb.accountFor(context.Background(), testUserID).Session.Current().Identity.ID)
	assert.Len(t, loans, 1)
}

func TestBot_ReserveThenStaleButton(t *testing.T) {
	tb := setupTestBot(t)
	tb.login(t, fakebackend.MemberEmail, fakebackend.MemberPassword)
	emma := itoa(tb.bookID(t, "Emma"))

	tb.handleCallbackQuery(callback("reserve:" + emma))
	assert.Equal(t, "Book reserved successfully!", tb.sender.lastText(t))

	// the same button pressed again is no longer the valid action
	tb.handleCallbackQuery(callback("reserve:" + emma))
	assert.Equal(t, "This action is no longer available.", tb.sender.lastText(t))

	tb.handleCallbackQuery(callback("borrow:" + emma))
	assert.Equal(t, "This action is no longer available.", tb.sender.lastText(t))
}

func TestBot_ReservationsAndCancel(t *testing.T) {
	tb := setupTestBot(t)
	tb.login(t, fakebackend.MemberEmail, fakebackend.MemberPassword)

	tb.handleMessage(commandMessage("/reservations"))
	assert.Equal(t, "You have no active reservations.", tb.sender.lastText(t))

	tb.handleCallbackQuery(callback("reserve:" + itoa(tb.bookID(t, "Emma"))))

	tb.handleMessage(commandMessage("/reservations"))
	msg := tb.sender.sent[len(tb.sender.sent)-1].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Emma, #1 in queue")
	keyboard := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	data := *keyboard.InlineKeyboard[0][0].CallbackData
	require.True(t, strings.HasPrefix(data, "cancel:"))

	tb.handleCallbackQuery(callback(data))
	assert.Equal(t, "✅ Reservation cancelled.", tb.sender.lastText(t))

	tb.handleCallbackQuery(callback(data))
	assert.Equal(t, "❌ Failed to cancel reservation: Reservation is not active", tb.sender.lastText(t))
}

func TestBot_LoansAndReturn(t *testing.T) {
	tb := setupTestBot(t)
	tb.login(t, fakebackend.MemberEmail, fakebackend.MemberPassword)

	tb.handleCallbackQuery(callback("borrow:" + itoa(tb.bookID(t, "Ulysses"))))

	tb.handleMessage(commandMessage("/loans"))
	msg := tb.sender.sent[len(tb.sender.sent)-1].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Ulysses, due")
	keyboard := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)

	tb.handleCallbackQuery(callback(*keyboard.InlineKeyboard[0][0].CallbackData))
	assert.Equal(t, "✅ Book returned. Thank you!", tb.sender.lastText(t))

	tb.handleMessage(commandMessage("/loans"))
	assert.Equal(t, "You have no books on loan.", tb.sender.lastText(t))

	tb.handleMessage(commandMessage("/history"))
	history := tb.sender.lastText(t)
	assert.Contains(t, history, "return: succeeded")
	assert.Contains(t, history, "borrow book #")
}

func TestBot_DashboardRequiresAdmin(t *testing.T) {
	tb := setupTestBot(t)

	tb.handleMessage(commandMessage("/dashboard"))
	assert.Equal(t, "You are not logged in. Use /login first.", tb.sender.lastText(t))

	tb.login(t, fakebackend.MemberEmail, fakebackend.MemberPassword)
	tb.handleMessage(commandMessage("/dashboard"))
	assert.Equal(t, "This view is for administrators only.", tb.sender.lastText(t))

	tb.handleMessage(commandMessage("/logout"))
	tb.login(t, fakebackend.AdminEmail, fakebackend.AdminPassword)
	tb.handleMessage(commandMessage("/dashboard"))
	stats := tb.sender.lastText(t)
	assert.Contains(t, stats, "Users: 2")
	assert.Contains(t, stats, "Books: 5")
}

func TestBot_UsersRequiresAdmin(t *testing.T) {
	tb := setupTestBot(t)

	tb.login(t, fakebackend.MemberEmail, fakebackend.MemberPassword)
	tb.handleMessage(commandMessage("/users"))
	assert.Equal(t, "This view is for administrators only.", tb.sender.lastText(t))

	tb.handleMessage(commandMessage("/logout"))
	tb.login(t, fakebackend.AdminEmail, fakebackend.AdminPassword)
	tb.handleMessage(commandMessage("/users"))
	text := tb.sender.lastText(t)
	assert.Contains(t, text, "Users (2)")
	assert.Contains(t, text, "Library Admin <"+fakebackend.AdminEmail+">, admin")
	assert.Contains(t, text, "Ada Reader <"+fakebackend.MemberEmail+">")
}

func TestBot_BooksPaging(t *testing.T) {
	tb := setupTestBot(t)

	tb.handleMessage(commandMessage("/books"))
	msg := tb.sender.sent[len(tb.sender.sent)-1].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "page 1 of 1")

	tb.handleMessage(commandMessage("/books 0"))
	assert.Equal(t, booksUsage, tb.sender.lastText(t))

	tb.handleCallbackQuery(callback("page:2"))
	last := tb.sender.requests[len(tb.sender.requests)-1].(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, "No books found.", last.Text)
}

func TestBot_BooksSearch(t *testing.T) {
	tb := setupTestBot(t)

	tb.handleMessage(commandMessage("/books available"))
	text := tb.sender.lastText(t)
	assert.Contains(t, text, "Filter: available, 2 matches")
	assert.Contains(t, text, "Dune")
	assert.NotContains(t, text, "Emma")

	tb.handleMessage(commandMessage("/books unavailable jane"))
	text = tb.sender.lastText(t)
	assert.Contains(t, text, "Emma")
	assert.NotContains(t, text, "Beloved")

	// paging keeps the last filter
	tb.handleCallbackQuery(callback("page:1"))
	last := tb.sender.requests[len(tb.sender.requests)-1].(tgbotapi.EditMessageTextConfig)
	assert.Contains(t, last.Text, `Filter: unavailable "jane", 1 matches`)

	tb.handleMessage(commandMessage("/books tolkien"))
	assert.Equal(t, "No books found.", tb.sender.lastText(t))
}

func Test_parseBooksArgs(t *testing.T) {
	testCases := []struct {
		name           string
		args           string
		expectedPage   int
		expectedFilter gateway.CatalogFilter
		expectErr      bool
	}{
		{name: "empty", args: "", expectedPage: 1},
		{name: "page", args: "3", expectedPage: 3},
		{name: "page and text", args: "2 frank herbert", expectedPage: 2, expectedFilter: gateway.CatalogFilter{Query: "frank herbert"}},
		{name: "availability", args: "Unavailable", expectedPage: 1, expectedFilter: gateway.CatalogFilter{Availability: gateway.OnlyUnavailable}},
		{name: "everything", args: "4 available the odyssey", expectedPage: 4, expectedFilter: gateway.CatalogFilter{Query: "the odyssey", Availability: gateway.OnlyAvailable}},
		{name: "text only", args: "dune", expectedPage: 1, expectedFilter: gateway.CatalogFilter{Query: "dune"}},
		{name: "bad page", args: "0", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, filter, err := parseBooksArgs(tc.args)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedPage, page)
			assert.Equal(t, tc.expectedFilter, filter)
		})
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
