package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/baraks/slotwatch/internal/catalog"
	"github.com/baraks/slotwatch/internal/domain"
	"github.com/baraks/slotwatch/internal/notify"
	"github.com/baraks/slotwatch/internal/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upsertCall struct {
	chatID     int64
	firstName  string
	lastName   string
	serviceIDs []int64
}

type mockRepo struct {
	upsertCalls  []upsertCall
	upsertResult *domain.Subscriber
	upsertErr    error

	removeCalls  [][]int64
	removeResult *domain.Subscriber
	removeErr    error
}

func (m *mockRepo) Upsert(_ context.Context, chatID int64, firstName, lastName string, servicesToAdd []int64) (*domain.Subscriber, error) {
	m.upsertCalls = append(m.upsertCalls, upsertCall{chatID, firstName, lastName, servicesToAdd})
	return m.upsertResult, m.upsertErr
}

func (m *mockRepo) RemoveServices(_ context.Context, _ int64, servicesToRemove []int64) (*domain.Subscriber, error) {
	m.removeCalls = append(m.removeCalls, servicesToRemove)
	return m.removeResult, m.removeErr
}

func (m *mockRepo) GetServices(context.Context, int64) ([]int64, error) {
	return []int64{}, nil
}

func (m *mockRepo) ListActive(context.Context) ([]domain.Subscriber, error) {
	return nil, nil
}

type recordingSink struct {
	sent map[int64][]string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{sent: make(map[int64][]string)}
}

func (s *recordingSink) Send(_ context.Context, chatID int64, text string) error {
	s.sent[chatID] = append(s.sent[chatID], text)
	return nil
}

type mockFetcher struct {
	raw        string
	err        error
	serviceIDs []int64
}

func (m *mockFetcher) FetchRaw(_ context.Context, serviceID int64) (string, error) {
	m.serviceIDs = append(m.serviceIDs, serviceID)
	return m.raw, m.err
}

const adminChat = int64(900)

func newTestHandler(t *testing.T, repo *mockRepo, sink *recordingSink, fetcher *mockFetcher) *Handler {
	t.Helper()
	renderer, err := notify.NewRenderer()
	require.NoError(t, err)
	if fetcher == nil {
		fetcher = &mockFetcher{}
	}
	return NewHandler(catalog.Default(), repo, renderer, sink, fetcher, adminChat)
}

func update(chatID int64, text string) Update {
	return Update{
		UpdateID: 1,
		Message: &Message{
			Chat: Chat{ID: chatID},
			From: &User{ID: chatID, FirstName: "Dana", LastName: "Levy"},
			Text: text,
		},
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		text     string
		wantCmd  string
		wantArgs string
	}{
		{"/register passport", "register", "passport"},
		{"/unregister", "unregister", ""},
		{"/REGISTER driving", "register", "driving"},
		{"/help@slotwatch_bot", "help", ""},
		{"  /register   passport  ", "register", "passport"},
		{"just chatting", "", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, args := splitCommand(tt.text)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestHandler_Register(t *testing.T) {
	repo := &mockRepo{
		upsertResult: &domain.Subscriber{
			ChatID:     42,
			ServiceIDs: []int64{6140, 6143},
		},
	}
	sink := newRecordingSink()
	h := newTestHandler(t, repo, sink, nil)

	h.HandleUpdate(context.Background(), update(42, "/register driving and passport please"))

	require.Len(t, repo.upsertCalls, 1)
	call := repo.upsertCalls[0]
	assert.Equal(t, int64(42), call.chatID)
	assert.Equal(t, "Dana", call.firstName)
	assert.Equal(t, "Levy", call.lastName)
	assert.Equal(t, []int64{6140, 6143}, call.serviceIDs)

	require.Len(t, sink.sent[42], 1)
	reply := sink.sent[42][0]
	assert.Contains(t, reply, "Passport renewal")
	assert.Contains(t, reply, "Driving license renewal")
}

func TestHandler_Register_EchoesResultingSet(t *testing.T) {
	// Already subscribed to 6142; registering 6140 must echo both.
	repo := &mockRepo{
		upsertResult: &domain.Subscriber{
			ChatID:     42,
			ServiceIDs: []int64{6140, 6142},
		},
	}
	sink := newRecordingSink()
	h := newTestHandler(t, repo, sink, nil)

	h.HandleUpdate(context.Background(), update(42, "/register passport"))

	require.Len(t, sink.sent[42], 1)
	reply := sink.sent[42][0]
	assert.Contains(t, reply, "Passport renewal")
	assert.Contains(t, reply, "Skipper license exam")
}

func TestHandler_Register_NothingMatched(t *testing.T) {
	repo := &mockRepo{}
	sink := newRecordingSink()
	h := newTestHandler(t, repo, sink, nil)

	h.HandleUpdate(context.Background(), update(42, "/register quantum teleporter"))

	assert.Empty(t, repo.upsertCalls)
	require.Len(t, sink.sent[42], 1)
	assert.Contains(t, sink.sent[42][0], "Nothing matched")
}

func TestHandler_Register_RepositoryError(t *testing.T) {
	repo := &mockRepo{
		upsertErr: errors.Join(subscription.ErrRepository, errors.New("connection refused")),
	}
	sink := newRecordingSink()
	h := newTestHandler(t, repo, sink, nil)

	h.HandleUpdate(context.Background(), update(42, "/register passport"))

	// Subscriber gets the failure text, admin gets the alert with cause.
	require.Len(t, sink.sent[42], 1)
	assert.Contains(t, sink.sent[42][0], "Something went wrong")

	require.Len(t, sink.sent[adminChat], 1)
	alert := sink.sent[adminChat][0]
	assert.Contains(t, alert, "register failed")
	assert.Contains(t, alert, "42")
	assert.Contains(t, alert, "connection refused")
}

func TestHandler_Unregister_All(t *testing.T) {
	repo := &mockRepo{
		removeResult: &domain.Subscriber{ChatID: 42, ServiceIDs: []int64{}},
	}
	sink := newRecordingSink()
	h := newTestHandler(t, repo, sink, nil)

	h.HandleUpdate(context.Background(), update(42, "/unregister"))

	require.Len(t, repo.removeCalls, 1)
	assert.Empty(t, repo.removeCalls[0])

	require.Len(t, sink.sent[42], 1)
	assert.Contains(t, sink.sent[42][0], "no subscriptions left")
}

func TestHandler_Unregister_Partial(t *testing.T) {
	repo := &mockRepo{
		removeResult: &domain.Subscriber{ChatID: 42, ServiceIDs: []int64{6142}},
	}
	sink := newRecordingSink()
	h := newTestHandler(t, repo, sink, nil)

	h.HandleUpdate(context.Background(), update(42, "/unregister passport"))

	require.Len(t, repo.removeCalls, 1)
	assert.Equal(t, []int64{6140}, repo.removeCalls[0])

	require.Len(t, sink.sent[42], 1)
	reply := sink.sent[42][0]
	assert.Contains(t, reply, "still subscribed to")
	assert.Contains(t, reply, "Skipper license exam")
}

func TestHandler_Help(t *testing.T) {
	sink := newRecordingSink()
	h := newTestHandler(t, &mockRepo{}, sink, nil)

	for _, text := range []string{"/help", "/start", "/frobnicate"} {
		h.HandleUpdate(context.Background(), update(42, text))
	}

	require.Len(t, sink.sent[42], 3)
	for _, reply := range sink.sent[42] {
		assert.Contains(t, reply, "/register")
	}
}

func TestHandler_NonCommandIgnored(t *testing.T) {
	repo := &mockRepo{}
	sink := newRecordingSink()
	h := newTestHandler(t, repo, sink, nil)

	h.HandleUpdate(context.Background(), update(42, "hello there"))
	h.HandleUpdate(context.Background(), Update{UpdateID: 2})

	assert.Empty(t, repo.upsertCalls)
	assert.Empty(t, sink.sent)
}

func TestHandler_RawResponse(t *testing.T) {
	fetcher := &mockFetcher{raw: `{"Results":[]}`}
	sink := newRecordingSink()
	h := newTestHandler(t, &mockRepo{}, sink, fetcher)

	h.HandleUpdate(context.Background(), update(42, "/get_raw_response 6142"))

	assert.Equal(t, []int64{6142}, fetcher.serviceIDs)
	require.Len(t, sink.sent[42], 1)
	assert.Contains(t, sink.sent[42][0], "<pre>")
	assert.Contains(t, sink.sent[42][0], "Results")
}

func TestHandler_RawResponse_DefaultService(t *testing.T) {
	fetcher := &mockFetcher{raw: `{}`}
	sink := newRecordingSink()
	h := newTestHandler(t, &mockRepo{}, sink, fetcher)

	h.HandleUpdate(context.Background(), update(42, "/get_raw_response"))

	assert.Equal(t, []int64{6140}, fetcher.serviceIDs)
}

func TestHandler_RawResponse_UnknownService(t *testing.T) {
	fetcher := &mockFetcher{}
	sink := newRecordingSink()
	h := newTestHandler(t, &mockRepo{}, sink, fetcher)

	h.HandleUpdate(context.Background(), update(42, "/get_raw_response 9999"))

	assert.Empty(t, fetcher.serviceIDs)
	require.Len(t, sink.sent[42], 1)
	assert.Contains(t, sink.sent[42][0], "Unknown service id")
}

func TestHandler_RawResponse_FetchError(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("unexpected status 401")}
	sink := newRecordingSink()
	h := newTestHandler(t, &mockRepo{}, sink, fetcher)

	h.HandleUpdate(context.Background(), update(42, "/get_raw_response 6142"))

	require.Len(t, sink.sent[42], 1)
	assert.Contains(t, sink.sent[42][0], "Fetch failed")
}
