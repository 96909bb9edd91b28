package sdk

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdkbridge/internal/storage"
	logx "sdkbridge/pkg/logx"
)

func TestPlatformVersion(t *testing.T) {
	assert.Equal(t, "iOS 17.0", NewJournal(JournalConfig{Platform: "iOS 17.0"}, nil, logx.Nop()).PlatformVersion())
	assert.NotEmpty(t, NewJournal(JournalConfig{}, nil, logx.Nop()).PlatformVersion())
}

func TestJournalPersistsEvents(t *testing.T) {
	ctx := context.Background()
	st, err := storage.Open(storage.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "j.db")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	j := NewJournal(JournalConfig{}, st, logx.Nop())
	require.NoError(t, j.Initialize(ctx, Settings{AppID: "42", AdvertiserTrackingEnabled: true}))
	s, ok := j.Settings()
	require.True(t, ok)
	assert.Equal(t, "42", s.AppID)

	require.NoError(t, j.LogEvent(ctx, Event{Kind: KindAddedToCart, ValueToSum: Value(9.5), Parameters: map[string]any{ParamCurrency: "USD"}}))
	require.NoError(t, j.LogPurchase(ctx, Purchase{Amount: 3, Currency: "EUR"}))

	// both records fall before the cutoff
	n, err := st.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestJournalRejectsBadInput(t *testing.T) {
	j := NewJournal(JournalConfig{}, nil, logx.Nop())
	assert.Error(t, j.LogEvent(context.Background(), Event{}))
	assert.Error(t, j.LogPurchase(context.Background(), Purchase{Amount: -1}))
}

func TestActivateApp(t *testing.T) {
	j := NewJournal(JournalConfig{}, nil, logx.Nop())
	require.NoError(t, j.ActivateApp(context.Background()))
	require.NoError(t, j.ActivateApp(context.Background()))
	assert.Equal(t, 2, j.Activations())
}

func TestOpenURL(t *testing.T) {
	j := NewJournal(JournalConfig{}, nil, logx.Nop())
	assert.True(t, j.OpenURL(context.Background(), "myapp://x"))
	assert.False(t, j.OpenURL(context.Background(), "no-scheme"))
}

func TestDeferredLinkIsClaimedOnce(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(JournalConfig{DeferredLink: "myapp://promo"}, nil, logx.Nop())
	link, err := j.FetchDeferredAppLink(ctx)
	require.NoError(t, err)
	assert.Equal(t, "myapp://promo", link)

	link, err = j.FetchDeferredAppLink(ctx)
	require.NoError(t, err)
	assert.Empty(t, link)
}

func TestDeferredLinkHonorsCancel(t *testing.T) {
	j := NewJournal(JournalConfig{DeferredLink: "myapp://promo", DeferredDelay: time.Hour}, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := j.FetchDeferredAppLink(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// a canceled lookup does not claim the link
	j.cfg.DeferredDelay = 0
	link, err := j.FetchDeferredAppLink(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "myapp://promo", link)
}

type fetchFunc func(ctx context.Context) (string, error)

type stubClient struct {
	Journal
	fetch fetchFunc
}

func (s *stubClient) FetchDeferredAppLink(ctx context.Context) (string, error) { return s.fetch(ctx) }

func TestResolveYieldsOnce(t *testing.T) {
	c := &stubClient{fetch: func(context.Context) (string, error) { return "myapp://x", nil }}
	ch := Resolve(context.Background(), c)
	res, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, Resolution{URL: "myapp://x"}, res)
	_, ok = <-ch
	assert.False(t, ok)
}

func TestResolveReportsError(t *testing.T) {
	boom := errors.New("network")
	c := &stubClient{fetch: func(context.Context) (string, error) { return "", boom }}
	res := <-Resolve(context.Background(), c)
	assert.ErrorIs(t, res.Err, boom)
}

func TestResolveRecoversPanic(t *testing.T) {
	c := &stubClient{fetch: func(context.Context) (string, error) { panic("sdk crashed") }}
	res := <-Resolve(context.Background(), c)
	assert.ErrorContains(t, res.Err, "sdk crashed")
}

func TestResolveCanceledDropsLateResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &stubClient{fetch: func(context.Context) (string, error) {
		cancel()
		return "myapp://late", nil
	}}
	res := <-Resolve(ctx, c)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, res.URL)
}

func TestResolveDoesNotWaitForClientIgnoringCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := &stubClient{fetch: func(context.Context) (string, error) {
		<-release
		return "myapp://never", nil
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	select {
	case res := <-Resolve(ctx, c):
		assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
		assert.Empty(t, res.URL)
	case <-time.After(time.Second):
		t.Fatal("Resolve blocked on a client that ignores ctx")
	}
}
