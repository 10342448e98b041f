package telephony

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_SequentialIDsPerKind(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	r1, err := m.SendSMS(ctx, SendSMSParams{To: "+1", Body: "a"})
	require.NoError(t, err)
	r2, err := m.SendSMS(ctx, SendSMSParams{To: "+1", Body: "b"})
	require.NoError(t, err)
	mms, err := m.SendMMS(ctx, SendMMSParams{SendSMSParams: SendSMSParams{To: "+1"}, MediaURLs: []string{"u"}})
	require.NoError(t, err)
	call, err := m.InitiateCall(ctx, InitiateCallParams{To: "+1"})
	require.NoError(t, err)

	assert.Equal(t, "mock-msg-1", r1.MessageID)
	assert.Equal(t, "mock-msg-2", r2.MessageID)
	assert.Equal(t, "mock-mms-1", mms.MessageID)
	assert.Equal(t, "mock-call-1", call.CallID)

	recs := m.Records()
	require.Len(t, recs, 4)
	assert.Equal(t, []string{MockOpSMS, MockOpSMS, MockOpMMS, MockOpCall},
		[]string{recs[0].Op, recs[1].Op, recs[2].Op, recs[3].Op})
	assert.Equal(t, "b", recs[1].Body)
	assert.Equal(t, []string{"u"}, recs[2].MediaURLs)

	m.Reset()
	assert.Empty(t, m.Records())
	r3, err := m.SendSMS(ctx, SendSMSParams{To: "+1"})
	require.NoError(t, err)
	assert.Equal(t, "mock-msg-1", r3.MessageID)
}

func TestMock_InstancesDoNotShareCounters(t *testing.T) {
	a, b := NewMock(), NewMock()
	ra, err := a.SendSMS(context.Background(), SendSMSParams{To: "+1"})
	require.NoError(t, err)
	rb, err := b.SendSMS(context.Background(), SendSMSParams{To: "+1"})
	require.NoError(t, err)
	assert.Equal(t, "mock-msg-1", ra.MessageID)
	assert.Equal(t, "mock-msg-1", rb.MessageID)
}

func TestMock_ConcurrentSendsYieldUniqueIDs(t *testing.T) {
	m := NewMock()
	const n = 64

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.SendSMS(context.Background(), SendSMSParams{To: "+1"})
			if err == nil {
				ids <- res.MessageID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Len(t, m.Records(), n)
}

func TestMock_VerifyAndParse(t *testing.T) {
	m := NewMock()
	wc := webhookContext(t, "http://localhost/telephony/webhook", "application/json",
		`{"messageId":"m-1","from":"+1","to":"+2","text":"hey"}`, nil)

	assert.True(t, m.VerifyWebhook(wc).OK)

	res := m.ParseInbound(wc)
	require.Len(t, res.Events, 1)
	ev := res.Events[0].(InboundSMS)
	assert.Equal(t, "m-1", ev.MessageID)
	assert.Equal(t, "hey", ev.Body)
	assert.Equal(t, "+1", ev.From)
	assert.Equal(t, "+2", ev.To)

	res = m.ParseInbound(webhookContext(t, "http://localhost/", "application/json", `{"body":"b","text":"t"}`, nil))
	require.Len(t, res.Events, 1)
	ev = res.Events[0].(InboundSMS)
	assert.Equal(t, "b", ev.Body)
	assert.Equal(t, "mock-in-1700000000000", ev.MessageID)

	res = m.ParseInbound(webhookContext(t, "http://localhost/", "application/json", `not json`, nil))
	assert.Empty(t, res.Events)
	assert.Equal(t, http.StatusOK, res.Status())
}

func TestMock_ParseIdempotent(t *testing.T) {
	m := NewMock()
	wc := webhookContext(t, "http://localhost/", "application/json", `{"from":"+1","text":"no id"}`, nil)
	assert.Equal(t, m.ParseInbound(wc), m.ParseInbound(wc))
}

func TestMock_ValidatesParams(t *testing.T) {
	m := NewMock()
	_, err := m.SendSMS(context.Background(), SendSMSParams{})
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = m.SendMMS(context.Background(), SendMMSParams{SendSMSParams: SendSMSParams{To: "+1"}})
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.Empty(t, m.Records())
}
