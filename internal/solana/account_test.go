package solana

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEndpoints struct {
	responses map[string]string
	failing   map[string]bool
	calls     []string
}

func (f *fakeEndpoints) CallEndpoints(_ context.Context, _ string, urls []string, method string, _ ...any) (json.RawMessage, error) {
	f.calls = append(f.calls, urls[0])
	if method != "getAccountInfo" {
		return nil, errors.New("unexpected method " + method)
	}
	if f.failing[urls[0]] {
		return nil, errors.New("unreachable")
	}
	return json.RawMessage(f.responses[urls[0]]), nil
}

func TestAccountReader_TriesEndpointsInOrder(t *testing.T) {
	rpc := &fakeEndpoints{
		failing: map[string]bool{"http://a": true},
		responses: map[string]string{
			"http://b": `{"context":{"slot":1},"value":null}`,
			// "AQIDBAU=" is 01 02 03 04 05
			"http://c": `{"context":{"slot":1},"value":{"data":["AQIDBAU=","base64"],"executable":true,"lamports":2500000000,"owner":"BPFLoaderUpgradeab1e11111111111111111111111","rentEpoch":0}}`,
			"http://d": `{"context":{"slot":1},"value":{"data":["","base64"],"executable":false,"lamports":1,"owner":"x"}}`,
		},
	}
	reader := NewAccountReader(rpc, []string{"http://a", "http://b", "http://c", "http://d"}, 3, testLogger())

	got, err := reader.GetAccount(context.Background(), program)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://a", "http://b", "http://c"}, rpc.calls)
	assert.True(t, got.IsExecutable)
	assert.Equal(t, "BPFLoaderUpgradeab1e11111111111111111111111", got.Owner)
	assert.Equal(t, uint64(2_500_000_000), got.Lamports)
	assert.InDelta(t, 2.5, got.SOLBalance, 1e-9)
	assert.Equal(t, 5, got.DataLength)
	assert.Equal(t, "010203", got.DataPreview)
}

func TestAccountReader_NotFound(t *testing.T) {
	rpc := &fakeEndpoints{responses: map[string]string{
		"http://a": `{"value":null}`,
		"http://b": `garbage`,
	}}
	reader := NewAccountReader(rpc, []string{"http://a", "http://b"}, 0, testLogger())

	_, err := reader.GetAccount(context.Background(), program)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, rpc.calls, 2)
}
