package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChangeEvent(t *testing.T) {
	msg := &IncomingMessage{
		Key:   "lst-1",
		Value: []byte(`{"event_type":"updated","listing_id":"lst-1","source":"nehnutelnosti","city":"Bratislava"}`),
	}

	require.NoError(t, msg.ParseChangeEvent())
	assert.Equal(t, "updated", msg.ChangeEvent.EventType)
	assert.Equal(t, "lst-1", msg.GetListingID())
	assert.Equal(t, "Bratislava", msg.ChangeEvent.City)
}

func TestParseChangeEventMalformed(t *testing.T) {
	msg := &IncomingMessage{Value: []byte(`not-json`)}
	assert.Error(t, msg.ParseChangeEvent())
}

func TestGetListingIDFallsBackToKey(t *testing.T) {
	msg := &IncomingMessage{
		Key:   "lst-2",
		Value: []byte(`{"event_type":"updated"}`),
	}
	require.NoError(t, msg.ParseChangeEvent())
	assert.Equal(t, "lst-2", msg.GetListingID())
}
