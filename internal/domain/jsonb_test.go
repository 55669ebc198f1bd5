package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda-eventos/internal/domain"
)

func TestJSONB_Value(t *testing.T) {
	t.Run("NilIsNull", func(t *testing.T) {
		v, err := domain.JSONB(nil).Value()
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("EmptyIsNull", func(t *testing.T) {
		v, err := domain.JSONB{}.Value()
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("Document", func(t *testing.T) {
		v, err := domain.JSONB(`{"a":1}`).Value()
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"a":1}`), v)
	})

	t.Run("NotificationWithoutPayload", func(t *testing.T) {
		n := domain.Notification{Type: domain.NotifSystem}
		v, err := n.Data.Value()
		require.NoError(t, err)
		assert.Nil(t, v)
	})
}

func TestJSONB_Scan(t *testing.T) {
	t.Run("Null", func(t *testing.T) {
		j := domain.JSONB(`{"stale":true}`)
		require.NoError(t, j.Scan(nil))
		assert.Empty(t, j)
	})

	t.Run("BytesAreCopied", func(t *testing.T) {
		src := []byte(`{"a":1}`)
		var j domain.JSONB
		require.NoError(t, j.Scan(src))
		src[2] = 'b'
		assert.Equal(t, `{"a":1}`, string(j))
	})

	t.Run("String", func(t *testing.T) {
		var j domain.JSONB
		require.NoError(t, j.Scan(`[1,2]`))
		assert.Equal(t, `[1,2]`, string(j))
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		var j domain.JSONB
		assert.Error(t, j.Scan(42))
	})
}

func TestJSONB_JSON(t *testing.T) {
	t.Run("EmbeddedVerbatim", func(t *testing.T) {
		n := domain.Notification{Data: domain.NotificationData{Action: "approved"}.Raw()}
		out, err := json.Marshal(n)
		require.NoError(t, err)

		var decoded map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.JSONEq(t, `{"action":"approved"}`, string(decoded["data"]))
	})

	t.Run("EmptyOmitted", func(t *testing.T) {
		out, err := json.Marshal(domain.Notification{})
		require.NoError(t, err)
		assert.NotContains(t, string(out), `"data"`)
	})

	t.Run("InputDecodes", func(t *testing.T) {
		var in domain.CreateNotificationInput
		require.NoError(t, json.Unmarshal([]byte(`{"type":"system","data":{"reason":"x"}}`), &in))
		assert.Equal(t, "x", (&domain.Notification{Data: in.Data}).Payload().Reason)

		require.NoError(t, json.Unmarshal([]byte(`{"data":null}`), &in))
		assert.Empty(t, in.Data)
	})
}
