package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"(11) 98765-4321":   "5511987654321",
		"11 3333-4444":      "551133334444",
		"+55 11 98765-4321": "5511987654321",
		"55 (21) 3333-4444": "552133334444",
	}
	for raw, want := range cases {
		got, err := NormalizePhone(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, bad := range []string{"", "123", "4411987654321", "+1 (415) 555-0100 ext 99"} {
		_, err := NormalizePhone(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestWhatsAppService_Resolve(t *testing.T) {
	svc := NewWhatsAppService("https://gw.example/send", "default-token")

	gw := svc.Resolve(WhatsAppGateway{Token: "tenant-token"})
	assert.Equal(t, "https://gw.example/send", gw.URL)
	assert.Equal(t, "tenant-token", gw.Token)
	assert.True(t, gw.Configured())

	assert.False(t, NewWhatsAppService("", "").Resolve(WhatsAppGateway{}).Configured())
}

func TestWhatsAppService_Send(t *testing.T) {
	var got whatsAppMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	svc := NewWhatsAppService("", "")
	err := svc.Send(context.Background(), WhatsAppGateway{URL: srv.URL, Token: "secret"}, "5511987654321", "oi")
	require.NoError(t, err)
	assert.Equal(t, "5511987654321", got.Phone)
	assert.Equal(t, "oi", got.Message)
}

func TestWhatsAppService_SendErrors(t *testing.T) {
	svc := NewWhatsAppService("", "")
	err := svc.Send(context.Background(), WhatsAppGateway{}, "5511987654321", "oi")
	assert.ErrorIs(t, err, ErrWhatsAppNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "number not registered", http.StatusBadRequest)
	}))
	defer srv.Close()

	err = svc.Send(context.Background(), WhatsAppGateway{URL: srv.URL, Token: "secret"}, "5511987654321", "oi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "number not registered")
}
