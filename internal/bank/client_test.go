package bank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_CreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a healthy provider When CreatePayment is called Then the registration payload and auth are correct", func(t *testing.T) {
		var got CreatePaymentRequest
		var gotAuth string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/v1/payments" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			gotAuth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode request body: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"BANK-1","pay_url":"https://bank.local/pay/BANK-1"}`))
		}))
		defer srv.Close()

		client := NewClient(Config{
			BaseURL:     srv.URL,
			APIToken:    "super-secret-token",
			CallbackURL: "https://your-domain.com/api/bank/callback",
		})

		result, err := client.CreatePayment(ctx, CreatePaymentRequest{
			Amount:      "5000.00",
			Currency:    "KGS",
			Description: "Tax patent payment #42",
			PaymentCode: "A1B2C3D4E5F6",
		})
		if err != nil {
			t.Fatalf("CreatePayment failed: %v", err)
		}

		if gotAuth != "Bearer super-secret-token" {
			t.Errorf("expected bearer auth header, got %q", gotAuth)
		}
		if got.Amount != "5000.00" || got.Currency != "KGS" || got.PaymentCode != "A1B2C3D4E5F6" {
			t.Errorf("unexpected payload: %+v", got)
		}
		if got.CallbackURL != "https://your-domain.com/api/bank/callback" {
			t.Errorf("expected configured callback url to be filled in, got %q", got.CallbackURL)
		}
		if result.BankPaymentID != "BANK-1" {
			t.Errorf("expected bank payment id BANK-1, got %q", result.BankPaymentID)
		}
		if result.PayURL != "https://bank.local/pay/BANK-1" {
			t.Errorf("unexpected pay url %q", result.PayURL)
		}
	})

	t.Run("Given a non-2xx response Then a RemoteError with the status is returned", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewClient(Config{BaseURL: srv.URL})

		_, err := client.CreatePayment(ctx, CreatePaymentRequest{Amount: "1.00"})
		var remoteErr *RemoteError
		if !errors.As(err, &remoteErr) {
			t.Fatalf("expected RemoteError, got %v", err)
		}
		if remoteErr.StatusCode != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", remoteErr.StatusCode)
		}
	})

	t.Run("Given a response without a payment id Then an error is returned", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"pay_url":"https://bank.local/pay/x"}`))
		}))
		defer srv.Close()

		client := NewClient(Config{BaseURL: srv.URL})

		if _, err := client.CreatePayment(ctx, CreatePaymentRequest{Amount: "1.00"}); err == nil {
			t.Error("expected an error for a response missing the payment id")
		}
	})
}
