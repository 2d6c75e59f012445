package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSampleClient_GetByID(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/samples/SMP-1" {
				t.Errorf("путь = %q", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id": "SMP-1", "status": "Submitted to QA"}`))
		}))
		defer srv.Close()

		client := NewSampleClient(srv.URL, 5*time.Second)
		sample, err := client.GetByID(context.Background(), "SMP-1")
		if err != nil {
			t.Fatalf("GetByID ошибка: %v", err)
		}
		if sample.Status != "Submitted to QA" {
			t.Errorf("Status = %q", sample.Status)
		}
	})

	t.Run("404 maps to ErrNotFound", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := NewSampleClient(srv.URL, 5*time.Second)
		_, err := client.GetByID(context.Background(), "SMP-404")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("ошибка = %v, ожидался ErrNotFound", err)
		}
	})

	// Недоступный реестр — жёсткий отказ, не ErrNotFound и не "valid".
	t.Run("5xx is a hard failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewSampleClient(srv.URL, 5*time.Second)
		_, err := client.GetByID(context.Background(), "SMP-1")
		if err == nil {
			t.Fatal("ожидалась ошибка")
		}
		if errors.Is(err, ErrNotFound) {
			t.Error("5xx не должен отображаться в ErrNotFound")
		}
	})

	// Зависший реестр обрывается дедлайном клиента, а не висит вечно.
	t.Run("stalled registry hits client deadline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()

		client := NewSampleClient(srv.URL, 50*time.Millisecond)
		_, err := client.GetByID(context.Background(), "SMP-1")
		if err == nil {
			t.Fatal("ожидалась ошибка по таймауту")
		}
	})
}

func TestResultClient_GetByID(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/results/RES-1" {
				t.Errorf("путь = %q", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id": "RES-1", "sampleId": "SMP-1", "submittedToQA": true}`))
		}))
		defer srv.Close()

		client := NewResultClient(srv.URL, 5*time.Second)
		result, err := client.GetByID(context.Background(), "RES-1")
		if err != nil {
			t.Fatalf("GetByID ошибка: %v", err)
		}
		if result.SampleID != "SMP-1" || !result.SubmittedToQA {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("404 maps to ErrNotFound", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := NewResultClient(srv.URL, 5*time.Second)
		_, err := client.GetByID(context.Background(), "RES-404")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("ошибка = %v, ожидался ErrNotFound", err)
		}
	})
}
