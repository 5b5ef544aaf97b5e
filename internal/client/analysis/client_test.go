package analysis

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeSendsMultipartFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, _ := io.ReadAll(file)
		assert.Equal(t, "snapshot.png", header.Filename)
		assert.Equal(t, "png-bytes", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prediction":"cat","confidence":0.87}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL+"/", nil)

	result, err := client.Analyze(context.Background(), "snapshot.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, Result{Prediction: "cat", Confidence: 0.87}, result)
}

func TestAnalyzeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `model crashed`, ErrBadStatus},
		{"not found", http.StatusNotFound, ``, ErrBadStatus},
		{"not json", http.StatusOK, `<html>`, ErrMalformedResult},
		{"empty label", http.StatusOK, `{"prediction":"","confidence":0.5}`, ErrMalformedResult},
		{"confidence above one", http.StatusOK, `{"prediction":"cat","confidence":1.5}`, ErrMalformedResult},
		{"negative confidence", http.StatusOK, `{"prediction":"cat","confidence":-0.1}`, ErrMalformedResult},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			_, err := NewClient(srv.URL, nil).Analyze(context.Background(), "a.png", strings.NewReader("x"))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAnalyzeUnreachable(t *testing.T) {
	t.Parallel()

	_, err := NewClient("http://127.0.0.1:1", nil).Analyze(context.Background(), "a.png", strings.NewReader("x"))
	require.Error(t, err)
}
