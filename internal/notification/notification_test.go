/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerry-enebeli/runop/config"
)

func TestSlackPayload_EscapesErrorText(t *testing.T) {
	msg := slackPayload(errors.New(`revert "AA21 didn't pay prefund"`), "localhost", time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC))

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded slackMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Blocks, 4)
	assert.Equal(t, "header", decoded.Blocks[0].Type)
	assert.Contains(t, decoded.Blocks[1].Fields[0].Text, `"AA21 didn't pay prefund"`)
	assert.Contains(t, decoded.Blocks[2].Fields[0].Text, "localhost")
}

func TestSlackNotification_PostsToWebhook(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	err := SlackNotification(context.Background(), server.URL, "goerli", errors.New("stake unavailable"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "stake unavailable")
	assert.Contains(t, string(body), "goerli")
}

func TestSlackNotification_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := SlackNotification(context.Background(), server.URL, "goerli", errors.New("boom"))
	assert.Error(t, err)
}

func TestNotifyError_SendsWhenConfigured(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	config.MockConfig(&config.Configuration{
		Network:      config.NetworkConfig{Name: "localhost"},
		Notification: config.Notification{Slack: config.SlackWebhook{WebhookUrl: server.URL}},
	})

	NotifyError(context.Background(), errors.New("dispatch failed"))
	assert.Equal(t, 1, calls)
}

func TestNotifyError_SkipsWithoutWebhook(t *testing.T) {
	config.MockConfig(&config.Configuration{Network: config.NetworkConfig{Name: "localhost"}})

	assert.NotPanics(t, func() {
		NotifyError(context.Background(), errors.New("dispatch failed"))
	})
}
