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
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/runop/config"
	"github.com/jerry-enebeli/runop/internal/request"
)

const slackTimeout = 5 * time.Second

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

func slackPayload(systemError error, network string, now time.Time) slackMessage {
	return slackMessage{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: "Error From runop 🐞", Emoji: true}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Error:*\n%v", systemError)}}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Network:*\n%s", network)}}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Time:*\n%v", now.Format(time.RFC822))}}},
	}}
}

// SlackNotification posts systemError to webhookURL.
func SlackNotification(ctx context.Context, webhookURL, network string, systemError error) error {
	payload, err := request.ToJsonReq(slackPayload(systemError, network, time.Now()))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, slackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, payload)
	if err != nil {
		return err
	}

	// Slack answers with a plain "ok" body.
	resp, err := request.Send(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// NotifyError logs systemError and, when a Slack webhook is configured, reports it there.
// It blocks until the webhook call finishes since the CLI exits right after a failed run.
func NotifyError(ctx context.Context, systemError error) {
	logrus.Error(systemError)

	conf, err := config.Fetch()
	if err != nil {
		logrus.Debug(err)
		return
	}

	if conf.Notification.Slack.WebhookUrl == "" {
		return
	}
	err = SlackNotification(context.WithoutCancel(ctx), conf.Notification.Slack.WebhookUrl, conf.Network.Name, systemError)
	if err != nil {
		logrus.WithError(err).Warn("slack notification failed")
	}
}
