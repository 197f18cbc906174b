package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/RodrigoCastroMoura/Tracker/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// FCM sends vehicle alerts to a Firebase Cloud Messaging topic over the HTTP
// v1 API, authenticating with a service-account credentials file.
type FCM struct {
	client    *http.Client
	projectID string
	topic     string
}

func NewFCM(credentialsPath, topic string) (*FCM, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("reading FCM credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(context.Background(), data, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("parsing FCM credentials: %w", err)
	}
	if creds.ProjectID == "" {
		return nil, fmt.Errorf("FCM credentials carry no project id")
	}

	return &FCM{
		client: &http.Client{
			Transport: &oauth2.Transport{Source: creds.TokenSource},
			Timeout:   10 * time.Second,
		},
		projectID: creds.ProjectID,
		topic:     topic,
	}, nil
}

type fcmMessage struct {
	Message struct {
		Topic        string            `json:"topic"`
		Notification map[string]string `json:"notification"`
		Data         map[string]string `json:"data,omitempty"`
	} `json:"message"`
}

// Notify delivers asynchronously. Errors are logged and dropped; the calling
// session never waits on FCM.
func (f *FCM) Notify(_ context.Context, imei, eventKind, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var msg fcmMessage
		msg.Message.Topic = f.topic
		msg.Message.Notification = map[string]string{
			"title": fmt.Sprintf("Vehicle %s", imei),
			"body":  body,
		}
		msg.Message.Data = map[string]string{
			"imei":  imei,
			"event": eventKind,
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			logging.Error("marshal FCM message", zap.Error(err))
			return
		}

		url := fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", f.projectID)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			logging.Error("build FCM request", zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			logging.Warn("push notification failed", zap.String("imei", imei), zap.Error(err))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			logging.Warn("push notification rejected",
				zap.String("imei", imei),
				zap.Int("status", resp.StatusCode))
			return
		}
		logging.Debug("push notification sent",
			zap.String("imei", imei),
			zap.String("event", eventKind),
			zap.String("topic", f.topic))
	}()
}
