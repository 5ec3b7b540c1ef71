package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/slack-go/slack"

	"github.com/withObsrvr/appstore-report-pipeline/processor"
)

// NotificationDispatcher pushes a load summary to configured channels after
// the warehouse consumer commits. Delivery is best effort: a failed
// notification is logged, never failed back into the pipeline.
type NotificationDispatcher struct {
	slackClient    *slack.Client
	sendgridClient *sendgrid.Client
	httpClient     *http.Client
	slackChannels  []string
	emailFrom      string
	emailTo        []string
	webhookURLs    []string
	processors     []processor.Processor
}

func NewNotificationDispatcher(config map[string]interface{}) (*NotificationDispatcher, error) {
	slackToken, _ := config["slack_token"].(string)
	sendgridKey, _ := config["sendgrid_key"].(string)

	d := &NotificationDispatcher{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		slackChannels: stringList(config["slack_channels"]),
		emailFrom:     stringOrEmpty(config["email_from"]),
		emailTo:       stringList(config["email_to"]),
		webhookURLs:   stringList(config["webhook_urls"]),
	}

	if slackToken != "" {
		d.slackClient = slack.New(slackToken)
	}
	if sendgridKey != "" {
		d.sendgridClient = sendgrid.NewSendClient(sendgridKey)
	}

	if d.slackClient == nil && d.sendgridClient == nil && len(d.webhookURLs) == 0 {
		return nil, fmt.Errorf("notification dispatcher has no destinations configured")
	}
	return d, nil
}

func stringOrEmpty(v interface{}) string {
	s, _ := v.(string)
	return s
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (d *NotificationDispatcher) Subscribe(proc processor.Processor) {
	d.processors = append(d.processors, proc)
}

func (d *NotificationDispatcher) Process(ctx context.Context, msg processor.Message) error {
	result, ok := msg.Payload.(processor.LoadResult)
	if !ok {
		// Not a load summary; nothing to announce.
		return nil
	}

	summary := fmt.Sprintf("Loaded %d %s rows into %s for %s..%s",
		result.RowsLoaded, result.ReportType, result.TargetTable, result.StartDate, result.EndDate)

	d.sendSlack(ctx, summary)
	d.sendEmail(summary)
	d.sendWebhooks(ctx, result)

	for _, proc := range d.processors {
		if err := proc.Process(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (d *NotificationDispatcher) sendSlack(ctx context.Context, text string) {
	if d.slackClient == nil {
		return
	}
	for _, channel := range d.slackChannels {
		_, _, err := d.slackClient.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
		if err != nil {
			log.Printf("NotificationDispatcher: slack post to %s failed: %v", channel, err)
		}
	}
}

func (d *NotificationDispatcher) sendEmail(text string) {
	if d.sendgridClient == nil || d.emailFrom == "" {
		return
	}
	from := mail.NewEmail("appstore-report-pipeline", d.emailFrom)
	for _, to := range d.emailTo {
		message := mail.NewSingleEmail(from, "App Store report load", mail.NewEmail("", to), text, text)
		if _, err := d.sendgridClient.Send(message); err != nil {
			log.Printf("NotificationDispatcher: email to %s failed: %v", to, err)
		}
	}
}

func (d *NotificationDispatcher) sendWebhooks(ctx context.Context, result processor.LoadResult) {
	if len(d.webhookURLs) == 0 {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		log.Printf("NotificationDispatcher: marshaling load result: %v", err)
		return
	}
	for _, url := range d.webhookURLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			log.Printf("NotificationDispatcher: building webhook request: %v", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := d.httpClient.Do(req)
		if err != nil {
			log.Printf("NotificationDispatcher: webhook %s failed: %v", url, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.Printf("NotificationDispatcher: webhook %s returned %d", url, resp.StatusCode)
		}
	}
}
