package notify

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xef5000/UltimateLogger/logstore"
)

const (
	connectTimeout         = 10 * time.Second
	maxLoggedResponseBytes = 512
	metricDeliveries       = "ultimatelogger_webhook_deliveries_total"
	labelRecordType        = "record_type"
	labelStatus            = "status"
	statusDelivered        = "delivered"
	statusRejected         = "rejected"
	statusFailed           = "failed"
	logMsgWebhookRejected  = "webhook answered with a non-success status"
	logMsgWebhookFailed    = "webhook delivery failed"
	logMsgEmbedFailed      = "failed to build webhook body"
	logAttrRecordType      = "record_type"
	logAttrRecordID        = "record_id"
	logAttrStatusCode      = "status_code"
	logAttrResponse        = "response"
	logAttrError           = "error"
)

// Dispatcher posts webhook messages asynchronously.
type Dispatcher struct {
	client           *http.Client
	now              func() time.Time
	logger           logstore.Logger
	metricsCollector logstore.MetricsCollector
	inFlight         sync.WaitGroup
}

// DispatcherOption defines a functional option for configuring Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHTTPClient replaces the default client (10 s connect timeout, traced transport).
func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(d *Dispatcher) { d.client = client }
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func WithLogger(logger logstore.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(collector logstore.MetricsCollector) DispatcherOption {
	return func(d *Dispatcher) { d.metricsCollector = collector }
}

func NewDispatcher(options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client: defaultHTTPClient(),
		now:    time.Now,
	}

	for _, option := range options {
		option(d)
	}

	return d
}

func defaultHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext

	return &http.Client{Transport: otelhttp.NewTransport(transport)}
}

// Dispatch posts the record to url when it satisfies conditions. It never blocks on the network:
// the request runs on its own goroutine with a background context.
func (d *Dispatcher) Dispatch(url, recordType string, record logstore.Record, conditions []logstore.Condition) {
	if !logstore.MatchConditions(record.Payload, conditions) {
		return
	}

	body, err := BuildEmbed(recordType, record, d.now())
	if err != nil {
		d.logError(logMsgEmbedFailed, err, logAttrRecordType, recordType, logAttrRecordID, record.ID)
		return
	}

	d.inFlight.Add(1)
	go func() {
		defer d.inFlight.Done()
		d.post(url, recordType, record.ID, body)
	}()
}

// Wait blocks until every dispatched request finished.
func (d *Dispatcher) Wait() {
	d.inFlight.Wait()
}

func (d *Dispatcher) post(url, recordType string, recordID int64, body []byte) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		d.logError(logMsgWebhookFailed, err, logAttrRecordType, recordType, logAttrRecordID, recordID)
		d.countDelivery(recordType, statusFailed)

		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logError(logMsgWebhookFailed, err, logAttrRecordType, recordType, logAttrRecordID, recordID)
		d.countDelivery(recordType, statusFailed)

		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		answer, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedResponseBytes))
		if d.logger != nil {
			d.logger.Warn(logMsgWebhookRejected,
				logAttrRecordType, recordType,
				logAttrRecordID, recordID,
				logAttrStatusCode, resp.StatusCode,
				logAttrResponse, string(answer),
			)
		}
		d.countDelivery(recordType, statusRejected)

		return
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	d.countDelivery(recordType, statusDelivered)
}

func (d *Dispatcher) logError(message string, err error, args ...any) {
	if d.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		d.logger.Error(message, allArgs...)
	}
}

func (d *Dispatcher) countDelivery(recordType, status string) {
	if d.metricsCollector != nil {
		d.metricsCollector.IncrementCounter(metricDeliveries, map[string]string{
			labelRecordType: recordType,
			labelStatus:     status,
		})
	}
}
