package watch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"media-relay/internal/session"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const defaultMQTTTimeout = 5 * time.Second

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TopicBase string
	Timeout   time.Duration
}

// publisher is the part of paho.Client the MQTTPublisher needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// MQTTPublisher publishes every snapshot as a retained message, so a consumer
// that subscribes late still receives the latest state of each session.
// A snapshot older than the last one published for its session is dropped.
type MQTTPublisher struct {
	client     publisher
	disconnect func()
	topicBase  string
	timeout    time.Duration
	log        *slog.Logger

	// mu orders publishes so the broker sees versions in increasing order.
	mu   sync.Mutex
	last map[session.ID]uint64
}

// DialMQTT connects to the broker and returns a publisher using it.
func DialMQTT(opts MQTTOptions, log *slog.Logger) (*MQTTPublisher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultMQTTTimeout
	}

	clientOpts := paho.NewClientOptions().AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(opts.Timeout)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn("mqtt connection lost", slog.String("error", err.Error()))
	})
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	client := paho.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", opts.BrokerURL, token.Error())
	}

	p := newMQTTPublisher(client, opts.TopicBase, opts.Timeout, log)
	p.disconnect = func() { client.Disconnect(250) }
	return p, nil
}

func newMQTTPublisher(client publisher, topicBase string, timeout time.Duration, log *slog.Logger) *MQTTPublisher {
	if timeout <= 0 {
		timeout = defaultMQTTTimeout
	}
	return &MQTTPublisher{
		client:    client,
		topicBase: topicBase,
		timeout:   timeout,
		log:       log,
		last:      make(map[session.ID]uint64),
	}
}

// topicEscaper covers what url.PathEscape leaves alone but MQTT treats as
// a wildcard.
var topicEscaper = strings.NewReplacer("+", "%2B")

// StateTopic returns the topic holding the retained state of session id.
// The id is percent-escaped into a single topic level: it never contains a
// level separator or a wildcard.
func StateTopic(base string, id session.ID) string {
	return fmt.Sprintf("%s/sessions/%s/state", base, topicEscaper.Replace(url.PathEscape(string(id))))
}

// Notify implements session.Notifier. Publishing is asynchronous; failures
// are logged.
func (p *MQTTPublisher) Notify(snap session.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		p.log.Error("encode session state", slog.String("error", err.Error()))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Version <= p.last[snap.SessionID] {
		p.log.Debug("dropping stale session state",
			slog.String("session_id", string(snap.SessionID)),
			slog.Uint64("version", snap.Version))
		return
	}
	p.last[snap.SessionID] = snap.Version
	p.publish(StateTopic(p.topicBase, snap.SessionID), payload)
}

// Clear removes the retained state of the given sessions.
func (p *MQTTPublisher) Clear(ids []session.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range ids {
		delete(p.last, id)
		p.publish(StateTopic(p.topicBase, id), []byte{})
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.disconnect != nil {
		p.disconnect()
	}
}

func (p *MQTTPublisher) publish(topic string, payload []byte) {
	token := p.client.Publish(topic, 1, true, payload)
	go func() {
		if !token.WaitTimeout(p.timeout) {
			p.log.Warn("mqtt publish timed out", slog.String("topic", topic))
			return
		}
		if err := token.Error(); err != nil {
			p.log.Warn("mqtt publish failed", slog.String("topic", topic), slog.String("error", err.Error()))
		}
	}()
}
