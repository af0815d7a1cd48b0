package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

const (
	defaultRetryInterval = 5 * time.Second
	defaultOutboxSize    = 64
	defaultInboxSize     = 16
	publishTimeout       = 5 * time.Second
	subscribeTimeout     = 5 * time.Second
	disconnectQuiesce    = 1000 // milliseconds
)

// Options configures a RealClient.
type Options struct {
	Broker       string
	ClientID     string
	RandomSuffix bool // append a short random suffix to ClientID
	Username     string
	Password     string
	Topics       Topics
	QoS          byte // for replies and status; system events always use QoS 1
	// RetryInterval is the fixed delay between connection attempts.
	RetryInterval time.Duration
	OutboxSize    int
	InboxSize     int
}

// brokerClient is the subset of paho.Client used here.
type brokerClient interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// RealClient connects to an actual MQTT broker. Connecting and reconnecting
// happen in the background; inbound messages arrive on Messages().
type RealClient struct {
	client brokerClient
	opts   Options
	inbox  chan Message

	mu         sync.Mutex
	connected  bool
	everOnline bool
	queued     *outbox
}

// NewRealClient creates a client for the given options. It does not connect;
// call Connect.
func NewRealClient(opts Options) *RealClient {
	opts = withDefaults(opts)
	c := &RealClient{
		opts:   opts,
		inbox:  make(chan Message, opts.InboxSize),
		queued: newOutbox(opts.OutboxSize),
	}
	c.client = paho.NewClient(c.clientOptions())
	return c
}

func withDefaults(opts Options) Options {
	if opts.ClientID == "" {
		opts.ClientID = "irrigation-controller"
	}
	if opts.RandomSuffix {
		opts.ClientID = ClientID(opts.ClientID)
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = defaultOutboxSize
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	if opts.Topics == (Topics{}) {
		opts.Topics = NewTopics(DefaultTopicPrefix)
	}
	return opts
}

// ClientID appends a short random suffix so that two controllers sharing a
// configured ID do not kick each other off the broker.
func ClientID(base string) string {
	return base + "-" + uuid.NewString()[:8]
}

func (c *RealClient) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(c.opts.Broker).
		SetClientID(c.opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(c.opts.RetryInterval).
		SetMaxReconnectInterval(c.opts.RetryInterval).
		SetOnConnectHandler(func(paho.Client) { c.handleConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { c.handleConnectionLost(err) })

	if c.opts.Username != "" {
		opts.SetUsername(c.opts.Username)
		opts.SetPassword(c.opts.Password)
	}

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	opts.SetBinaryWill(c.opts.Topics.System, will, 1, true)

	return opts
}

// Connect starts connecting in the background and returns immediately.
// paho keeps retrying at the configured interval until the broker answers.
func (c *RealClient) Connect() {
	log.Printf("mqtt: connecting to %s as %s", c.opts.Broker, c.opts.ClientID)
	token := c.client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			log.Printf("mqtt: connect: %v", err)
		}
	}()
}

// Messages returns the channel of inbound command messages.
func (c *RealClient) Messages() <-chan Message {
	return c.inbox
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// handleConnect runs on paho's goroutine after every successful (re)connect.
func (c *RealClient) handleConnect() {
	for _, topic := range c.opts.Topics.Commands() {
		token := c.client.Subscribe(topic, c.opts.QoS, c.onMessage)
		if !token.WaitTimeout(subscribeTimeout) {
			log.Printf("mqtt: subscribe %s: timeout", topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: subscribe %s: %v", topic, err)
		}
	}

	c.mu.Lock()
	c.connected = true
	reconnect := c.everOnline
	c.everOnline = true
	queued := c.queued.drain()
	c.mu.Unlock()

	log.Printf("mqtt: connected (%d queued messages)", len(queued))

	for _, p := range queued {
		c.client.Publish(p.topic, p.qos, p.retained, p.payload)
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		c.client.Publish(c.opts.Topics.System, 1, false, payload)
	}
}

func (c *RealClient) handleConnectionLost(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	log.Printf("mqtt: connection lost: %v (retrying every %v)", err, c.opts.RetryInterval)
}

func (c *RealClient) onMessage(_ paho.Client, m paho.Message) {
	c.deliver(m.Topic(), m.Payload())
}

// deliver hands a message to the main loop without blocking paho.
func (c *RealClient) deliver(topic string, payload []byte) {
	msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
	select {
	case c.inbox <- msg:
	default:
		log.Printf("mqtt: inbox full, dropping message on %s", topic)
	}
}

// PublishReply sends a command acknowledgement.
func (c *RealClient) PublishReply(reply logic.Reply) error {
	payload, err := FormatReplyPayload(reply)
	if err != nil {
		return fmt.Errorf("format reply: %w", err)
	}
	return c.publish(c.opts.Topics.Output, c.opts.QoS, false, payload)
}

// PublishStatus sends a stage transition.
func (c *RealClient) PublishStatus(event logic.Event) error {
	payload, err := FormatStatusPayload(event)
	if err != nil {
		return fmt.Errorf("format status: %w", err)
	}
	return c.publish(c.opts.Topics.StatusOutput, c.opts.QoS, false, payload)
}

// PublishSystem sends a system lifecycle event.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return c.publish(c.opts.Topics.System, 1, event.Retained, payload)
}

// publish sends immediately when connected and queues otherwise.
func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	c.mu.Lock()
	if !c.connected {
		c.queued.push(pending{topic: topic, payload: payload, qos: qos, retained: retained})
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Queued returns the number of publishes waiting for a connection.
func (c *RealClient) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queued.len()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(disconnectQuiesce)
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}
