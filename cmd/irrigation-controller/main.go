// Command irrigation-controller runs the pump and solenoid watering sequence
// and accepts start/configure commands over MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/sweeney/irrigation-controller/internal/config"
	"github.com/sweeney/irrigation-controller/internal/gpio"
	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/mqtt"
	"github.com/sweeney/irrigation-controller/internal/status"
	"github.com/sweeney/irrigation-controller/internal/telemetry"
	"github.com/sweeney/irrigation-controller/internal/web"
)

// options holds the command-line flags. Flags override the config file
// only when set explicitly.
type options struct {
	configPath  string
	broker      string
	httpAddr    string
	poll        time.Duration
	heartbeat   time.Duration
	printConfig bool
}

func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("irrigation-controller", pflag.ContinueOnError)
	fs.StringVarP(&o.configPath, "config", "c", "", "YAML config file (defaults only if empty)")
	fs.StringVar(&o.broker, "broker", "", "MQTT broker address")
	fs.StringVar(&o.httpAddr, "http", "", "HTTP status address (empty to disable)")
	fs.DurationVar(&o.poll, "poll", 0, "Sequencer tick interval")
	fs.DurationVar(&o.heartbeat, "heartbeat", 0, "Heartbeat interval (0 to disable)")
	fs.BoolVar(&o.printConfig, "print-config", false, "Print the effective config and exit")
	return fs
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cfg *config.Config, fs *pflag.FlagSet, o *options) {
	if fs.Changed("broker") {
		cfg.MQTT.Broker = o.broker
	}
	if fs.Changed("http") {
		cfg.HTTP.Addr = o.httpAddr
	}
	if fs.Changed("poll") {
		cfg.Sequencer.Poll = o.poll
	}
	if fs.Changed("heartbeat") {
		cfg.Heartbeat = o.heartbeat
	}
}

func loadConfig(args []string) (*config.Config, *options, error) {
	var o options
	fs := newFlagSet(&o)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg, fs, &o)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, &o, nil
}

func main() {
	cfg, o, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if o.printConfig {
		out, err := cfg.YAML()
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config) error {
	outputs, err := gpio.NewRealWriter(cfg.GPIO.Chip, cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer outputs.Close()
	switchAllOff(outputs)

	mqttOpts := cfg.MQTTOptions()
	client := mqtt.NewRealClient(mqttOpts)
	client.Connect()
	defer client.Close()

	var recorder telemetry.Recorder = telemetry.Nop{}
	influx, err := telemetry.Connect(context.Background(), cfg.TelemetryOptions())
	switch {
	case err == nil:
		recorder = influx
	case errors.Is(err, telemetry.ErrDisabled):
	default:
		log.Printf("telemetry: %v (continuing without)", err)
	}
	defer recorder.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      cfg.Sequencer.Poll.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		HTTPAddr:    cfg.HTTP.Addr,
		Telemetry:   influx != nil,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	seq := logic.NewSequencer(time.Now(), cfg.SequencerSettings())
	tracker.Update(seq.Snapshot())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: poll=%v broker=%s prefix=%s heartbeat=%v targets=%d/%d/%d match=%s",
		cfg.Sequencer.Poll, cfg.MQTT.Broker, cfg.MQTT.TopicPrefix, cfg.Heartbeat,
		seq.Target(logic.Pump), seq.Target(logic.Solenoid1), seq.Target(logic.Solenoid2),
		seq.Snapshot().Match)

	ticker := time.NewTicker(cfg.Sequencer.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := loop{
		seq:        seq,
		handler:    logic.NewHandler(seq, uuid.NewString),
		outputs:    outputs,
		publisher:  client,
		mqttStatus: client,
		topics:     mqttOpts.Topics,
		tracker:    tracker,
		recorder:   recorder,
		heartbeat:  cfg.Heartbeat,
		now:        time.Now,
	}
	return runLoop(d, ticker.C, client.Messages(), sigCh)
}

// loop holds everything the main loop touches. Only runLoop's goroutine
// uses seq and handler.
type loop struct {
	seq        *logic.Sequencer
	handler    *logic.Handler
	outputs    gpio.Writer
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	topics     mqtt.Topics
	tracker    *status.Tracker
	recorder   telemetry.Recorder
	heartbeat  time.Duration
	now        func() time.Time
}

func runLoop(d loop, tick <-chan time.Time, msgs <-chan mqtt.Message, sig <-chan os.Signal) error {
	lastHeartbeat := d.now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			switchAllOff(d.outputs)

			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				d.refreshTracker()
				snap := d.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case m, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			d.handleMessage(m)

		case <-tick:
			t := d.now()
			for _, e := range d.seq.Tick(t) {
				d.applyEvent(e)
			}

			if d.heartbeat > 0 && t.Sub(lastHeartbeat) >= d.heartbeat {
				lastHeartbeat = t
				d.publishHeartbeat(t)
			}

			if d.tracker != nil {
				d.refreshTracker()
			}
		}
	}
}

func (d loop) handleMessage(m mqtt.Message) {
	cmd := d.topics.Command(m.Topic)
	payload := string(m.Payload)

	reply, ok := d.handler.Handle(cmd, payload)
	if !ok {
		log.Printf("command: ignoring message on %s", m.Topic)
		return
	}
	if reply.OK() {
		log.Printf("command: %s %q -> %s", cmd, payload, reply.Code)
	} else {
		log.Printf("command: %s %q rejected: %s (%v)", cmd, payload, reply.Code, reply.Err)
	}

	if err := d.publisher.PublishReply(reply); err != nil {
		log.Printf("reply publish error: %v", err)
	}
	if d.tracker != nil {
		d.tracker.RecordReply(reply)
		d.tracker.Update(d.seq.Snapshot())
	}
}

// applyEvent drives the output for a stage transition and reports it.
// Failures are logged; the sequence keeps advancing.
func (d loop) applyEvent(e logic.Event) {
	log.Printf("event: stage=%d status=%s cycle=%s", e.Stage, e.Status, e.CycleID)

	if err := d.outputs.Set(channelFor(e.Actuator), e.On); err != nil {
		log.Printf("gpio: %v", err)
	}
	if err := d.publisher.PublishStatus(e); err != nil {
		log.Printf("status publish error: %v", err)
	}
	if d.recorder != nil {
		d.recorder.Record(e)
	}
	if d.tracker != nil {
		d.tracker.RecordEvent(e)
	}
}

func (d loop) publishHeartbeat(t time.Time) {
	snap := d.seq.Snapshot()
	log.Printf("heartbeat: state=%s stage=%d completed=%d", snap.State, snap.Stage, snap.CompletedCycles)

	hbEvent := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "HEARTBEAT",
	}
	if d.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			d.tracker.SetNetwork(net)
		}
		d.refreshTracker()
		hbEvent.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := d.publisher.PublishSystem(hbEvent); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

func (d loop) refreshTracker() {
	d.tracker.Update(d.seq.Snapshot())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func channelFor(a logic.Actuator) gpio.Channel {
	switch a {
	case logic.Solenoid1:
		return gpio.ChannelSolenoid1
	case logic.Solenoid2:
		return gpio.ChannelSolenoid2
	default:
		return gpio.ChannelPump
	}
}

func switchAllOff(w gpio.Writer) {
	for _, ch := range []gpio.Channel{gpio.ChannelPump, gpio.ChannelSolenoid1, gpio.ChannelSolenoid2} {
		if err := w.Set(ch, false); err != nil {
			log.Printf("gpio: switch %s off: %v", ch, err)
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
