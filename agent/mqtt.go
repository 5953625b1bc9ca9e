package agent

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

const connectTimeout = 10 * time.Second

// MQTTBridge connects the agent to a broker. Commands arrive on
// devices/<id>/command, snapshots go out on devices/<id>/status, and a
// retained presence message is kept on devices/<id>/connection so consumers
// can tell a dead agent from a silent one.
type MQTTBridge struct {
	client   paho.Client
	deviceID string
	onCmd    func(payload []byte)
}

type presence struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// NewMQTTBridge builds a bridge; Connect must be called before use.
// onCmd receives raw command payloads, typically Agent.HandleCommand.
func NewMQTTBridge(cfg MQTTConfig, deviceID string, onCmd func(payload []byte)) *MQTTBridge {
	b := &MQTTBridge{deviceID: deviceID, onCmd: onCmd}

	will, _ := json.Marshal(presence{Status: "offline", Timestamp: time.Now().Unix()})
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("stepper-agent-" + deviceID).
		SetAutoReconnect(true).
		SetBinaryWill(b.topic("connection"), will, 1, true).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			glog.Warningf("mqtt connection lost: %v", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	b.client = paho.NewClient(opts)
	return b
}

func (b *MQTTBridge) topic(leaf string) string {
	return "devices/" + b.deviceID + "/" + leaf
}

func (b *MQTTBridge) Connect() error {
	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect: timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// onConnect runs on every (re)connect: subscriptions do not survive a session
// drop, so both the command subscription and the presence flag are restored
// here rather than in Connect.
func (b *MQTTBridge) onConnect(c paho.Client) {
	glog.Infof("mqtt connected, device %s", b.deviceID)

	token := c.Subscribe(b.topic("command"), 1, func(_ paho.Client, msg paho.Message) {
		b.onCmd(msg.Payload())
	})
	if token.Wait(); token.Error() != nil {
		glog.Errorf("mqtt subscribe: %v", token.Error())
	}

	online, _ := json.Marshal(presence{Status: "online", Timestamp: time.Now().Unix()})
	c.Publish(b.topic("connection"), 1, true, online)
}

// PublishStatus sends one snapshot. QoS 0: a lost sample is replaced by the
// next tick.
func (b *MQTTBridge) PublishStatus(s Status) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	token := b.client.Publish(b.topic("status"), 0, false, payload)
	token.Wait()
	return token.Error()
}

// Close publishes the offline presence and disconnects cleanly, which
// suppresses the broker-side will.
func (b *MQTTBridge) Close() {
	offline, _ := json.Marshal(presence{Status: "offline", Timestamp: time.Now().Unix()})
	token := b.client.Publish(b.topic("connection"), 1, true, offline)
	token.WaitTimeout(time.Second)
	b.client.Disconnect(250)
}
