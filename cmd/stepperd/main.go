// stepperd runs the host-side agent: it talks to the controller board over a
// serial port and bridges commands and status to an MQTT broker.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"github.com/pgallienne/stepper-control-system/agent"
	"github.com/pgallienne/stepper-control-system/agent/link"
)

var configPath = flag.String("config", "stepperd.yaml", "path to the agent config file")

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := agent.Load(*configPath)
	if err != nil {
		glog.Exitf("config: %v", err)
	}

	client, err := link.Open(cfg.Serial.Device, cfg.Serial.Baud, cfg.SerialTimeout())
	if err != nil {
		glog.Exitf("serial %s: %v", cfg.Serial.Device, err)
	}
	defer client.Close()
	glog.Infof("serial link open on %s @ %d", cfg.Serial.Device, cfg.Serial.Baud)

	a := agent.New(cfg, client, nil)
	n := a.ApplyMotorSettings()
	glog.Infof("applied %d motor settings", n)

	bridge := agent.NewMQTTBridge(cfg.MQTT, cfg.DeviceID, a.HandleCommand)
	if err := bridge.Connect(); err != nil {
		glog.Exitf("%v", err)
	}
	defer bridge.Close()
	a.SetPublisher(bridge)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	glog.Infof("agent running, device %s", cfg.DeviceID)
	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		glog.Exitf("agent: %v", err)
	}
	glog.Info("shutting down")
}
