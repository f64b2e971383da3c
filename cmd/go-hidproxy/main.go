package main

// Go implementation of a Bluetooth HID switch.

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/go-hidswitch/go-hidproxy/internal/btsetup"
	"github.com/go-hidswitch/go-hidproxy/internal/config"
	"github.com/go-hidswitch/go-hidproxy/internal/hotkey"
	"github.com/go-hidswitch/go-hidproxy/internal/inputdev"
	"github.com/go-hidswitch/go-hidproxy/internal/l2cap"
	"github.com/go-hidswitch/go-hidproxy/internal/loop"
	"github.com/go-hidswitch/go-hidproxy/internal/registry"
)

// dispatcher turns a recognized hotkey into its side effect, closing over
// the collaborators it needs rather than reaching through globals (spec §9:
// no process-wide mutable globals).
type dispatcher struct {
	reg       *registry.Registry
	adapterID string
}

func (d *dispatcher) Dispatch(action hotkey.Action) {
	switch action.Kind {
	case hotkey.EnterPairable:
		log.Info("dispatch: entering pairable mode")
		if err := btsetup.EnterPairable(d.adapterID); err != nil {
			log.WithError(err).Warn("dispatch: EnterPairable failed")
		}
	case hotkey.SetCurrent:
		log.Infof("dispatch: switching current remote to %d", action.Target)
		if err := d.reg.SetCurrent(action.Target); err != nil {
			log.WithError(err).Warnf("dispatch: SetCurrent(%d) failed", action.Target)
		}
	}
}

func main() {
	logLevelFlag := flag.String("loglevel", "info", "log level (panic, fatal, error, warn, info, debug, trace)")
	adapterFlag := flag.String("bluez-adapter", "hci0", "BlueZ adapter to use (default hci0)")
	configFlag := flag.String("config", "/etc/go-hidswitch.conf", "path to the per-remote settings store")
	backlogFlag := flag.Int("backlog", 5, "listen backlog for both PSM listeners")
	kbdRepeatFlag := flag.Uint("kbd-repeat-ms", 0, "kernel auto-repeat rate to apply to grabbed keyboards, 0 leaves kernel defaults alone")
	kbdDelayFlag := flag.Uint("kbd-repeat-delay-ms", 300, "kernel auto-repeat delay in ms, only applied when -kbd-repeat-ms is non-zero")
	setupBtFlag := flag.Bool("setup-bluetooth", true, "configure adapter class/name and register the HID profile on startup")
	flag.Parse()

	logLevel, err := log.ParseLevel(*logLevelFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -loglevel: %v\n", err)
		os.Exit(1)
	}
	log.SetLevel(logLevel)

	if os.Geteuid() != 0 {
		log.Fatal("go-hidswitch must run as root (raw Bluetooth sockets and exclusive input-device grabs both require it)")
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.WithError(err).Fatalf("loading config store %s", *configFlag)
	}

	if *setupBtFlag {
		log.Infof("configuring Bluetooth adapter %s", *adapterFlag)
		if err := btsetup.Setup(*adapterFlag); err != nil {
			log.WithError(err).Fatal("bluetooth adapter setup failed")
		}
	}

	ctrlListener, err := l2cap.Listen(l2cap.PSMControl, *backlogFlag)
	if err != nil {
		log.WithError(err).Fatal("failed to listen on control PSM")
	}
	intrListener, err := l2cap.Listen(l2cap.PSMInterrupt, *backlogFlag)
	if err != nil {
		log.WithError(err).Fatal("failed to listen on interrupt PSM")
	}

	l := loop.New()
	table := hotkey.Default()
	disp := &dispatcher{adapterID: *adapterFlag}

	sup := inputdev.New(nil, nil, table, disp, *kbdRepeatFlag, *kbdDelayFlag)
	reg := registry.New(cfg, l, sup, sup)
	disp.reg = reg
	sup.SetSink(reg, reg)

	if err := sup.Init(); err != nil {
		log.WithError(err).Fatal("input-device supervisor init failed")
	}
	defer sup.Close()

	for _, addr := range cfg.Addresses() {
		reg.GetOrCreate(addr)
	}

	sup.OnBluetoothEvent = func() {
		stale, err := btsetup.DisconnectedSince(*adapterFlag)
		if err != nil {
			log.WithError(err).Warn("btsetup: DisconnectedSince failed")
			return
		}
		for _, addr := range stale {
			reg.DropStale(addr)
		}
	}

	l.Bind(reg, sup, ctrlListener, intrListener)

	log.Info("go-hidswitch ready")
	if err := l.Run(); err != nil {
		log.WithError(err).Fatal("readiness loop exited")
	}
}
