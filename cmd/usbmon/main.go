package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Hara602/usbmonitor"
	"github.com/Hara602/usbmonitor/device"
)

func main() {
	interval := flag.Duration("interval", usbmonitor.DefaultCheckInterval, "polling interval between device checks")
	listOnly := flag.Bool("list", false, "print the attached devices and exit")
	vendorID := flag.String("vid", "", "only report devices with this vendor id")
	modelID := flag.String("pid", "", "only report devices with this product id")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	usbmonitor.SetLogger(logger)

	var opts []usbmonitor.Option
	if tpl := filterTemplate(*vendorID, *modelID); tpl != nil {
		opts = append(opts, usbmonitor.WithFilter(tpl))
	}
	opts = append(opts, usbmonitor.WithErrorCallback(func(err error) {
		logger.Error("device query failing", zap.Error(err))
	}))

	mon, err := usbmonitor.New(opts...)
	if err != nil {
		logger.Fatal("monitor init failed", zap.Error(err))
	}
	defer mon.Close()

	devs, err := mon.GetAvailableDevices()
	if err != nil {
		logger.Fatal("device enumeration failed", zap.Error(err))
	}
	for id, info := range devs {
		logDevice(logger, "attached", id, info)
	}
	if *listOnly {
		return
	}

	onConnect := func(id string, info device.Info) {
		logDevice(logger, "connected", id, info)
	}
	onDisconnect := func(id string, info device.Info) {
		logDevice(logger, "disconnected", id, info)
	}
	if err := mon.StartMonitoring(onConnect, onDisconnect, *interval); err != nil {
		logger.Fatal("monitoring start failed", zap.Error(err))
	}
	logger.Info("monitoring usb devices", zap.Duration("interval", *interval))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	mon.StopMonitoring(5 * time.Second)
}

func filterTemplate(vid, pid string) device.Template {
	tpl := device.Template{}
	if vid != "" {
		tpl[device.IDVendorID] = vid
	}
	if pid != "" {
		tpl[device.IDModelID] = pid
	}
	if len(tpl) == 0 {
		return nil
	}
	return tpl
}

func logDevice(logger *zap.Logger, event, id string, info device.Info) {
	logger.Info(event,
		zap.String("device", id),
		zap.String("vid", info.VendorID),
		zap.String("pid", info.ModelID),
		zap.String("model", info.Model),
		zap.String("vendor", info.Vendor),
		zap.String("serial", info.Serial),
	)
}
