package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/hypernets/sequencer/internal/hypernets/config"
	"github.com/hypernets/sequencer/internal/hypernets/pantilt"
	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/zap"
)

func angleFlag(name, usage string) **float64 {
	var v *float64
	flag.Func(name, usage, func(s string) error {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		v = &f
		return nil
	})
	return &v
}

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "relative or absolute path to the config file")
	debug := flag.Bool("debug", false, "true if the debug logging should be enabled")
	wait := flag.Bool("wait", false, "wait for the head to settle and print the final position")
	pan := angleFlag("pan", "absolute pan in degrees")
	tilt := angleFlag("tilt", "absolute tilt in degrees")
	flag.Parse()

	log.Init(*debug)

	conf := config.NewManager()
	if err := conf.Load(*configPath, true); err != nil {
		log.Fatal("invalid configuration", zap.String("path", *configPath), zap.Error(err))
	}
	pt := conf.PanTilt().C()

	opts := pantilt.Options{
		Port:         pt.Port,
		Baudrate:     pt.Baudrate,
		Address:      pt.Address,
		MoveTimeout:  pt.MoveTimeout.Value(),
		PollInterval: pt.PollInterval.Value(),
	}
	if nogo := pt.NoGo; nogo != nil && nogo.TiltMin != nil && nogo.TiltMax != nil {
		opts.NoGo = &pantilt.NoGoZone{TiltMin: *nogo.TiltMin, TiltMax: *nogo.TiltMax}
	}

	d, err := pantilt.Open(opts)
	if err != nil {
		log.Fatal("could not open pan-tilt", zap.Error(err))
	}
	defer d.Close()

	ctx := context.Background()
	if *pan == nil && *tilt == nil {
		res, err := d.Position(ctx)
		if err != nil {
			log.Error("position query failed", zap.Error(err))
			os.Exit(1)
		}
		fmt.Println(res)
		return
	}

	res, err := d.MoveTo(ctx, *pan, *tilt, *wait)
	if err != nil {
		log.Error("move failed", zap.Error(err))
		os.Exit(1)
	}
	if *wait {
		fmt.Println(res)
	}
}
