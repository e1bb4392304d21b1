package main

import (
	"flag"
	"os"
	"reflect"

	"github.com/hypernets/sequencer/internal/hypernets/config"
	"github.com/hypernets/sequencer/pkg/log"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// fillOptional allocates every nil pointer and map so optional keys
// bypass "omitempty" and show up in the sample
func fillOptional(v reflect.Value) {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		fillOptional(v.Elem())
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Field(i).CanSet() {
				fillOptional(v.Field(i))
			}
		}
	case reflect.Map:
		if v.IsNil() {
			v.Set(reflect.MakeMap(v.Type()))
		}
	case reflect.Slice:
		if v.IsNil() {
			v.Set(reflect.MakeSlice(v.Type(), 0, 0))
		}
	}
}

func main() {
	out := flag.String("o", "config.toml", "where to write the sample configuration")
	flag.Parse()

	log.Init(false)

	// Load an empty document to get every documented default
	mgr := config.NewManager()
	if err := mgr.LoadBytes(nil); err != nil {
		log.Fatal("defaults do not verify", zap.Error(err))
	}

	cf := config.MainConfig{
		General:    mgr.General().C(),
		PanTilt:    mgr.PanTilt().C(),
		Site:       mgr.Site().C(),
		Instrument: mgr.Instrument().C(),
		Yoctopuce:  mgr.Yoctopuce().C(),
		Rain:       mgr.Rain().C(),
	}

	fillOptional(reflect.ValueOf(&cf).Elem())

	// An empty no-go zone would block the park position
	cf.PanTilt.NoGo = nil
	cf.Metadata["site_name"] = "Virtual Site"
	cf.Metadata["principal_investigator"] = "Hypernets Virtual"

	data, err := toml.Marshal(&cf)
	if err != nil {
		log.Fatal("marshalling sample failed", zap.Error(err))
	}

	if err := os.WriteFile(*out, data, 0644); err != nil {
		log.Fatal("Failed to write config file", zap.Error(err))
	}
	log.Info("sample configuration written", zap.String("path", *out))
}
